package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recite/internal/api/middleware"
	"recite/internal/auth"
	"recite/internal/config"
	"recite/internal/marks"
	"recite/internal/storage"
)

// RegisterRoutes 注册 API 路由，统一挂在 /v1 前缀下。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	storageClient *storage.Client,
	cfg *config.Config,
) {
	authorizer := marks.RoleAuthorizer{}
	tagResolver := marks.NewTagResolver(db)
	catalog := marks.NewCatalogService(db, tagResolver, authorizer)
	collection := marks.NewCollectionService(db)
	tagService := marks.NewTagService(db, authorizer)

	markHandler := NewMarkHandler(db, catalog, collection)
	userMarkHandler := NewUserMarkHandler(collection)
	tagHandler := NewTagHandler(db, tagService)
	authHandler := NewAuthHandler(
		db,
		authService,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL(),
		cfg.Auth.CookieDomain,
	)
	avatarHandler := NewAvatarHandler(db, storageClient, logger, cfg.MinIO.ClamdAddr)

	authMiddleware := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		userGroup := v1.Group("/user")
		userGroup.Use(authMiddleware)
		{
			userGroup.GET("", authHandler.Profile)
			userGroup.PATCH("", authHandler.UpdateProfile)
			userGroup.PATCH("/password", authHandler.ChangePassword)
			userGroup.POST("/avatar", avatarHandler.UploadAvatar)
			userGroup.GET("/avatar", avatarHandler.GetAvatarURL)
		}

		markGroup := v1.Group("/marks")
		{
			markGroup.GET("", optionalAuth, markHandler.ListMarks)
			markGroup.GET("/:id", optionalAuth, markHandler.GetMark)
			markGroup.POST("", authMiddleware, markHandler.CreateMark)
			markGroup.PUT("/:id", authMiddleware, markHandler.UpdateMark)
			markGroup.PATCH("/:id", authMiddleware, markHandler.PatchMark)
			markGroup.DELETE("/:id", authMiddleware, markHandler.DeleteMark)
		}

		v1.GET("/collection", authMiddleware, markHandler.ListCollection)

		userMarkGroup := v1.Group("/user-marks")
		userMarkGroup.Use(authMiddleware)
		{
			userMarkGroup.GET("", userMarkHandler.ListUserMarks)
			userMarkGroup.POST("", userMarkHandler.CreateUserMark)
			userMarkGroup.GET("/:id", userMarkHandler.GetUserMark)
			userMarkGroup.PATCH("/:id", userMarkHandler.UpdateUserMark)
			userMarkGroup.DELETE("/:id", userMarkHandler.DeleteUserMark)
		}

		tagGroup := v1.Group("/tags")
		{
			tagGroup.GET("", tagHandler.ListTags)
			tagGroup.GET("/:id", tagHandler.GetTag)
			tagGroup.POST("", authMiddleware, tagHandler.CreateTag)
			tagGroup.PATCH("/:id", authMiddleware, tagHandler.RenameTag)
			tagGroup.DELETE("/:id", authMiddleware, tagHandler.DeleteTag)
		}
	}
}
