package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recite/internal/api"
	"recite/internal/auth"
	"recite/internal/config"
	"recite/internal/database"
	"recite/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database connection ready")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	if err := seedAdminUser(db, cfg.Auth.SeedAdminPassword); err != nil {
		log.Fatalf("seed admin user: %v", err)
	}

	privateKeyPEM, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		log.Fatalf("read private key: %v", err)
	}
	publicKeyPEM, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read public key: %v", err)
	}
	authService, err := auth.NewAuthService(privateKeyPEM, publicKeyPEM, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, db, authService, redisClient, logger, storageClient, cfg)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)

	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}

// seedAdminUser 在空库时创建初始管理员账号，强制首次登录改密。
func seedAdminUser(db *gorm.DB, password string) error {
	var existing database.User
	switch err := db.Where("username = ?", "admin").First(&existing).Error; {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fallthrough to create
	default:
		return fmt.Errorf("query admin user: %w", err)
	}

	if password == "" {
		log.Printf("no seed admin password configured, skipping admin seed")
		return nil
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := database.User{
		Username:           "admin",
		PasswordHash:       hashed,
		IsSuperuser:        true,
		IsMarkManager:      true,
		MustChangePassword: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("seeded admin user with ID %d", admin.ID)
	return nil
}
