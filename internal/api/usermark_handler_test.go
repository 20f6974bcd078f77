package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"recite/internal/database"
)

func TestCreateUserMark_ThenDuplicateIsRejected(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem")

	w, c := jsonRequest(t, http.MethodPost, "/v1/user-marks", gin.H{
		"mark": mark.ID, "note": "lovely", "preference_level": 4,
	})
	c.Set("userID", user.ID)
	h.CreateUserMark(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["note"] != "lovely" || body["preference_level"].(float64) != 4 {
		t.Errorf("body = %v", body)
	}
	nested := body["mark"].(map[string]any)
	if nested["title"] != "Spring" {
		t.Errorf("nested mark = %v", nested)
	}

	w, c = jsonRequest(t, http.MethodPost, "/v1/user-marks", gin.H{"mark": mark.ID})
	c.Set("userID", user.ID)
	h.CreateUserMark(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if detail := decodeBody(t, w)["detail"]; detail != "Already bookmarked." {
		t.Errorf("detail = %v", detail)
	}
}

func TestCreateUserMark_MarkFieldRequired(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)

	w, c := jsonRequest(t, http.MethodPost, "/v1/user-marks", gin.H{"note": "no mark"})
	c.Set("userID", user.ID)
	h.CreateUserMark(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateUserMark_UnknownMark(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)

	w, c := jsonRequest(t, http.MethodPost, "/v1/user-marks", gin.H{"mark": 999})
	c.Set("userID", user.ID)
	h.CreateUserMark(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetUserMark_OtherUsersRowIsHidden(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	alice := seedUser(t, db, "alice", false)
	bob := seedUser(t, db, "bob", false)
	mark := seedMark(t, db, "Spring", "poem")
	userMark := database.UserMark{UserID: alice.ID, MarkID: mark.ID}
	if err := db.Create(&userMark).Error; err != nil {
		t.Fatalf("seed user mark: %v", err)
	}

	w, c := jsonRequest(t, http.MethodGet, "/v1/user-marks/1", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(userMark.ID)}}
	c.Set("userID", bob.ID)
	h.GetUserMark(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateUserMark_ChangesNote(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem")
	userMark := database.UserMark{UserID: user.ID, MarkID: mark.ID, Note: "old", PreferenceLevel: 2}
	if err := db.Create(&userMark).Error; err != nil {
		t.Fatalf("seed user mark: %v", err)
	}

	w, c := jsonRequest(t, http.MethodPatch, "/v1/user-marks/1", gin.H{"note": "new"})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(userMark.ID)}}
	c.Set("userID", user.ID)
	h.UpdateUserMark(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["note"] != "new" {
		t.Errorf("note = %v", body["note"])
	}
	if body["preference_level"].(float64) != 2 {
		t.Errorf("preference_level = %v, want unchanged 2", body["preference_level"])
	}
}

func TestUpdateUserMark_PreferenceOutOfRange(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem")
	userMark := database.UserMark{UserID: user.ID, MarkID: mark.ID}
	if err := db.Create(&userMark).Error; err != nil {
		t.Fatalf("seed user mark: %v", err)
	}

	w, c := jsonRequest(t, http.MethodPatch, "/v1/user-marks/1", gin.H{"preference_level": 9})
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(userMark.ID)}}
	c.Set("userID", user.ID)
	h.UpdateUserMark(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if _, ok := decodeBody(t, w)["preference_level"]; !ok {
		t.Errorf("expected preference_level field error, body=%s", w.Body.String())
	}
}

func TestDeleteUserMark_ThenListEmpty(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem")
	userMark := database.UserMark{UserID: user.ID, MarkID: mark.ID}
	if err := db.Create(&userMark).Error; err != nil {
		t.Fatalf("seed user mark: %v", err)
	}

	w, c := jsonRequest(t, http.MethodDelete, "/v1/user-marks/1", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(userMark.ID)}}
	c.Set("userID", user.ID)
	h.DeleteUserMark(c)
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}

	w, c = jsonRequest(t, http.MethodGet, "/v1/user-marks", nil)
	c.Set("userID", user.ID)
	h.ListUserMarks(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if count := decodeBody(t, w)["count"].(float64); count != 0 {
		t.Errorf("count = %v, want 0", count)
	}
}

func TestListUserMarks_RequiresAuth(t *testing.T) {
	db := newTestDB(t)
	h := newUserMarkHandler(db)

	w, c := jsonRequest(t, http.MethodGet, "/v1/user-marks", nil)
	h.ListUserMarks(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
	if detail := decodeBody(t, w)["detail"]; detail != "Authentication credentials were not provided." {
		t.Errorf("detail = %v", detail)
	}
}
