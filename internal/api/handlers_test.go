package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/technosupport/ts-signal/internal/api"
	"github.com/technosupport/ts-signal/internal/auth"
	"github.com/technosupport/ts-signal/internal/broker"
	"github.com/technosupport/ts-signal/internal/session"
)

func newAuthHandler(t *testing.T) (*api.AuthHandler, *session.MemoryStore) {
	t.Helper()
	t.Setenv("CAMERA_1", "cam_front:campass")
	t.Setenv("VIEWER_1", "guard:viewpass")

	directory := auth.NewDirectory()
	directory.LoadFromEnv()
	store := session.NewMemoryStore()
	return &api.AuthHandler{Directory: directory, Sessions: store}, store
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestLogin_Success(t *testing.T) {
	h, store := newAuthHandler(t)

	w := postJSON(t, h.Login, api.LoginRequest{Username: "cam_front", Password: "campass", Role: "camera"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp api.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != "cam_front" || resp.Role != "camera" || resp.Token == "" {
		t.Errorf("Bad response: %+v", resp)
	}
	if resp.ExpiresAt <= time.Now().UnixMilli() {
		t.Error("expiresAt must be in the future")
	}

	sess, ok := store.Validate(context.Background(), resp.Token)
	if !ok || sess.Role != session.RoleCamera {
		t.Error("Issued token must validate with camera role")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h, _ := newAuthHandler(t)
	w := postJSON(t, h.Login, api.LoginRequest{Username: "cam_front"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLogin_InvalidRole(t *testing.T) {
	h, _ := newAuthHandler(t)
	w := postJSON(t, h.Login, api.LoginRequest{Username: "cam_front", Password: "campass", Role: "admin"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h, _ := newAuthHandler(t)

	w := postJSON(t, h.Login, api.LoginRequest{Username: "cam_front", Password: "wrong", Role: "camera"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}

	// Right password under the wrong role is still a credential failure.
	w = postJSON(t, h.Login, api.LoginRequest{Username: "cam_front", Password: "campass", Role: "viewer"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for cross-role login, got %d", w.Code)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	h, store := newAuthHandler(t)

	w := postJSON(t, h.Login, api.LoginRequest{Username: "guard", Password: "viewpass", Role: "viewer"})
	var resp api.LoginResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	w = postJSON(t, h.Logout, api.LogoutRequest{Token: resp.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if _, ok := store.Validate(context.Background(), resp.Token); ok {
		t.Error("Token must be revoked after logout")
	}
}

func TestPing(t *testing.T) {
	store := session.NewMemoryStore()
	store.Issue(context.Background(), "guard", session.RoleViewer, time.Hour)
	h := &api.HealthHandler{
		Broker:   broker.New(store, broker.Config{}),
		Sessions: store,
	}

	req := httptest.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	h.Ping(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" || resp["sessions"] != float64(1) {
		t.Errorf("Bad ping response: %v", resp)
	}
}
