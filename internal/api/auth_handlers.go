package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/technosupport/ts-signal/internal/auth"
	"github.com/technosupport/ts-signal/internal/session"
)

// DefaultSessionTTL matches the original 24h login sessions.
const DefaultSessionTTL = 24 * time.Hour

type AuthHandler struct {
	Directory *auth.Directory
	Sessions  session.Store
	TTL       time.Duration // zero means DefaultSessionTTL
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expiresAt"` // epoch milliseconds
}

type LogoutRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) ttl() time.Duration {
	if h.TTL > 0 {
		return h.TTL
	}
	return DefaultSessionTTL
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Username == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	role := session.Role(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if !h.Directory.Verify(req.Username, req.Password, role) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, sess, err := h.Sessions.Issue(r.Context(), req.Username, role, h.ttl())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session error")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    sess.UserID,
		Role:      string(sess.Role),
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Token != "" {
		h.Sessions.Revoke(r.Context(), req.Token)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
