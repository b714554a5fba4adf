package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/store"
)

// LoginHandler exchanges collaborator-store credentials for a session token.
type LoginHandler struct {
	auth     store.Authenticator
	secret   []byte
	tokenTTL time.Duration
}

func NewLoginHandler(auth store.Authenticator, secret []byte) *LoginHandler {
	return &LoginHandler{auth: auth, secret: secret, tokenTTL: 12 * time.Hour}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, "missing email or password", http.StatusBadRequest)
		return
	}

	identity, err := h.auth.AuthWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("login failed for %s: %v", req.Email, err)
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if identity.Role != domain.RolePlayer && identity.Role != domain.RoleAdmin {
		http.Error(w, "unauthorized role", http.StatusForbidden)
		return
	}

	token, err := IssueToken(h.secret, identity, h.tokenTTL)
	if err != nil {
		log.Printf("token issue failed for %s: %v", identity.UserID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{
		Token:    token,
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
	})
}
