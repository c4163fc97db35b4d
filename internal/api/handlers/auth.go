package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/auth"
	"github.com/dvloznov/cheque-tally/internal/domain"
)

// AuthService is the account API the auth endpoints need.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, login, password string) (string, *domain.User, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthHandler handles registration, login and the current-user endpoint.
type AuthHandler struct {
	auth     AuthService
	tokenTTL time.Duration
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc AuthService, tokenTTL time.Duration, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, tokenTTL: tokenTTL, log: log}
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        *domain.User `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	ctx := r.Context()
	if _, err := h.auth.Register(ctx, auth.RegisterInput{Email: req.Email, Username: req.Username, Password: req.Password}); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	token, user, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, h.tokenResponse(token, user))
}

// Login handles POST /api/auth/login. The username field also accepts an email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.tokenResponse(token, user))
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) tokenResponse(token string, user *domain.User) tokenResponse {
	return tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
		User:        user,
	}
}
