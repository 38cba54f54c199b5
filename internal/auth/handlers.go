package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/pkg/config"
	"bandspace/pkg/token"
)

// UserStore is the slice of Users the handlers need.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

type Handlers struct {
	Cfg         config.AuthConfig
	Users       UserStore
	Revocations *Revocations
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const minPasswordLen = 8

func (req *registerRequest) validate() error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	switch {
	case req.FirstName == "":
		return apperr.Validation("firstName is required")
	case !strings.Contains(req.Email, "@"):
		return apperr.Validation("a valid email is required")
	case len(req.Password) < minPasswordLen:
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func (h Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	hash, err := HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	u := &User{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, PasswordHash: hash}
	if err := h.Users.Create(r.Context(), u); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u)
}

func (h Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	u, err := h.Users.FindByEmail(r.Context(), normalizeEmail(req.Email))
	if apperr.Is(err, apperr.KindNotFound) {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		zerolog.Ctx(r.Context()).Info().Str("user_id", u.ID).Msg("login rejected")
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

// Logout revokes the caller's current token.
func (h Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	if err := h.Revocations.Revoke(r.Context(), s.TokenID, s.ExpiresAt); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) Me(w http.ResponseWriter, r *http.Request) {
	s := api.SessionFromContext(r.Context())
	u, err := h.Users.GetByID(r.Context(), s.UserID)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h Handlers) issue(w http.ResponseWriter, r *http.Request, status int, u *User) {
	signed, v, err := token.Issue(h.Cfg.JWTSecret, u.ID, u.Email, h.Cfg.TokenTTL, time.Now())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, status, tokenResponse{User: u, Token: signed, ExpiresAt: v.ExpiresAt})
}
