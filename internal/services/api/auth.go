package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
)

// AuthHandler issues and revokes session tokens.
type AuthHandler struct {
	parties  identity.PartyRepo
	sessions identity.SessionRepo
	auth     *identity.UserAuth
	ttl      time.Duration
	log      *slog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(parties identity.PartyRepo, sessions identity.SessionRepo, userAuth *identity.UserAuth, ttl time.Duration, log *slog.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = identity.DefaultSessionTTL
	}
	return &AuthHandler{
		parties:  parties,
		sessions: sessions,
		auth:     userAuth,
		ttl:      ttl,
		log:      log,
	}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserView is the public shape of a user.
type UserView struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Pseudo   string   `json:"pseudo"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}

func viewOf(u *identity.User) UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		Pseudo:   u.DisplayName(),
		Email:    u.Email,
		Roles:    u.Roles,
	}
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      UserView `json:"user"`
}

func (h *AuthHandler) logger(r *http.Request) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(r.Context()); ok {
		return l
	}
	return h.log
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "username and password required")
		return
	}

	ctx := r.Context()
	user, err := h.auth.Authenticate(ctx, h.parties, req.Username, req.Password)
	switch {
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, identity.ErrInvalidPassword):
		h.logger(r).Info("login rejected", "username", req.Username)
		api.WriteUnauthorized(w, api.ReasonInvalidCredentials, "invalid username or password")
		return
	case err != nil:
		h.logger(r).Error("login failed", "error", err)
		api.WriteInternalError(w, api.ReasonInternalError, "login failed", "")
		return
	}

	session, err := h.sessions.Create(ctx, user.ID, h.ttl)
	if err != nil {
		h.logger(r).Error("session creation failed", "user_id", user.ID, "error", err)
		api.WriteInternalError(w, api.ReasonInternalError, "failed to create session", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger(r).Info("login succeeded", "user_id", user.ID)
	api.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      viewOf(user),
	})
}

// Logout handles POST /api/auth/logout. The route requires a caller, so the
// token is known to be live.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), auth.ExtractToken(r)); err != nil {
		h.logger(r).Warn("session delete failed", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		MaxAge:   -1,
	})

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if caller == nil {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "No token provided")
		return
	}

	user, err := h.parties.Get(r.Context(), caller.ID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			api.WriteUnauthorized(w, api.ReasonInvalidToken, "Invalid token")
			return
		}
		h.logger(r).Error("user lookup failed", "error", err)
		api.WriteInternalError(w, api.ReasonInternalError, "user lookup failed", "")
		return
	}

	api.WriteJSON(w, http.StatusOK, viewOf(user))
}
