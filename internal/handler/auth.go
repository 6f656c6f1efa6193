package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/auth"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/service"
)

// AccountService is the part of service.AuthService the handler uses.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

var _ AccountService = (*service.AuthService)(nil)

// AuthHandler manages registration, login and session lookups.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and sign the device in
//   - HandleLogin    → exchange email + password for a token
//   - HandleLogout   → clear the token cookie
//   - HandleMe       → return the currently signed-in user
//
// Native clients keep the token from the JSON body and send it as a Bearer
// header. Browsers get the same token as an HttpOnly cookie.
type AuthHandler struct {
	accounts AccountService
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(accounts AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger, now: time.Now}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is returned by register and login.
type authResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "ana@example.com", "password": "correct horse"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "register", err)
		return
	}

	h.setTokenCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// HandleLogin signs a user in.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "ana@example.com", "password": "correct horse"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}

	h.setTokenCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, authResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /api/auth/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered by a prefetch or a
// cross-site image tag.
//
// Tokens are stateless, so this only removes the browser's copy. A Bearer
// token held by a native client stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.accounts.GetUserByID(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotFound) {
		err = errNoUser
	}
	if err != nil {
		h.respondError(w, "me", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie mirrors the issued token into an HttpOnly cookie.
// HttpOnly = JavaScript cannot read it (XSS protection).
// SameSite=Lax = not sent on cross-site POSTs.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiresAt.Sub(h.now()).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
}

func (h *AuthHandler) respondError(w http.ResponseWriter, op string, err error) {
	if status := writeError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("auth request failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}

// errNoUser is what HandleMe reports when the account behind a valid token
// no longer exists.
var errNoUser = apperror.Unauthorized("account no longer exists")
