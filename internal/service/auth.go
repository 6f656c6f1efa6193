// Package service holds the account logic that sits beside the sync engine:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (DB)
//	                                         ↘ TokenService (JWT)
//	                                         ↘ preferences store (seeding)
//
// Handlers know HTTP, the service knows the rules, the repository knows SQL.
// Each is tested on its own: this package with in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/auth"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// SeedDeviceID marks records the server created on the user's behalf.
const SeedDeviceID = "server"

// AuthService registers users and logs them in.
type AuthService struct {
	users       repository.UserRepository
	preferences repository.RecordStore[*model.Preferences]
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService wires an AuthService. preferences is where a new user's
// default preferences are seeded.
func NewAuthService(
	users repository.UserRepository,
	preferences repository.RecordStore[*model.Preferences],
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		preferences: preferences,
		tokens:      tokens,
		passwords:   passwords,
		logger:      logger,
		now:         time.Now,
	}
}

// AuthResult bundles the user and the issued token so the handler can
// respond in one step.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Register creates an account and returns a token for it.
//
// Validation errors come back as apperror.ErrValidation, a taken email as
// apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < auth.MinPasswordLength || len(password) > auth.MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("must be between %d and %d characters", auth.MinPasswordLength, auth.MaxPasswordLength))
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("user", email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.seedPreferences(ctx, user.ID)

	return s.issue(user)
}

// seedPreferences stores the default preferences for a new user. Any device
// pushing its own preferences later overrides them through normal sync.
// A failure is logged only: the account is usable without them.
func (s *AuthService) seedPreferences(ctx context.Context, userID string) {
	now := model.NormalizeTime(s.now())
	prefs := &model.Preferences{
		SyncMeta: model.SyncMeta{
			ID:        userID,
			UserID:    userID,
			DeviceID:  SeedDeviceID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		IsDarkMode: false,
		ThemeColor: model.DefaultThemeColor,
	}
	if _, err := s.preferences.Save(ctx, prefs); err != nil {
		s.logger.Warn("seeding default preferences failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Login checks the credentials. Unknown email and wrong password give the
// same apperror.ErrUnauthorized so the response does not reveal which
// emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	invalid := apperror.Unauthorized("invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login failed", slog.String("user_id", user.ID))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// GetUserByID returns the account behind an authenticated request.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("no user in request")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	tok, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

// normalizeEmail trims and lower-cases email and checks it is a bare address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return "", apperror.ValidationFailed("email", "is not a valid address")
	}
	return email, nil
}
