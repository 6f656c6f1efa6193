package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/auth"
	"github.com/sakif/spacesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	byID    map[string]*model.User
	byEmail map[string]*model.User
	nextID  int

	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*model.User{}, byEmail: map[string]*model.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return apperror.Conflict("user", u.Email)
	}
	f.nextID++
	u.ID = "user-" + string(rune('0'+f.nextID))
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.byID[u.ID] = &cp
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return u, nil
}

// fakePrefs records seeded preferences. Only Save is used by AuthService.
type fakePrefs struct {
	saved   []*model.Preferences
	saveErr error
}

func (f *fakePrefs) Get(ctx context.Context, userID, id string) (*model.Preferences, error) {
	return nil, apperror.NotFound("preferences", id)
}

func (f *fakePrefs) Save(ctx context.Context, p *model.Preferences) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	f.saved = append(f.saved, p)
	return true, nil
}

func (f *fakePrefs) ChangedSince(ctx context.Context, userID string, since time.Time, excludeDevice string) ([]*model.Preferences, error) {
	return nil, nil
}

func (f *fakePrefs) All(ctx context.Context, userID string) ([]*model.Preferences, error) {
	return nil, nil
}

func (f *fakePrefs) SoftDeleteAll(ctx context.Context, userID, deviceID string, at time.Time) (int64, error) {
	return 0, nil
}

var seededAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakePrefs) {
	t.Helper()
	tokens, err := auth.NewTokenService("service-test-secret-32-characters!", time.Hour)
	require.NoError(t, err)

	users := newFakeUserRepo()
	prefs := &fakePrefs{}
	svc := NewAuthService(users, prefs, tokens, auth.NewPasswordServiceForTest(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return seededAt }
	return svc, users, prefs
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister(t *testing.T) {
	svc, users, prefs := newTestAuthService(t)

	res, err := svc.Register(context.Background(), "  Ana@Example.com ", "hunter22hunter")
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", res.User.Email, "email is normalised")
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	stored := users.byEmail["ana@example.com"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "hunter22hunter", stored.PasswordHash, "password is hashed")

	require.Len(t, prefs.saved, 1)
	p := prefs.saved[0]
	assert.Equal(t, res.User.ID, p.ID)
	assert.Equal(t, res.User.ID, p.UserID)
	assert.Equal(t, SeedDeviceID, p.DeviceID)
	assert.Equal(t, model.DefaultThemeColor, p.ThemeColor)
	assert.False(t, p.IsDarkMode)
	assert.Equal(t, seededAt, p.UpdatedAt)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"empty email", "", "longenough", "email"},
		{"not an address", "ana", "longenough", "email"},
		{"display name form", "Ana <ana@example.com>", "longenough", "email"},
		{"short password", "ana@example.com", "short", "password"},
		{"long password", "ana@example.com", string(make([]byte, 73)), "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestAuthService(t)
			_, err := svc.Register(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana@example.com", "password-one")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ANA@example.com", "password-two")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestRegister_SeedFailureIsNotFatal(t *testing.T) {
	svc, _, prefs := newTestAuthService(t)
	prefs.saveErr = errors.New("db locked")

	res, err := svc.Register(context.Background(), "ana@example.com", "password-one")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestRegister_RepoFailure(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	users.createErr = errors.New("disk full")

	_, err := svc.Register(context.Background(), "ana@example.com", "password-one")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "ana@example.com", "correct-password")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "Ana@Example.com", "correct-password")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
}

func TestLogin_BadCredentialsLookTheSame(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "ana@example.com", "correct-password")
	require.NoError(t, err)

	_, wrongPass := svc.Login(ctx, "ana@example.com", "wrong-password")
	_, noUser := svc.Login(ctx, "bo@example.com", "correct-password")

	require.ErrorIs(t, wrongPass, apperror.ErrUnauthorized)
	require.ErrorIs(t, noUser, apperror.ErrUnauthorized)
	assert.Equal(t, wrongPass.Error(), noUser.Error())
}

func TestLogin_RepoFailure(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	users.getErr = errors.New("connection refused")

	_, err := svc.Login(context.Background(), "ana@example.com", "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// GET USER
// =========================================================================

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "ana@example.com", "correct-password")
	require.NoError(t, err)

	u, err := svc.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	_, err = svc.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.GetUserByID(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
