package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/model"
)

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, u *UserDB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "$2a$10$hash"}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	u := newTestDB(t).Users()

	user := &model.User{Email: "ana@example.com", PasswordHash: "hash"}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "dup@example.com")

	err := u.Create(context.Background(), &model.User{Email: "dup@example.com", PasswordHash: "x"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "ana@example.com")

	got, err := u.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Email != "ana@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "ana@example.com")
	}
	if got.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash not persisted: %q", got.PasswordHash)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	u := newTestDB(t).Users()

	_, err := u.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "bo@example.com")

	got, err := u.GetUserByEmail(context.Background(), "bo@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}

	_, err = u.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}
