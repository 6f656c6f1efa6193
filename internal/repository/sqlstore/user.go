package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"
	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	conn *sql.DB
	d    dialect
}

// Users returns the user repository bound to the connection pool.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn, d: db.dialect}
}

// Create inserts a new user, filling in ID and timestamps.
// A duplicate email returns apperror.ErrConflict.
//
// xid gives 20-character, URL-safe, roughly time-sortable IDs without any
// coordination, so the database never has to generate them.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx, u.d.rebind(
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`),
		user.ID,
		user.Email,
		user.PasswordHash,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return u.getBy(ctx, "id", id)
}

// GetUserByEmail is what login uses.
// Returns apperror.ErrNotFound if the email is not registered.
func (u *UserDB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getBy(ctx, "email", email)
}

// getBy is shared by the two lookups. column is always a constant from this
// file, never user input.
func (u *UserDB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var (
		usr              model.User
		created, updated int64
	)
	err := u.conn.QueryRowContext(ctx, u.d.rebind(
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users WHERE `+column+` = ?`),
		value,
	).Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlstore: getting user by %s: %w", column, err)
	}
	usr.CreatedAt = fromMillis(created)
	usr.UpdatedAt = fromMillis(updated)
	return &usr, nil
}

// isUniqueViolation recognises a UNIQUE constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
