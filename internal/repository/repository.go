// Package repository declares the storage contracts the engine and services
// depend on. Concrete implementations live in sub-packages (sqlstore).
package repository

import (
	"context"
	"time"

	"github.com/sakif/spacesync/internal/model"
)

// RecordStore is the per-entity-type persistent collection the sync engine
// consumes. Every method is scoped to a single user.
//
// GENERICS:
// One interface covers all four entity types. RecordStore[*model.Item] is the
// item collection, RecordStore[*model.Space] the space collection, and so on.
type RecordStore[T model.Record] interface {
	// Get looks up a record by (id, userID).
	// Returns apperror.ErrNotFound when no such record exists.
	Get(ctx context.Context, userID, id string) (T, error)

	// Save upserts rec only if no stored version has an updatedAt greater
	// than or equal to rec's. It reports whether the write landed. A false
	// return with a nil error means a concurrent writer stored a version at
	// least as new in between the caller's Get and this call.
	Save(ctx context.Context, rec T) (bool, error)

	// ChangedSince returns the user's records with updatedAt > since whose
	// deviceId differs from excludeDevice. Soft-deleted records are included.
	ChangedSince(ctx context.Context, userID string, since time.Time, excludeDevice string) ([]T, error)

	// All returns every record of the user, deleted ones included.
	All(ctx context.Context, userID string) ([]T, error)

	// SoftDeleteAll marks every live record of the user as deleted, stamping
	// updatedAt and deviceId. It returns the number of records touched.
	SoftDeleteAll(ctx context.Context, userID, deviceID string, at time.Time) (int64, error)
}

// Store bundles the four record collections.
type Store interface {
	Spaces() RecordStore[*model.Space]
	Categories() RecordStore[*model.Category]
	Items() RecordStore[*model.Item]
	Preferences() RecordStore[*model.Preferences]

	// WithinTx runs fn with a Store whose writes commit together, or not at
	// all if fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
