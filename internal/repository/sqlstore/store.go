package sqlstore

import (
	"context"
	"database/sql"

	"github.com/sakif/spacesync/internal/dbx"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is the SQL implementation of repository.Store.
//
// The same type serves both outside and inside a transaction: q is either
// the pool or the *sql.Tx. pool is nil inside a transaction, which is how
// WithinTx knows it is already nested.
type Store struct {
	pool *sql.DB
	q    dbx.DBTX

	spaces      *table[*model.Space]
	categories  *table[*model.Category]
	items       *table[*model.Item]
	preferences *table[*model.Preferences]
}

func newStore(pool *sql.DB, q dbx.DBTX, d dialect) *Store {
	return &Store{
		pool:        pool,
		q:           q,
		spaces:      newTable(q, d, spaceSchema),
		categories:  newTable(q, d, categorySchema),
		items:       newTable(q, d, itemSchema),
		preferences: newTable(q, d, preferencesSchema),
	}
}

// Records returns the record store bound to the connection pool.
func (db *DB) Records() *Store {
	return newStore(db.conn, db.conn, db.dialect)
}

func (s *Store) Spaces() repository.RecordStore[*model.Space] { return s.spaces }
func (s *Store) Categories() repository.RecordStore[*model.Category] { return s.categories }
func (s *Store) Items() repository.RecordStore[*model.Item] { return s.items }
func (s *Store) Preferences() repository.RecordStore[*model.Preferences] { return s.preferences }

// WithinTx runs fn inside a database transaction. Calls nested inside an
// existing transaction join it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}
	d := s.spaces.d
	return dbx.WithTx(ctx, s.pool, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newStore(nil, tx, d))
	})
}
