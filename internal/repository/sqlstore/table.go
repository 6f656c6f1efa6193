package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/dbx"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// metaColumns are stored identically for every entity type.
var metaColumns = []string{"id", "user_id", "deleted", "device_id", "created_at", "updated_at"}

// schema describes how one entity type maps onto its table.
//
// Only the payload differs between entity types, so each schema lists its
// payload columns and two accessors: values() for INSERT arguments and
// dest() for Scan destinations, in the same order as columns.
type schema[T model.Record] struct {
	table     string
	columns   []string
	newRecord func() T
	values    func(rec T) []any
	dest      func(rec T) []any
}

// table is a RecordStore[T] over one SQL table.
type table[T model.Record] struct {
	q dbx.DBTX
	d dialect
	s schema[T]

	// SQL built once per table.
	selectCols string
	upsertSQL  string
}

var (
	_ repository.RecordStore[*model.Space]       = (*table[*model.Space])(nil)
	_ repository.RecordStore[*model.Category]    = (*table[*model.Category])(nil)
	_ repository.RecordStore[*model.Item]        = (*table[*model.Item])(nil)
	_ repository.RecordStore[*model.Preferences] = (*table[*model.Preferences])(nil)
)

func newTable[T model.Record](q dbx.DBTX, d dialect, s schema[T]) *table[T] {
	cols := append(append([]string{}, metaColumns...), s.columns...)

	// created_at is written on first insert only.
	updates := []string{"deleted = excluded.deleted", "device_id = excluded.device_id", "updated_at = excluded.updated_at"}
	for _, c := range s.columns {
		updates = append(updates, c+" = excluded."+c)
	}

	// CONDITIONAL UPSERT:
	// The WHERE clause on DO UPDATE makes the write a compare-and-set on
	// updated_at. If another request stored a version at least as new since
	// the caller read the row, the UPDATE matches nothing and RowsAffected
	// comes back 0. Both SQLite (3.24+) and Postgres support this form.
	upsert := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)
		 ON CONFLICT (user_id, id) DO UPDATE SET %s
		 WHERE %s.updated_at < excluded.updated_at`,
		s.table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
		s.table,
	)

	return &table[T]{
		q:          q,
		d:          d,
		s:          s,
		selectCols: strings.Join(cols, ", "),
		upsertSQL:  d.rebind(upsert),
	}
}

func (t *table[T]) Get(ctx context.Context, userID, id string) (T, error) {
	query := t.d.rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE user_id = ? AND id = ?`, t.selectCols, t.s.table))

	rec, err := t.scan(t.q.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, apperror.NotFound(string(t.kind()), id)
		}
		return zero, fmt.Errorf("sqlstore: getting %s %s: %w", t.kind(), id, err)
	}
	return rec, nil
}

func (t *table[T]) Save(ctx context.Context, rec T) (bool, error) {
	m := rec.Meta()
	args := []any{
		m.ID,
		m.UserID,
		m.Deleted,
		m.DeviceID,
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	}
	args = append(args, t.s.values(rec)...)

	res, err := t.q.ExecContext(ctx, t.upsertSQL, args...)
	if err != nil {
		return false, fmt.Errorf("sqlstore: saving %s %s: %w", t.kind(), m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: saving %s %s: %w", t.kind(), m.ID, err)
	}
	return n > 0, nil
}

func (t *table[T]) ChangedSince(ctx context.Context, userID string, since time.Time, excludeDevice string) ([]T, error) {
	query := t.d.rebind(fmt.Sprintf(
		`SELECT %s FROM %s
		 WHERE user_id = ? AND updated_at > ? AND device_id <> ?
		 ORDER BY updated_at, id`, t.selectCols, t.s.table))

	watermark := int64(math.MinInt64)
	if !since.IsZero() {
		watermark = toMillis(since)
	}
	return t.list(ctx, query, userID, watermark, excludeDevice)
}

func (t *table[T]) All(ctx context.Context, userID string) ([]T, error) {
	query := t.d.rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE user_id = ? ORDER BY updated_at, id`, t.selectCols, t.s.table))

	return t.list(ctx, query, userID)
}

func (t *table[T]) SoftDeleteAll(ctx context.Context, userID, deviceID string, at time.Time) (int64, error) {
	query := t.d.rebind(fmt.Sprintf(
		`UPDATE %s SET deleted = ?, device_id = ?, updated_at = ?
		 WHERE user_id = ? AND deleted = ?`, t.s.table))

	res, err := t.q.ExecContext(ctx, query, true, deviceID, toMillis(at), userID, false)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: soft-deleting %s for user %s: %w", t.kind(), userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: soft-deleting %s for user %s: %w", t.kind(), userID, err)
	}
	return n, nil
}

// list runs a multi-row SELECT and scans every row.
// An empty result is a non-nil empty slice so it encodes as [] rather than null.
func (t *table[T]) list(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing %s: %w", t.kind(), err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning %s: %w", t.kind(), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating %s: %w", t.kind(), err)
	}
	return out, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (t *table[T]) scan(row scanner) (T, error) {
	rec := t.s.newRecord()
	m := rec.Meta()
	var created, updated int64

	dest := []any{&m.ID, &m.UserID, &m.Deleted, &m.DeviceID, &created, &updated}
	dest = append(dest, t.s.dest(rec)...)

	if err := row.Scan(dest...); err != nil {
		var zero T
		return zero, err
	}
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	return rec, nil
}

func (t *table[T]) kind() model.EntityType {
	return t.s.newRecord().Kind()
}

// Timestamps are stored as Unix milliseconds, UTC.

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
