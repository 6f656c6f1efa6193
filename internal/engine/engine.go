// Package engine is the synchronisation core: last-write-wins conflict
// resolution and the four operations devices call (Push, Pull, Backup,
// Restore).
//
// WHAT THE ENGINE KNOWS:
// Only the six SyncMeta fields. Names, icons, texts and colours are payload
// that flows through to storage untouched. Every operation receives the
// authenticated user ID from the HTTP layer and never looks at another user's
// rows.
//
// WHAT IT DOES NOT DO:
// No locking, no multi-record transactions for push. Each record is read,
// resolved, and written with a conditional upsert on its own. Two devices
// racing on the same record are decided by whichever write reaches the store
// first, and every later push or pull re-applies the same rule, so all
// devices converge.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// Archiver stores a serialised backup snapshot somewhere durable and returns
// the key it was stored under.
type Archiver interface {
	Archive(ctx context.Context, userID string, at time.Time, body []byte) (string, error)
}

// Engine runs sync operations against a repository.Store.
type Engine struct {
	store    repository.Store
	archiver Archiver
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithArchiver makes Backup also write every snapshot to a.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithClock replaces time.Now. Tests use it to pin syncedAt and sweep times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. store and logger are required.
func New(store repository.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clock returns the current server instant at storage precision.
func (e *Engine) clock() time.Time {
	return model.NormalizeTime(e.now())
}

// archive writes snap to the archiver, if one is configured. A failure is
// logged and swallowed: the snapshot has already been returned to the client.
func (e *Engine) archive(ctx context.Context, snap *Snapshot) {
	if e.archiver == nil {
		return
	}
	body, err := json.Marshal(snap)
	if err != nil {
		e.logger.Error("encoding backup for archive", "user_id", snap.UserID, "error", err)
		return
	}
	key, err := e.archiver.Archive(ctx, snap.UserID, snap.BackupAt, body)
	if err != nil {
		e.logger.Error("archiving backup", "user_id", snap.UserID, "error", err)
		return
	}
	snap.ArchiveKey = key
	e.logger.Info("backup archived", "user_id", snap.UserID, "key", key)
}
