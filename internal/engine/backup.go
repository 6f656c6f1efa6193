package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Backup exports every record of userID, deleted ones included, with no
// timestamp filter. When an Archiver is configured the snapshot is also
// archived and ArchiveKey is filled in.
func (e *Engine) Backup(ctx context.Context, userID string) (*Snapshot, error) {
	snap := &Snapshot{
		BackupAt: e.clock(),
		Version:  BackupVersion,
		UserID:   userID,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Spaces, err = e.store.Spaces().All(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.Categories, err = e.store.Categories().All(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.Items, err = e.store.Items().All(gctx, userID)
		return err
	})
	g.Go(func() error {
		prefs, err := e.store.Preferences().All(gctx, userID)
		if err != nil {
			return err
		}
		if len(prefs) > 0 {
			snap.Preferences = prefs[0]
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	e.logger.Info("backup created",
		"user_id", userID,
		"spaces", len(snap.Spaces),
		"categories", len(snap.Categories),
		"items", len(snap.Items),
	)

	e.archive(ctx, snap)
	return snap, nil
}
