package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/spacesync/internal/repository"
)

// Restore replaces userID's data with a backup in two phases, both attributed
// to deviceID:
//
//  1. Sweep: every live record of every type is soft-deleted at sweepAt, in
//     one transaction. This is an unconditional write.
//  2. Replay: the backup records go through the push pipeline unchanged,
//     keeping the updatedAt they were backed up with.
//
// Replay is ordinary last-write-wins against whatever the store holds, the
// sweep tombstones included. A backup record comes back live only if it is
// newer than the stored version (or nothing is stored under its id). Anything
// a device writes after the sweep with a later timestamp keeps winning over a
// stale backup entry.
//
// Restored counts how many backup records were accepted.
func (e *Engine) Restore(ctx context.Context, userID, deviceID string, data Batch) (*RestoreResult, error) {
	sweepAt := e.clock()

	var swept int64
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		sweeps := []func() (int64, error){
			func() (int64, error) { return tx.Spaces().SoftDeleteAll(ctx, userID, deviceID, sweepAt) },
			func() (int64, error) { return tx.Categories().SoftDeleteAll(ctx, userID, deviceID, sweepAt) },
			func() (int64, error) { return tx.Items().SoftDeleteAll(ctx, userID, deviceID, sweepAt) },
			func() (int64, error) { return tx.Preferences().SoftDeleteAll(ctx, userID, deviceID, sweepAt) },
		}
		for _, sweep := range sweeps {
			n, err := sweep()
			if err != nil {
				return err
			}
			swept += n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore sweep: %w", err)
	}

	t := newTally()
	if err := e.apply(ctx, e.store, applyParams{
		userID:   userID,
		deviceID: deviceID,
		now:      e.clock(),
	}, data, t); err != nil {
		return nil, err
	}

	e.logger.Info("restore completed",
		"user_id", userID,
		"device_id", deviceID,
		"swept", swept,
		"restored", t.accepted.Total(),
		"rejected", t.rejected.Total(),
		"conflicts", len(t.conflicts),
		"sweep_at", sweepAt.Format(time.RFC3339Nano),
	)

	return &RestoreResult{Restored: t.accepted}, nil
}
