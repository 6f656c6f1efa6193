package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/spacesync/internal/model"
	"golang.org/x/sync/errgroup"
)

// Pull returns every record of userID changed after since that was not last
// written by deviceID. A zero since means "from the beginning".
//
// The device's own writes are filtered out (echo suppression): a device must
// never re-apply its own change as if it came from elsewhere. Soft-deleted
// records are returned like live ones.
//
// syncedAt is taken before the queries run. A write that lands while the
// queries are in flight will then be picked up by the next pull instead of
// falling between two watermarks.
func (e *Engine) Pull(ctx context.Context, userID, deviceID string, since time.Time) (*PullResult, error) {
	syncedAt := e.clock()
	since = model.NormalizeTime(since)

	var res PullResult
	res.SyncedAt = syncedAt

	// The four tables are independent and read-only here, so query them
	// concurrently. errgroup cancels the siblings on the first error.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.Changes.Spaces, err = e.store.Spaces().ChangedSince(gctx, userID, since, deviceID)
		return err
	})
	g.Go(func() (err error) {
		res.Changes.Categories, err = e.store.Categories().ChangedSince(gctx, userID, since, deviceID)
		return err
	})
	g.Go(func() (err error) {
		res.Changes.Items, err = e.store.Items().ChangedSince(gctx, userID, since, deviceID)
		return err
	})
	g.Go(func() error {
		prefs, err := e.store.Preferences().ChangedSince(gctx, userID, since, deviceID)
		if err != nil {
			return err
		}
		if len(prefs) > 0 {
			res.Changes.Preferences = prefs[0]
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	e.logger.Debug("pull served",
		"user_id", userID,
		"device_id", deviceID,
		"since", since,
		"spaces", len(res.Changes.Spaces),
		"categories", len(res.Changes.Categories),
		"items", len(res.Changes.Items),
	)
	return &res, nil
}
