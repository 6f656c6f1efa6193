package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// Push applies a device's batch of changes.
//
// Each record is handled on its own:
//
//  1. record.userId must be the caller, otherwise it is rejected without a
//     conflict entry (it is not a legitimate peer update).
//  2. the stored version is looked up by (id, userID).
//  3. Resolve decides. On Accept the record is written with userId and
//     deviceId forced to the caller, so provenance cannot be spoofed. On
//     Reject an OLDER_TIMESTAMP conflict is reported.
//
// A storage error on one record is logged and counted as rejected; the rest
// of the batch still runs. The only error Push returns is the context's.
//
// Records in batch are modified in place (normalised timestamps, forced
// owner fields).
func (e *Engine) Push(ctx context.Context, userID, deviceID string, batch Batch) (*PushResult, error) {
	syncedAt := e.clock()

	t := newTally()
	if err := e.apply(ctx, e.store, applyParams{
		userID:   userID,
		deviceID: deviceID,
		now:      syncedAt,
	}, batch, t); err != nil {
		return nil, err
	}

	e.logger.Info("push processed",
		"user_id", userID,
		"device_id", deviceID,
		"accepted", t.accepted.Total(),
		"rejected", t.rejected.Total(),
		"conflicts", len(t.conflicts),
	)

	return &PushResult{
		SyncedAt:  syncedAt,
		Conflicts: t.conflicts,
		Accepted:  t.accepted,
		Rejected:  t.rejected,
	}, nil
}

// applyParams are the per-call inputs shared by every record of a batch.
type applyParams struct {
	userID   string
	deviceID string
	// now becomes createdAt for records that did not exist yet.
	now time.Time
}

// apply runs one batch through the push pipeline, type by type.
// Spaces go first so parents land before the categories and items pointing
// at them.
func (e *Engine) apply(ctx context.Context, store repository.Store, p applyParams, batch Batch, t *tally) error {
	if err := applyRecords(ctx, e, store.Spaces(), p, batch.Spaces, t); err != nil {
		return err
	}
	if err := applyRecords(ctx, e, store.Categories(), p, batch.Categories, t); err != nil {
		return err
	}
	if err := applyRecords(ctx, e, store.Items(), p, batch.Items, t); err != nil {
		return err
	}
	if batch.Preferences != nil {
		// Preferences are a per-user singleton keyed by the owner.
		batch.Preferences.ID = p.userID
		prefs := []*model.Preferences{batch.Preferences}
		if err := applyRecords(ctx, e, store.Preferences(), p, prefs, t); err != nil {
			return err
		}
	}
	return nil
}

// applyRecords is generic so that the same loop serves all four entity types.
func applyRecords[T model.Record](ctx context.Context, e *Engine, store repository.RecordStore[T], p applyParams, recs []T, t *tally) error {
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		applyRecord(ctx, e, store, p, rec, t)
	}
	return nil
}

func applyRecord[T model.Record](ctx context.Context, e *Engine, store repository.RecordStore[T], p applyParams, rec T, t *tally) {
	m := rec.Meta()
	kind := rec.Kind()
	log := e.logger.With("entity_type", kind, "id", m.ID, "user_id", p.userID)

	if m.UserID != p.userID {
		log.Warn("record rejected", "reason", ReasonOwnershipMismatch, "record_user_id", m.UserID)
		t.rejected.inc(kind)
		return
	}

	m.UpdatedAt = model.NormalizeTime(m.UpdatedAt)

	existing, err := store.Get(ctx, p.userID, m.ID)
	var stored *model.SyncMeta
	switch {
	case err == nil:
		stored = existing.Meta()
	case errors.Is(err, apperror.ErrNotFound):
		// first write of this record
	default:
		log.Error("looking up record", "error", err)
		t.rejected.inc(kind)
		return
	}

	decision := Resolve(m, stored)
	if decision == Reject {
		log.Debug("stale record", "decision", decision.String(),
			"client_updated_at", m.UpdatedAt, "server_updated_at", stored.UpdatedAt)
		t.rejected.inc(kind)
		t.conflicts = append(t.conflicts, Conflict{
			ID:              m.ID,
			EntityType:      kind,
			Reason:          ReasonOlderTimestamp,
			ServerUpdatedAt: stored.UpdatedAt,
			ClientUpdatedAt: m.UpdatedAt,
		})
		return
	}

	m.UserID = p.userID
	m.DeviceID = p.deviceID
	if stored != nil {
		m.CreatedAt = stored.CreatedAt
	} else {
		m.CreatedAt = p.now
	}

	ok, err := store.Save(ctx, rec)
	if err != nil {
		log.Error("saving record", "error", err)
		t.rejected.inc(kind)
		return
	}
	if !ok {
		// A concurrent writer stored a version at least as new between our
		// Get and Save. Report it like any other stale write.
		var serverAt time.Time
		if current, err := store.Get(ctx, p.userID, m.ID); err == nil {
			serverAt = current.Meta().UpdatedAt
		}
		log.Info("lost write race", "decision", Reject.String(), "client_updated_at", m.UpdatedAt, "server_updated_at", serverAt)
		t.rejected.inc(kind)
		t.conflicts = append(t.conflicts, Conflict{
			ID:              m.ID,
			EntityType:      kind,
			Reason:          ReasonOlderTimestamp,
			ServerUpdatedAt: serverAt,
			ClientUpdatedAt: m.UpdatedAt,
		})
		return
	}

	log.Debug("record stored", "decision", decision.String(), "created", stored == nil)
	t.accepted.inc(kind)
}
