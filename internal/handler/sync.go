package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/auth"
	"github.com/sakif/spacesync/internal/engine"
	"github.com/sakif/spacesync/internal/model"
)

// SyncEngine is what SyncHandler needs from the engine. *engine.Engine
// satisfies it; tests pass a fake.
type SyncEngine interface {
	Push(ctx context.Context, userID, deviceID string, batch engine.Batch) (*engine.PushResult, error)
	Pull(ctx context.Context, userID, deviceID string, since time.Time) (*engine.PullResult, error)
	Backup(ctx context.Context, userID string) (*engine.Snapshot, error)
	Restore(ctx context.Context, userID, deviceID string, data engine.Batch) (*engine.RestoreResult, error)
}

var _ SyncEngine = (*engine.Engine)(nil)

// SyncHandler exposes push, pull, backup and restore over HTTP.
//
// Every route sits behind auth.RequireAuth: the user ID always comes from the
// token, never from the body. The handler's job is to turn the wire format
// into engine calls and reject malformed requests with a stable code before
// the engine sees them.
type SyncHandler struct {
	engine SyncEngine
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(engine SyncEngine, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// pushRequest is the body of POST /api/sync/push.
//
// lastSyncAt is accepted for compatibility but plays no part in conflict
// resolution: only each record's updatedAt does.
type pushRequest struct {
	DeviceID   string        `json:"deviceId"`
	LastSyncAt *time.Time    `json:"lastSyncAt"`
	Changes    *engine.Batch `json:"changes"`
}

// restoreRequest is the body of POST /api/sync/restore. backupData is the
// object returned by a backup; its metadata fields are ignored.
type restoreRequest struct {
	DeviceID   string        `json:"deviceId"`
	BackupData *engine.Batch `json:"backupData"`
}

// HandlePush applies a device's local changes.
//
// HTTP: POST /api/sync/push
// Auth: required
//
// A rejected record is not a request failure: the response is still 200 with
// the record in "conflicts" (or counted in "rejected" for ownership problems).
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req pushRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.DeviceID == "" {
		h.fail(w, r, missingDeviceID())
		return
	}
	if req.Changes == nil {
		h.fail(w, r, apperror.InvalidRequest(apperror.CodeMissingChanges, "changes", "changes is required"))
		return
	}
	if err := validateBatch("changes", req.Changes); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Push(r.Context(), userID, req.DeviceID, *req.Changes)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandlePull returns everything other devices changed after lastSyncAt.
//
// HTTP: GET /api/sync/pull?deviceId=phone&lastSyncAt=2024-03-01T12:00:00Z
// Auth: required
//
// A missing lastSyncAt means "from the beginning": a fresh device gets the
// user's full state, tombstones included.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	deviceID := q.Get("deviceId")
	if deviceID == "" {
		h.fail(w, r, missingDeviceID())
		return
	}

	var since time.Time
	if raw := q.Get("lastSyncAt"); raw != "" {
		t, err := parseQueryTime(raw)
		if err != nil {
			h.fail(w, r, apperror.InvalidRequest(apperror.CodeInvalidTimestamp, "lastSyncAt",
				"lastSyncAt must be an ISO-8601 timestamp"))
			return
		}
		since = t
	}

	res, err := h.engine.Pull(r.Context(), userID, deviceID, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleBackup exports every record the user owns, deleted ones included.
//
// HTTP: POST /api/sync/backup
// Auth: required
func (h *SyncHandler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	snap, err := h.engine.Backup(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// HandleRestore replaces the user's live data with a backup.
//
// HTTP: POST /api/sync/restore
// Auth: required
func (h *SyncHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req restoreRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.DeviceID == "" {
		h.fail(w, r, missingDeviceID())
		return
	}
	if req.BackupData == nil {
		h.fail(w, r, apperror.InvalidRequest(apperror.CodeMissingBackupData, "backupData", "backupData is required"))
		return
	}
	if err := validateBatch("backupData", req.BackupData); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Restore(r.Context(), userID, req.DeviceID, *req.BackupData)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// requireUser reads the user ID RequireAuth put in the context. It only
// fails if the route was mounted without the middleware.
func (h *SyncHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return userID, true
}

// fail writes err and logs it: server faults at Error, client mistakes at Debug.
func (h *SyncHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := writeError(w, err)
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("sync request failed", attrs...)
		return
	}
	h.logger.Debug("sync request rejected", attrs...)
}

func missingDeviceID() error {
	return apperror.InvalidRequest(apperror.CodeMissingDeviceID, "deviceId", "deviceId is required")
}

// decodeJSON decodes one JSON object from body into dst and classifies
// failures: bad timestamps get INVALID_TIMESTAMP, bodies over the
// MaxBytesReader limit get 413, everything else INVALID_JSON.
func decodeJSON(body io.Reader, dst any) error {
	err := json.NewDecoder(body).Decode(dst)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.TooLarge(tooLarge.Limit)
	}
	if isTimeError(err) {
		return apperror.InvalidRequest(apperror.CodeInvalidTimestamp, "",
			"timestamps must be ISO-8601 strings: "+err.Error())
	}
	return apperror.InvalidRequest(apperror.CodeInvalidJSON, "", "request body is not valid JSON")
}

// isTimeError reports whether err came from time.Time.UnmarshalJSON.
func isTimeError(err error) bool {
	var perr *time.ParseError
	return errors.As(err, &perr) || strings.HasPrefix(err.Error(), "Time.UnmarshalJSON")
}

// validateBatch rejects records the engine cannot reason about: null
// entries, records without an id, and records without updatedAt. field
// prefixes the reported location, e.g. "changes.items[2]".
func validateBatch(field string, b *engine.Batch) error {
	if err := validateRecords(field, model.EntitySpaces, b.Spaces); err != nil {
		return err
	}
	if err := validateRecords(field, model.EntityCategories, b.Categories); err != nil {
		return err
	}
	if err := validateRecords(field, model.EntityItems, b.Items); err != nil {
		return err
	}
	if b.Preferences != nil {
		return validateMeta(fmt.Sprintf("%s.%s", field, model.EntityPreferences), b.Preferences.Meta())
	}
	return nil
}

func validateRecords[T model.Record](field string, kind model.EntityType, recs []T) error {
	var null T
	for i, rec := range recs {
		at := fmt.Sprintf("%s.%s[%d]", field, kind, i)
		if any(rec) == any(null) {
			return apperror.InvalidRequest(apperror.CodeInvalidRecord, at, "record must be an object")
		}
		if err := validateMeta(at, rec.Meta()); err != nil {
			return err
		}
	}
	return nil
}

func validateMeta(at string, m *model.SyncMeta) error {
	if m.ID == "" {
		return apperror.InvalidRequest(apperror.CodeInvalidRecord, at+".id", "id is required")
	}
	if m.UpdatedAt.IsZero() {
		return apperror.InvalidRequest(apperror.CodeInvalidRecord, at+".updatedAt", "updatedAt is required")
	}
	// Timestamps are stored as Unix milliseconds; zero and below do not
	// round-trip.
	if m.UpdatedAt.UnixMilli() <= 0 {
		return apperror.InvalidRequest(apperror.CodeInvalidTimestamp, at+".updatedAt",
			"updatedAt must be after 1970-01-01T00:00:00Z")
	}
	return nil
}

// parseQueryTime parses an RFC 3339 timestamp from a query string. An
// unencoded "+01:00" offset arrives as " 01:00" after query decoding, so a
// single space is read back as the plus sign.
func parseQueryTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil && strings.Count(raw, " ") == 1 {
		return time.Parse(time.RFC3339Nano, strings.Replace(raw, " ", "+", 1))
	}
	return t, err
}
