package engine

import (
	"time"

	"github.com/sakif/spacesync/internal/model"
)

// BackupVersion is stamped on every snapshot so future formats can be told apart.
const BackupVersion = "1.0"

// ConflictReason says why a record was not written.
type ConflictReason string

const (
	// ReasonOlderTimestamp: the stored version is at least as new.
	ReasonOlderTimestamp ConflictReason = "OLDER_TIMESTAMP"
	// ReasonOwnershipMismatch: record.userId is not the caller. Counted as
	// rejected but never reported in the conflict list.
	ReasonOwnershipMismatch ConflictReason = "OWNERSHIP_MISMATCH"
)

// Batch is a set of incoming records grouped by entity type.
// It is the push payload's "changes" and the restore payload's "backupData".
type Batch struct {
	Spaces      []*model.Space     `json:"spaces"`
	Categories  []*model.Category  `json:"categories"`
	Items       []*model.Item      `json:"items"`
	Preferences *model.Preferences `json:"preferences,omitempty"`
}

// Counts holds one counter per entity type.
type Counts struct {
	Spaces      int `json:"spaces"`
	Categories  int `json:"categories"`
	Items       int `json:"items"`
	Preferences int `json:"preferences"`
}

func (c *Counts) inc(kind model.EntityType) {
	switch kind {
	case model.EntitySpaces:
		c.Spaces++
	case model.EntityCategories:
		c.Categories++
	case model.EntityItems:
		c.Items++
	case model.EntityPreferences:
		c.Preferences++
	}
}

// Total sums every entity type.
func (c Counts) Total() int {
	return c.Spaces + c.Categories + c.Items + c.Preferences
}

// Conflict describes one record rejected because the server holds a version
// at least as new.
type Conflict struct {
	ID              string           `json:"id"`
	EntityType      model.EntityType `json:"entityType"`
	Reason          ConflictReason   `json:"reason"`
	ServerUpdatedAt time.Time        `json:"serverUpdatedAt"`
	ClientUpdatedAt time.Time        `json:"clientUpdatedAt"`
}

// PushResult is returned by Push.
type PushResult struct {
	SyncedAt  time.Time  `json:"syncedAt"`
	Conflicts []Conflict `json:"conflicts"`
	Accepted  Counts     `json:"accepted"`
	Rejected  Counts     `json:"rejected"`
}

// Changes is the per-type delta returned by Pull.
type Changes struct {
	Spaces      []*model.Space     `json:"spaces"`
	Categories  []*model.Category  `json:"categories"`
	Items       []*model.Item      `json:"items"`
	Preferences *model.Preferences `json:"preferences"`
}

// PullResult is returned by Pull. HasMore is always false: a pull returns the
// complete matching set.
type PullResult struct {
	SyncedAt time.Time `json:"syncedAt"`
	Changes  Changes   `json:"changes"`
	HasMore  bool      `json:"hasMore"`
}

// Snapshot is a full export of one user's data, deleted records included.
// ArchiveKey is set when the snapshot was also written to the archive.
type Snapshot struct {
	BackupAt    time.Time          `json:"backupAt"`
	Version     string             `json:"version"`
	UserID      string             `json:"userId"`
	Spaces      []*model.Space     `json:"spaces"`
	Categories  []*model.Category  `json:"categories"`
	Items       []*model.Item      `json:"items"`
	Preferences *model.Preferences `json:"preferences"`
	ArchiveKey  string             `json:"archiveKey,omitempty"`
}

// RestoreResult reports how many backup records won during replay.
type RestoreResult struct {
	Restored Counts `json:"restored"`
}

// tally accumulates the outcome of one push or replay.
type tally struct {
	accepted  Counts
	rejected  Counts
	conflicts []Conflict
}

func newTally() *tally {
	return &tally{conflicts: []Conflict{}}
}
