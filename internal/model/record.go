// Package model defines the data structures used throughout the application.
//
// SYNCABLE RECORDS:
// Every entity a device can sync (Space, Category, Item, Preferences) embeds
// SyncMeta, the six fields the sync engine reads to make decisions. The rest
// of each struct is payload: the engine persists it untouched.
//
// Go has no inheritance, so we use EMBEDDING: a Space "has" a SyncMeta and
// its fields are promoted, so space.UpdatedAt works directly and the JSON
// encoder flattens them into the same object:
//
//	{"id":"space_1","userId":"u1","deleted":false,"deviceId":"phone",
//	 "createdAt":"...","updatedAt":"...","name":"Home",...}
package model

import "time"

// EntityType names one of the synced collections. The values double as the
// JSON keys of the push/pull/backup payloads.
type EntityType string

const (
	EntitySpaces      EntityType = "spaces"
	EntityCategories  EntityType = "categories"
	EntityItems       EntityType = "items"
	EntityPreferences EntityType = "preferences"
)

// EntityTypes lists every synced collection in processing order.
// Spaces go first so that categories and items referencing them arrive after.
var EntityTypes = []EntityType{EntitySpaces, EntityCategories, EntityItems, EntityPreferences}

// TimestampPrecision is the resolution all sync timestamps are truncated to
// before they are compared or stored.
const TimestampPrecision = time.Millisecond

// SyncMeta holds the fields shared by every syncable record.
//
//   - ID is client-generated and never reused; (ID, UserID) is the primary key.
//   - Deleted is a soft-delete flag. A deleted record keeps syncing.
//   - DeviceID identifies the device that wrote the current version.
//   - UpdatedAt is the only input to conflict resolution.
type SyncMeta struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Deleted   bool      `json:"deleted"`
	DeviceID  string    `json:"deviceId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Meta returns the embedded metadata. Because the method is promoted through
// embedding, *Space, *Category, *Item and *Preferences all get it for free.
func (m *SyncMeta) Meta() *SyncMeta { return m }

// Record is implemented by the four syncable entity types (and nothing else).
type Record interface {
	Meta() *SyncMeta
	Kind() EntityType
}

// NormalizeTime converts t to UTC at TimestampPrecision so that two instants
// from different time zones compare as absolute points in time.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(TimestampPrecision)
}
