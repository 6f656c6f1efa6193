// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leave the server. The "-" tag makes encoding/json skip
// the field entirely, so even an accidental writeJSON(w, 200, user) is safe.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
