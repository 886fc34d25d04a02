// Package model defines the domain structs shared by the repository,
// service, and handler layers.
package model

import "time"

// User represents a registered account.
//
// Users sign up with email and password, or through Google sign-in. For
// Google accounts PasswordHash stays empty and GoogleID carries Google's
// stable subject identifier (the UNIQUE constraint on google_id in the DB
// ensures one Google account maps to exactly one app account).
//
// PasswordHash is tagged `json:"-"` so it can never appear in a response —
// encoding/json skips the field entirely.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"` // empty for password accounts
	CreatedAt    time.Time `json:"createdAt"`
}
