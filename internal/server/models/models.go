// Package models defines server-side data models persisted in the
// database.
package models

import "time"

// User is an account row. Emails are stored lowercased and unique.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// RefreshToken is one row of the refresh-token store. A row is live
// while RevokedAt is nil and dead afterwards; a dead row's ReplacedBy
// names the successor minted by the rotation that killed it, or stays
// nil when the row was revoked by logout. ExpiresAt is fixed at
// creation and never extended.
type RefreshToken struct {
	ID         string
	UserID     string
	Token      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ReplacedBy *string
	RevokedAt  *time.Time
}

// Live reports whether the token has not been revoked yet. Expiry is a
// separate check; an expired row can still be live.
func (t *RefreshToken) Live() bool {
	return t.RevokedAt == nil
}
