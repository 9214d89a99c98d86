// Package refreshtokens declares the server-side contract for the
// durable refresh-token store: insertion, live lookup, revocation, and
// the conditional revoke-and-replace write that rotation depends on.
package refreshtokens

import (
	"context"
	"errors"
	"time"

	"github.com/jsvoboda/authd/internal/server/models"
)

// ErrNotFound is returned when no live row matches the token. Dead
// (revoked or rotated) tokens look exactly like unknown ones so the
// caller cannot probe revocation state.
var ErrNotFound = errors.New("refresh token not found")

// Repository defines operations on refresh-token rows. All mutations of
// a given row are conditional on its current revocation state, so
// concurrent callers cannot both observe a row as live and both kill it.
type Repository interface {
	// Insert appends a new live row. The token value must be unique
	// and unguessable; expiresAt is fixed for the life of the row.
	// replacedBy is nil everywhere except backfill tooling; rotation
	// links rows through RevokeAndReplace instead.
	Insert(ctx context.Context, userID, token string, expiresAt time.Time, replacedBy *string) error

	// FindLive returns the row only if it has not been revoked.
	FindLive(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the row dead. Idempotent: revoking an already-dead
	// or unknown token is not an error. Used by logout.
	Revoke(ctx context.Context, token string) error

	// RevokeAndReplace atomically marks the row dead and records its
	// successor, conditioned on the row still being live at the moment
	// of the write. It reports false when the row was already dead or
	// absent, meaning a concurrent rotation won.
	RevokeAndReplace(ctx context.Context, token, successor string) (bool, error)
}
