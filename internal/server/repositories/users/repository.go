// Package users declares the repository contract for account rows. The
// session core references users by identifier only; this package is its
// user-lookup collaborator.
package users

import (
	"context"
	"errors"

	"github.com/jsvoboda/authd/internal/server/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when an insert collides on email.
	ErrEmailTaken = errors.New("email already taken")
)

// Repository defines operations for creating and looking up users.
type Repository interface {
	// Create inserts a new user and returns it with ID and CreatedAt
	// assigned. The email must already be lowercased by the caller.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail looks a user up by lowercased email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID looks a user up by identifier. Rotation re-reads identity
	// through this method so role changes take effect on next rotation.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SetAdmin flips the admin flag on an existing user.
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}
