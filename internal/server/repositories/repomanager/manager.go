// Package repomanager wires repository constructors together and
// exposes the schema migration hook. Repositories are vended per DBTX
// so services can bind them either to the pool or to an open
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations.
type RepositoryManager interface {
	// Users returns a users.Repository bound to the provided DBTX.
	Users(db dbx.DBTX) users.Repository

	// RefreshTokens returns a refreshtokens.Repository. SQL-backed
	// managers bind it to the provided DBTX; managers with a fixed
	// store (Redis, in-memory) ignore the argument.
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository

	// RunMigrations brings the database schema up to date.
	RunMigrations(ctx context.Context, db *sql.DB) error
}
