package repomanager

import (
	"context"
	"database/sql"

	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/users"
)

// InMemoryRepositoryManager vends stable in-memory repositories
// regardless of the DBTX argument. Used by tests and tooling dry runs.
type InMemoryRepositoryManager struct {
	users   *users.InMemoryRepository
	refresh *refreshtokens.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:   users.NewInMemoryRepository(),
		refresh: refreshtokens.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}
