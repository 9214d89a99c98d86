package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/server/migrations"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories. When
// a fixed refresh-token store is supplied (the Redis deployment
// profile), it is returned as-is; users always live in PostgreSQL.
type PostgresRepositoryManager struct {
	refresh refreshtokens.Repository
}

// NewPostgresRepositoryManager constructs a manager whose repositories
// are all bound to the DBTX handed to each call.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// NewPostgresRepositoryManagerWithRefreshStore constructs a manager
// that vends the given fixed refresh-token store instead of the
// SQL-backed one.
func NewPostgresRepositoryManagerWithRefreshStore(refresh refreshtokens.Repository) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{refresh: refresh}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	if m.refresh != nil {
		return m.refresh
	}
	return refreshtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing RunMigrations.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies
// them against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
