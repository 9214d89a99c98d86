package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/server/models"
)

// PostgresRepository is the PostgreSQL implementation of Repository.
// It can be bound to a *sql.DB or to an open transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, userID, token string, expiresAt time.Time, replacedBy *string) error {

	query :=
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at, replaced_by)
         VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, token, expiresAt, replacedBy)

	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

func (r *PostgresRepository) FindLive(ctx context.Context, token string) (*models.RefreshToken, error) {

	query :=
		`SELECT id, user_id, token, created_at, expires_at, replaced_by, revoked_at
         FROM refresh_tokens
         WHERE token = $1 AND revoked_at IS NULL
		 `

	var (
		row        models.RefreshToken
		replacedBy sql.NullString
		revokedAt  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&row.ID, &row.UserID, &row.Token, &row.CreatedAt, &row.ExpiresAt, &replacedBy, &revokedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	if replacedBy.Valid {
		row.ReplacedBy = &replacedBy.String
	}
	if revokedAt.Valid {
		row.RevokedAt = &revokedAt.Time
	}

	return &row, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, token string) error {

	query :=
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE token = $1 AND revoked_at IS NULL
		 `

	_, err := r.db.ExecContext(ctx, query, token)

	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	return nil
}

// RevokeAndReplace is the compare-and-swap at the core of rotation: the
// revocation predicate re-checks revoked_at IS NULL inside the UPDATE
// itself, so of any number of concurrent rotations of the same token
// exactly one sees one affected row.
func (r *PostgresRepository) RevokeAndReplace(ctx context.Context, token, successor string) (bool, error) {

	query :=
		`UPDATE refresh_tokens SET revoked_at = now(), replaced_by = $1
         WHERE token = $2 AND revoked_at IS NULL
		 `

	result, err := r.db.ExecContext(ctx, query, successor, token)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %v", err)
	}

	return affected == 1, nil
}
