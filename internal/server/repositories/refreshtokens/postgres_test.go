package refreshtokens

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`

	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "u1", "tok123", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), "u1", "tok123", time.Now().Add(7*24*time.Hour), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLive_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s*$`

	expires := time.Now().Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "created_at", "expires_at", "replaced_by", "revoked_at"}).
		AddRow("id1", "u1", "tok123", time.Now(), expires, nil, nil)
	mock.ExpectQuery(q).WithArgs("tok123").WillReturnRows(rows)

	row, err := repo.FindLive(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "u1", row.UserID)
	assert.True(t, row.Live())
	assert.Nil(t, row.ReplacedBy)
}

func TestFindLive_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+.*FROM\s+refresh_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLive(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke_IdempotentOnUnknownToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*now\(\)\s+WHERE\s+token\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s*$`

	mock.ExpectExec(q).WithArgs("unknown").WillReturnResult(sqlmock.NewResult(0, 0))

	// zero affected rows is not an error
	err := repo.Revoke(context.Background(), "unknown")
	assert.NoError(t, err)
}

func TestRevokeAndReplace_WinsWhenLive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*now\(\),\s*replaced_by\s*=\s*\$1\s+WHERE\s+token\s*=\s*\$2\s+AND\s+revoked_at\s+IS\s+NULL\s*$`

	mock.ExpectExec(q).WithArgs("successor", "tok123").WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.RevokeAndReplace(context.Background(), "tok123", "successor")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeAndReplace_LosesWhenAlreadyDead(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens\s+SET\s+revoked_at`).
		WithArgs("successor", "tok123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.RevokeAndReplace(context.Background(), "tok123", "successor")
	require.NoError(t, err)
	assert.False(t, ok)
}
