package services

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/logging"
	"github.com/jsvoboda/authd/internal/server/auth"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/repomanager"
	"github.com/jsvoboda/authd/internal/server/secret"
)

// --- helpers ---

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func newTokenManager(t *testing.T) *auth.Manager {
	t.Helper()
	cfg := &config.Config{JWTSecret: strings.Repeat("k", 32), DataDir: t.TempDir()}
	return auth.NewManager(secret.NewProvider(cfg, testLogger()), 15*time.Minute)
}

// newTestService wires a SessionService over the in-memory repository
// manager. The sqlmock DB only carries transaction begin/commit calls.
func newTestService(t *testing.T, rm repomanager.RepositoryManager) (*SessionService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)

	cfg := &config.Config{RefreshTokenTTL: 7 * 24 * time.Hour}
	svc := NewSessionService(db, rm, newTokenManager(t), testLogger(), cfg)
	return svc, mock, db
}

// hookManager lets a test interleave a side effect between the live
// lookup and the conditional revoke, simulating a concurrent rotation.
type hookManager struct {
	repomanager.RepositoryManager
	refresh refreshtokens.Repository
}

func (m *hookManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}

type hookRepo struct {
	refreshtokens.Repository
	beforeCAS func()
}

func (r *hookRepo) RevokeAndReplace(ctx context.Context, token, successor string) (bool, error) {
	if r.beforeCAS != nil {
		r.beforeCAS()
	}
	return r.Repository.RevokeAndReplace(ctx, token, successor)
}

// --- registration and login ---

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"short name", "A", "a@x.com", "secret1"},
		{"bad email", "Alice", "not-an-email", "secret1"},
		{"short password", "Alice", "a@x.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.userName, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, autherr.KindValidation, autherr.KindOf(err))
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other Alice", "A@X.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, autherr.KindValidation, autherr.KindOf(err))
}

func TestRegister_IssuesSessionPair(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	pair, err := svc.Register(ctx, "  Alice  ", "A@X.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", pair.User.Email)
	assert.Equal(t, "Alice", pair.User.Name)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, pair.RefreshToken, refreshTokenBytes*2)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), pair.RefreshExpiresAt, time.Minute)
}

func TestLogin_UniformFailure(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@x.com", "secret1")
	_, wrongErr := svc.Login(ctx, "a@x.com", "wrong")

	// unknown email and wrong password are indistinguishable
	assert.ErrorIs(t, unknownErr, autherr.ErrAuth)
	assert.ErrorIs(t, wrongErr, autherr.ErrAuth)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLogin_Success(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

// --- rotation ---

func TestRefresh_RotatesAndInvalidatesPredecessor(t *testing.T) {
	svc, mock, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.Equal(t, pair.User.ID, rotated.User.ID)

	// the original token is now dead and indistinguishable from unknown
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)
}

func TestRefresh_PicksUpRoleChanges(t *testing.T) {
	rm := repomanager.NewInMemoryRepositoryManager()
	svc, mock, _ := newTestService(t, rm)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, rm.Users(nil).SetAdmin(ctx, pair.User.ID, true))

	mock.ExpectBegin()
	mock.ExpectCommit()

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, rotated.User.IsAdmin)
}

func TestRefresh_UnknownAndEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "no-such-token")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)

	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)
}

func TestRefresh_Expired(t *testing.T) {
	rm := repomanager.NewInMemoryRepositoryManager()
	svc, _, _ := newTestService(t, rm)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	// a live but expired row must report expiration, not invalidity
	require.NoError(t, rm.RefreshTokens(nil).Insert(ctx, pair.User.ID, "stale", time.Now().Add(-time.Minute), nil))

	_, err = svc.Refresh(ctx, "stale")
	assert.ErrorIs(t, err, autherr.ErrExpiredCredential)
}

func TestRefresh_AfterLogout(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	svc.Logout(ctx, pair.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)

	// logout stays idempotent
	svc.Logout(ctx, pair.RefreshToken)
	svc.Logout(ctx, "")
}

func TestRefresh_LostRaceFailsAsInvalid(t *testing.T) {
	inner := repomanager.NewInMemoryRepositoryManager()
	store := inner.RefreshTokens(nil)

	ctx := context.Background()

	hooked := &hookRepo{Repository: store}
	rm := &hookManager{RepositoryManager: inner, refresh: hooked}
	svc, mock, _ := newTestService(t, rm)

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	// between FindLive and the conditional revoke, a concurrent caller
	// rotates the same token
	hooked.beforeCAS = func() {
		hooked.beforeCAS = nil
		ok, casErr := store.RevokeAndReplace(ctx, pair.RefreshToken, "winner")
		require.NoError(t, casErr)
		require.True(t, ok)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredential)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = store.FindLive(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, refreshtokens.ErrNotFound)
}

// --- current user ---

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newTestService(t, repomanager.NewInMemoryRepositoryManager())
	ctx := context.Background()

	pair, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	user, err := svc.CurrentUser(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)

	_, err = svc.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)
}
