// Package services contains server-side business logic. This file
// implements SessionService: registration, login, refresh-token
// rotation, and logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/dbx"
	"github.com/jsvoboda/authd/internal/logging"
	"github.com/jsvoboda/authd/internal/server/auth"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/server/models"
	"github.com/jsvoboda/authd/internal/server/password"
	"github.com/jsvoboda/authd/internal/server/repositories/refreshtokens"
	"github.com/jsvoboda/authd/internal/server/repositories/repomanager"
	usersrepo "github.com/jsvoboda/authd/internal/server/repositories/users"
	"github.com/jsvoboda/authd/internal/shared"
)

// refreshTokenBytes random bytes per refresh token, hex-encoded.
const refreshTokenBytes = 40

// ErrEmailExists is the duplicate-registration failure. Validation
// kind, but transports map it to a conflict status.
var ErrEmailExists = autherr.New(autherr.KindValidation, "a user with this email already exists")

// SessionPair bundles everything a successful login, registration, or
// rotation hands back to the transport layer.
type SessionPair struct {
	User             *models.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionService provides the authentication operations:
//   - Register / Login: mint an access+refresh pair
//   - Refresh: rotate a presented refresh token
//   - Logout: revoke a refresh token
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.Manager
	logger      logging.Logger
	refreshTTL  time.Duration
}

// NewSessionService constructs a SessionService using repositories and
// server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.Manager, logger logging.Logger, cfg *config.Config) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		logger:      logger.With("module", "sessions"),
		refreshTTL:  cfg.RefreshTokenTTL,
	}
}

// Register validates the profile, stores the user with a hashed
// password, and returns a fresh session pair.
func (s *SessionService) Register(ctx context.Context, name, email, plainPassword string) (*SessionPair, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return nil, autherr.New(autherr.KindValidation, "name must be at least 2 characters")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, autherr.New(autherr.KindValidation, "enter a valid email address")
	}
	if len(plainPassword) < 6 {
		return nil, autherr.New(autherr.KindValidation, "password must be at least 6 characters")
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, usersrepo.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info(ctx, "new user registered", "email", user.Email)

	return s.issueSessionPair(ctx, user)
}

// Login verifies the credentials and returns a new session pair. The
// failure is identical whether the email is unknown or the password is
// wrong.
func (s *SessionService) Login(ctx context.Context, email, plainPassword string) (*SessionPair, error) {
	if email == "" || plainPassword == "" {
		return nil, autherr.New(autherr.KindValidation, "enter email and password")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, usersrepo.ErrNotFound) {
			return nil, autherr.ErrAuth
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		return nil, autherr.ErrAuth
	}

	return s.issueSessionPair(ctx, user)
}

// Refresh exchanges a presented refresh token for a new access+refresh
// pair, enforcing single-use semantics. Unknown, already-rotated, and
// revoked tokens fail identically; only an unrevoked row past its
// expiry reports expiration. The revocation itself is a conditional
// write re-checking liveness, so two concurrent rotations of the same
// token cannot both succeed.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*SessionPair, error) {
	if presented == "" {
		return nil, autherr.ErrInvalidCredential
	}

	repo := s.repomanager.RefreshTokens(s.db)

	row, err := repo.FindLive(ctx, presented)
	if err != nil {
		if errors.Is(err, refreshtokens.ErrNotFound) {
			return nil, autherr.ErrInvalidCredential
		}
		return nil, fmt.Errorf("error searching refresh token: %v", err)
	}
	if row.ExpiresAt.Before(time.Now()) {
		return nil, autherr.ErrExpiredCredential
	}

	successor, err := shared.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	expiresAt := time.Now().Add(s.refreshTTL)

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		ok, casErr := repoTx.RevokeAndReplace(ctx, presented, successor)
		if casErr != nil {
			return casErr
		}
		if !ok {
			// a concurrent rotation won; behave as if the token were
			// already rotated
			return autherr.ErrInvalidCredential
		}
		return repoTx.Insert(ctx, row.UserID, successor, expiresAt, nil)
	}); err != nil {
		return nil, err
	}

	// re-read the identity so role changes take effect on rotation,
	// not only on the next login
	user, err := s.repomanager.Users(s.db).GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, usersrepo.ErrNotFound) {
			return nil, autherr.ErrInvalidCredential
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	accessToken, err := s.tokens.Issue(ctx, identityOf(user))
	if err != nil {
		return nil, err
	}

	return &SessionPair{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     successor,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Logout revokes the presented refresh token. Idempotent: dead and
// unknown tokens are not an error, and storage failures are logged
// rather than surfaced since the client is leaving either way.
func (s *SessionService) Logout(ctx context.Context, presented string) {
	if presented == "" {
		return
	}
	if err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, presented); err != nil {
		s.logger.Warn(ctx, "revoking refresh token on logout failed", "error", err.Error())
	}
}

// CurrentUser returns the stored profile for an authenticated identity.
func (s *SessionService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, usersrepo.ErrNotFound) {
			return nil, autherr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}

// --- helpers below ---

func identityOf(user *models.User) auth.Identity {
	return auth.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	}
}

func (s *SessionService) issueSessionPair(ctx context.Context, user *models.User) (*SessionPair, error) {
	accessToken, err := s.tokens.Issue(ctx, identityOf(user))
	if err != nil {
		return nil, err
	}

	refreshToken, err := shared.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	expiresAt := time.Now().Add(s.refreshTTL)

	if err := s.repomanager.RefreshTokens(s.db).Insert(ctx, user.ID, refreshToken, expiresAt, nil); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}

	return &SessionPair{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}
