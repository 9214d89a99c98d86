// Package auth creates and verifies the signed access tokens that prove
// identity on a single request. Tokens are stateless: validity is
// purely the signature plus the embedded expiry, there is no
// revocation list, which is why the TTL stays short.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/server/secret"
)

// Identity is the authenticated principal carried inside an access
// token and exposed to request handlers.
type Identity struct {
	UserID  string `json:"uid"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"adm"`
}

// Claims combines the registered JWT claims with the identity payload.
type Claims struct {
	jwt.RegisteredClaims
	Identity
}

// Manager signs and verifies access tokens with the secret resolved by
// the injected provider.
type Manager struct {
	secrets   *secret.Provider
	accessTTL time.Duration
}

func NewManager(secrets *secret.Provider, accessTTL time.Duration) *Manager {
	return &Manager{secrets: secrets, accessTTL: accessTTL}
}

// AccessTTL returns the configured access-token lifetime. The HTTP
// layer uses it as the access cookie max-age.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Issue signs the identity with expiry now+TTL (HS256). Pure function
// of identity, secret, and clock; nothing is persisted.
func (m *Manager) Issue(ctx context.Context, identity Identity) (string, error) {
	key, err := m.secrets.Secret(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		Identity: identity,
	})

	return token.SignedString(key)
}

// Verify checks signature and expiry and returns the embedded identity.
// Every failure mode (bad signature, malformed token, expired token)
// uniformly maps to an unauthenticated error; the caller cannot and
// must not distinguish the cause.
func (m *Manager) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	key, err := m.secrets.Secret(ctx)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, autherr.ErrUnauthenticated
	}

	return &claims.Identity, nil
}
