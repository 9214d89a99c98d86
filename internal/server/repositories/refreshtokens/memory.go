package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/authd/internal/server/models"
)

// InMemoryRepository keeps refresh-token rows in a map guarded by a
// mutex. Mutations carry the same live-state condition as the SQL
// implementation, so concurrency tests exercise identical semantics.
type InMemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken // keyed by token value
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string]*models.RefreshToken)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, userID, token string, expiresAt time.Time, replacedBy *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows[token] = &models.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      token,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		ReplacedBy: replacedBy,
	}
	return nil
}

func (r *InMemoryRepository) FindLive(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[token]
	if !ok || !row.Live() {
		return nil, ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *InMemoryRepository) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[token]
	if !ok || !row.Live() {
		return nil
	}
	now := time.Now()
	row.RevokedAt = &now
	return nil
}

func (r *InMemoryRepository) RevokeAndReplace(ctx context.Context, token, successor string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[token]
	if !ok || !row.Live() {
		return false, nil
	}
	now := time.Now()
	row.RevokedAt = &now
	row.ReplacedBy = &successor
	return true, nil
}
