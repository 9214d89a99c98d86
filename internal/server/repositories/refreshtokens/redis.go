package refreshtokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jsvoboda/authd/internal/server/models"
)

const keyPrefix = "refresh:"

// retention keeps dead and expired rows readable for a while so the
// expiry check can still distinguish ExpiredCredential from an unknown
// token within the window.
const retention = 30 * 24 * time.Hour

// Revocation must observe the same single-winner guarantee as the SQL
// conditional UPDATE, so both mutations run as one Lua script.
var revokeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked_at") ~= "" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return 1
`)

var rotateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked_at") ~= "" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "replaced_by", ARGV[2])
return 1
`)

// RedisRepository stores refresh-token rows as Redis hashes. Selected
// by configuration when a Redis address is present.
type RedisRepository struct {
	client redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Insert(ctx context.Context, userID, token string, expiresAt time.Time, replacedBy *string) error {
	key := keyPrefix + token

	fields := map[string]any{
		"id":          uuid.NewString(),
		"user_id":     userID,
		"created_at":  strconv.FormatInt(time.Now().Unix(), 10),
		"expires_at":  strconv.FormatInt(expiresAt.Unix(), 10),
		"replaced_by": "",
		"revoked_at":  "",
	}
	if replacedBy != nil {
		fields["replaced_by"] = *replacedBy
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ExpireAt(ctx, key, expiresAt.Add(retention))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error performing redis request: %v", err)
	}

	return nil
}

func (r *RedisRepository) FindLive(ctx context.Context, token string) (*models.RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("error performing redis request: %v", err)
	}
	if len(fields) == 0 || fields["revoked_at"] != "" {
		return nil, ErrNotFound
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at for refresh token: %v", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at for refresh token: %v", err)
	}

	row := &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Token:     token,
		CreatedAt: time.Unix(createdAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
	}
	if v := fields["replaced_by"]; v != "" {
		row.ReplacedBy = &v
	}

	return row, nil
}

func (r *RedisRepository) Revoke(ctx context.Context, token string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := revokeScript.Run(ctx, r.client, []string{keyPrefix + token}, now).Err(); err != nil {
		return fmt.Errorf("error performing redis request: %v", err)
	}
	return nil
}

func (r *RedisRepository) RevokeAndReplace(ctx context.Context, token, successor string) (bool, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	res, err := rotateScript.Run(ctx, r.client, []string{keyPrefix + token}, now, successor).Int64()
	if err != nil {
		return false, fmt.Errorf("error performing redis request: %v", err)
	}
	return res == 1, nil
}
