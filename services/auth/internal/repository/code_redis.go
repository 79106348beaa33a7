package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// Keys outlive expires_at by this much so a late verify can still be told
// the code expired rather than that it never existed.
const redisExpiredGrace = time.Hour

type redisCodeStore struct {
	rdb redis.Cmdable
}

type redisCode struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expires_at"` // unix millis
}

// consumeScript deletes the key only when code matches and expires_at has
// not passed, all inside one Redis call.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
local d = cjson.decode(v)
if d.code ~= ARGV[1] then
	return 0
end
if tonumber(d.expires_at) < tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

func NewRedisCodeStore(rdb redis.Cmdable) CodeRepository {
	return &redisCodeStore{rdb: rdb}
}

func redisCodeKey(identity string, purpose domain.Purpose) string {
	return "otp:" + string(purpose) + ":" + identity
}

func (r *redisCodeStore) Upsert(ctx context.Context, c *domain.VerificationCode) error {
	payload, err := json.Marshal(redisCode{Code: c.Code, ExpiresAt: c.ExpiresAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode code: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = r.rdb.SetArgs(ctx, redisCodeKey(c.Identity, c.Purpose), payload, redis.SetArgs{
		ExpireAt: c.ExpiresAt.Add(redisExpiredGrace),
	}).Err()
	if err != nil {
		return fmt.Errorf("upsert code: %w", err)
	}
	return nil
}

func (r *redisCodeStore) Find(ctx context.Context, identity string, purpose domain.Purpose) (*domain.VerificationCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	raw, err := r.rdb.Get(ctx, redisCodeKey(identity, purpose)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find code: %w", err)
	}

	var rc redisCode
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	return &domain.VerificationCode{
		Identity:  identity,
		Purpose:   purpose,
		Code:      rc.Code,
		ExpiresAt: time.UnixMilli(rc.ExpiresAt),
	}, nil
}

func (r *redisCodeStore) Consume(ctx context.Context, identity string, purpose domain.Purpose, code string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	n, err := consumeScript.Run(ctx, r.rdb, []string{redisCodeKey(identity, purpose)}, code, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return n == 1, nil
}

// PurgeExpired is a no-op: Redis drops keys on its own once the grace
// period has passed.
func (r *redisCodeStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
