package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/andresfernandez89/livestore/internal/domain"
)

const authKeyPrefix = "livestore:auth:"

// AuthSessionRepo implements domain.AuthSessionStore. Tokens expire after the
// configured TTL; an expired token reads back as not found, which the gate
// treats as an expired credential.
type AuthSessionRepo struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewAuthSessionRepo(rdb *goredis.Client, ttl time.Duration) *AuthSessionRepo {
	return &AuthSessionRepo{rdb: rdb, ttl: ttl}
}

func authKey(token string) string {
	return authKeyPrefix + token
}

func (r *AuthSessionRepo) Put(ctx context.Context, token string, identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := r.rdb.Set(ctx, authKey(token), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store auth session: %w", err)
	}
	return nil
}

func (r *AuthSessionRepo) Get(ctx context.Context, token string) (domain.Identity, error) {
	raw, err := r.rdb.Get(ctx, authKey(token)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Identity{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to read auth session: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return identity, nil
}

func (r *AuthSessionRepo) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, authKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}
