package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
	domain "github.com/open-builders/giveaway-draw/internal/domain/identity"
	rplatform "github.com/open-builders/giveaway-draw/internal/platform/redis"
)

// IdentityCache provides Redis-based caching for identities.
type IdentityCache struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewIdentityCache(client *rplatform.Client, ttl time.Duration) *IdentityCache {
	return &IdentityCache{client: client, ttl: ttl}
}

func keyByID(id int64) string { return fmt.Sprintf("identity:id:%d", id) }
func keyByExternalID(externalID string) string {
	return fmt.Sprintf("identity:ext:%s", externalID)
}

// Set stores identity by id and external id keys.
func (c *IdentityCache) Set(ctx context.Context, u *domain.Identity) error {
	b, err := json.Marshal(u)
	if err != nil {
		return apperrors.NewCacheError("encode identity", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyByID(u.ID), b, c.ttl)
	pipe.Set(ctx, keyByExternalID(u.ExternalID), b, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewCacheError("set identity", err)
	}
	return nil
}

// GetByID returns cached identity by id. A miss yields nil, nil.
func (c *IdentityCache) GetByID(ctx context.Context, id int64) (*domain.Identity, error) {
	return c.get(ctx, keyByID(id))
}

// GetByExternalID returns cached identity by external id. A miss yields nil, nil.
func (c *IdentityCache) GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error) {
	return c.get(ctx, keyByExternalID(externalID))
}

func (c *IdentityCache) get(ctx context.Context, key string) (*domain.Identity, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, apperrors.NewCacheError("get identity", err)
	}
	var u domain.Identity
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, apperrors.NewCacheError("decode identity", err)
	}
	return &u, nil
}
