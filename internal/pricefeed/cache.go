package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/redis"
)

// Cache is the subset of the redis client the snapshot cache needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PriceSnapshotKey(itemID int64) string
}

var errCacheMiss = errors.New("price snapshot not cached")

type snapshotCache struct {
	store Cache
	ttl   time.Duration
}

func (c snapshotCache) get(ctx context.Context, itemID int64) (*models.PriceSnapshot, error) {
	raw, err := c.store.Get(ctx, c.store.PriceSnapshotKey(itemID))
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var snapshot models.PriceSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c snapshotCache) put(ctx context.Context, snapshot *models.PriceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.PriceSnapshotKey(snapshot.ItemID), payload, c.ttl)
}

func (c snapshotCache) evict(ctx context.Context, itemID int64) error {
	return c.store.Del(ctx, c.store.PriceSnapshotKey(itemID))
}
