// Package redis caches the latest monitor observation per display.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

// ErrNoStatus is returned when nothing is cached for a display.
var ErrNoStatus = errors.New("no cached status")

func NewClient(address, username, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})
}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache stores entries for ttl; a zero ttl keeps them forever.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func statusKey(displayID string) string {
	return fmt.Sprintf("display:%s:status", displayID)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) SetDisplayStatus(ctx context.Context, u model.StatusUpdate) error {
	key := statusKey(u.DisplayID)
	fields := map[string]any{
		"status":     string(u.Status),
		"checked_at": u.CheckedAt.UTC().Format(time.RFC3339Nano),
		"last_seen":  "",
	}
	if u.LastSeen != nil {
		fields["last_seen"] = u.LastSeen.UTC().Format(time.RFC3339Nano)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to cache display status")
		return fmt.Errorf("cache display status: %w", err)
	}
	return nil
}

func (c *Cache) GetDisplayStatus(ctx context.Context, displayID string) (model.StatusUpdate, error) {
	vals, err := c.rdb.HGetAll(ctx, statusKey(displayID)).Result()
	if err != nil {
		return model.StatusUpdate{}, fmt.Errorf("read cached status: %w", err)
	}
	if len(vals) == 0 {
		return model.StatusUpdate{}, ErrNoStatus
	}

	u := model.StatusUpdate{DisplayID: displayID, Status: model.DisplayStatus(vals["status"])}
	if v := vals["checked_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			u.CheckedAt = t
		}
	}
	if v := vals["last_seen"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			u.LastSeen = &t
		}
	}
	return u, nil
}

func (c *Cache) DeleteDisplayStatus(ctx context.Context, displayID string) error {
	return c.rdb.Del(ctx, statusKey(displayID)).Err()
}
