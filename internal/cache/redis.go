package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"voka/internal/models"
)

const keyPrefix = "voka"

// addClamped adds ARGV[1] to the counter and never lets it drop below zero.
var addClamped = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0') + tonumber(ARGV[1])
if v < 0 then v = 0 end
redis.call('SET', KEYS[1], v)
return v
`)

// Redis is the Redis backed Cache.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: rdb}, nil
}

func key(parts ...string) string {
	k := keyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func profileKey(kind string, profileID int64) string {
	return key(kind, strconv.FormatInt(profileID, 10))
}

func (r *Redis) Load(ctx context.Context, k string) (int, bool, error) {
	v, err := r.client.Get(ctx, key("hearts", k)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *Redis) Save(ctx context.Context, k string, value int) error {
	return r.client.Set(ctx, key("hearts", k), value, 0).Err()
}

func (r *Redis) Add(ctx context.Context, k string, delta int) (int, error) {
	return addClamped.Run(ctx, r.client, []string{key("hearts", k)}, delta).Int()
}

func (r *Redis) SaveLastScore(ctx context.Context, profileID int64, score models.LastScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, profileKey("last_score", profileID), data, 0).Err()
}

func (r *Redis) LastScore(ctx context.Context, profileID int64) (*models.LastScore, bool, error) {
	data, err := r.client.Get(ctx, profileKey("last_score", profileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var score models.LastScore
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, false, err
	}
	return &score, true, nil
}

func (r *Redis) SetPermissionDenied(ctx context.Context, profileID int64, denied bool) error {
	if !denied {
		return r.client.Del(ctx, profileKey("permission_denied", profileID)).Err()
	}
	return r.client.Set(ctx, profileKey("permission_denied", profileID), "1", 0).Err()
}

func (r *Redis) PermissionDenied(ctx context.Context, profileID int64) (bool, error) {
	n, err := r.client.Exists(ctx, profileKey("permission_denied", profileID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Leaderboard pages of one category live in a hash keyed by page size, so one DEL drops them all.
func (r *Redis) Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, bool, error) {
	data, err := r.client.HGet(ctx, key("leaderboard", boardKey(category)), strconv.Itoa(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (r *Redis) SetLeaderboard(ctx context.Context, category string, limit int, entries []models.LeaderboardEntry, ttl time.Duration) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	k := key("leaderboard", boardKey(category))
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, k, strconv.Itoa(limit), data)
	pipe.Expire(ctx, k, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) InvalidateLeaderboard(ctx context.Context, category string) error {
	return r.client.Del(ctx, key("leaderboard", boardKey(category)), key("leaderboard", allCategories)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
