// Package cache keeps device-local state of anonymous players and short-lived leaderboard pages.
// Redis backs it in deployments; Memory serves single-process setups and tests.
package cache

import (
	"context"
	"time"

	"voka/internal/models"
)

// Cache is implemented by Redis and Memory.
type Cache interface {
	// Hearts counters, see ledger.Store.
	Load(ctx context.Context, key string) (int, bool, error)
	Save(ctx context.Context, key string, value int) error
	Add(ctx context.Context, key string, delta int) (int, error)

	SaveLastScore(ctx context.Context, profileID int64, score models.LastScore) error
	LastScore(ctx context.Context, profileID int64) (*models.LastScore, bool, error)

	SetPermissionDenied(ctx context.Context, profileID int64, denied bool) error
	PermissionDenied(ctx context.Context, profileID int64) (bool, error)

	Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, bool, error)
	SetLeaderboard(ctx context.Context, category string, limit int, entries []models.LeaderboardEntry, ttl time.Duration) error
	// InvalidateLeaderboard drops the cached pages of category and of the overall board.
	InvalidateLeaderboard(ctx context.Context, category string) error

	Close() error
}

const allCategories = "_all"

func boardKey(category string) string {
	if category == "" {
		return allCategories
	}
	return category
}
