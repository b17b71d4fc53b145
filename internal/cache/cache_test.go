package cache

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voka/internal/models"
)

func caches(t *testing.T) map[string]Cache {
	t.Helper()
	out := map[string]Cache{"memory": NewMemory()}

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		return out
	}
	r, err := NewRedis(context.Background(), addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	out["redis"] = r
	return out
}

func TestHeartsCounter(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			k := "device-" + uuid.NewString()

			_, found, err := c.Load(ctx, k)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.Save(ctx, k, 2))
			v, found, err := c.Load(ctx, k)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 2, v)

			v, err = c.Add(ctx, k, -5)
			require.NoError(t, err)
			assert.Equal(t, 0, v, "clamped at zero")

			v, err = c.Add(ctx, k, 7)
			require.NoError(t, err)
			assert.Equal(t, 7, v)
		})
	}
}

func TestDeviceState(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			profileID := rand.Int64N(1 << 40)

			_, found, err := c.LastScore(ctx, profileID)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.SaveLastScore(ctx, profileID, models.LastScore{Score: 17, Category: "food"}))
			last, found, err := c.LastScore(ctx, profileID)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, &models.LastScore{Score: 17, Category: "food"}, last)

			denied, err := c.PermissionDenied(ctx, profileID)
			require.NoError(t, err)
			assert.False(t, denied)

			require.NoError(t, c.SetPermissionDenied(ctx, profileID, true))
			denied, err = c.PermissionDenied(ctx, profileID)
			require.NoError(t, err)
			assert.True(t, denied)

			require.NoError(t, c.SetPermissionDenied(ctx, profileID, false))
			denied, err = c.PermissionDenied(ctx, profileID)
			require.NoError(t, err)
			assert.False(t, denied)
		})
	}
}

func TestLeaderboardCache(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			category := "cat-" + uuid.NewString()
			entries := []models.LeaderboardEntry{{ProfileID: 1, Name: "An", Score: 40}, {ProfileID: 2, Name: "Binh", Score: 31}}

			_, found, err := c.Leaderboard(ctx, category, 10)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.SetLeaderboard(ctx, category, 10, entries, time.Minute))
			require.NoError(t, c.SetLeaderboard(ctx, "", 10, entries[:1], time.Minute))

			got, found, err := c.Leaderboard(ctx, category, 10)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, entries, got)

			_, found, err = c.Leaderboard(ctx, category, 5)
			require.NoError(t, err)
			assert.False(t, found, "pages are cached per limit")

			require.NoError(t, c.InvalidateLeaderboard(ctx, category))
			_, found, _ = c.Leaderboard(ctx, category, 10)
			assert.False(t, found)
			_, found, _ = c.Leaderboard(ctx, "", 10)
			assert.False(t, found, "the overall board is dropped too")
		})
	}
}

func TestMemoryLeaderboardExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.SetLeaderboard(ctx, "food", 10, []models.LeaderboardEntry{{ProfileID: 1, Score: 3}}, 30*time.Second))

	now = now.Add(29 * time.Second)
	_, found, _ := m.Leaderboard(ctx, "food", 10)
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	_, found, _ = m.Leaderboard(ctx, "food", 10)
	assert.False(t, found)
}
