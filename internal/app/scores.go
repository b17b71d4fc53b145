package app

import (
	"context"
	"time"

	"voka/internal/cache"
	"voka/internal/models"
	"voka/internal/pkg/auth"
	"voka/internal/pkg/logger"
	"voka/internal/storage"
)

const maxLeaderboardLimit = 100

// scorePoster writes scores that leave the throttle and drops the cached leaderboards they affect.
type scorePoster struct {
	db    storage.Storage
	cache cache.Cache
	log   *logger.Logger
}

func (p *scorePoster) Post(ctx context.Context, score models.Score) error {
	if err := p.db.InsertScore(ctx, score); err != nil {
		return err
	}
	if err := p.cache.InvalidateLeaderboard(ctx, score.Category); err != nil {
		p.log.Sugar().Errorf("Failed to invalidate leaderboard %s: %s", score.Category, err)
	}
	return nil
}

// SubmitScore hands a finished run to the score throttle and remembers it as the last score.
// It reports whether the score was written right away.
func (app *App) SubmitScore(ctx context.Context, claims *auth.Claims, req models.ScoreRequest) (bool, error) {
	if err := app.validateRequest(req); err != nil {
		return false, err
	}
	return app.recordScore(ctx, models.Score{ProfileID: claims.ProfileID, Score: req.Score, Category: req.Category}), nil
}

func (app *App) recordScore(ctx context.Context, score models.Score) bool {
	if err := app.cache.SaveLastScore(ctx, score.ProfileID, models.LastScore{Score: score.Score, Category: score.Category}); err != nil {
		app.log.Sugar().Errorf("Failed to save last score of profile %d: %s", score.ProfileID, err)
	}

	posted, err := app.scores.Submit(ctx, score)
	if err != nil {
		app.log.Sugar().Errorf("Failed to submit score of profile %d: %s", score.ProfileID, err)
	}
	return posted
}

// LastScore returns the latest finished run of the session's device.
func (app *App) LastScore(ctx context.Context, claims *auth.Claims) (*models.LastScore, error) {
	last, found, err := app.cache.LastScore(ctx, claims.ProfileID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return last, nil
}

// Leaderboard returns the best score per profile, served from the cache when fresh.
func (app *App) Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = app.cfg.LeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)

	entries, found, err := app.cache.Leaderboard(ctx, category, limit)
	if err != nil {
		app.log.Sugar().Errorf("Failed to read cached leaderboard: %s", err)
	}
	if found {
		return entries, nil
	}

	entries, err = app.db.Leaderboard(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	if err := app.cache.SetLeaderboard(ctx, category, limit, entries, app.cfg.LeaderboardTTL); err != nil {
		app.log.Sugar().Errorf("Failed to cache leaderboard: %s", err)
	}
	return entries, nil
}

// Categories lists the vocabulary categories.
func (app *App) Categories(ctx context.Context) ([]models.Category, error) {
	return app.db.ListCategories(ctx)
}

// Products lists the credit packs on sale.
func (app *App) Products(ctx context.Context) ([]models.Product, error) {
	return app.db.ListProducts(ctx)
}

// dailyStreak counts the consecutive UTC days with a score, ending today or yesterday.
// days must be distinct and sorted newest first.
func dailyStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	today := truncateDay(now)
	expected := today
	if first := truncateDay(days[0]); first.Before(today) {
		expected = today.AddDate(0, 0, -1)
	}

	streak := 0
	for _, day := range days {
		d := truncateDay(day)
		if d.After(expected) {
			continue
		}
		if !d.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
