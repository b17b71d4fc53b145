package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"voka/internal/models"
	"voka/internal/pkg/auth"
)

// ProfileOverview loads the profile card of the session. The parts are read concurrently.
func (app *App) ProfileOverview(ctx context.Context, claims *auth.Claims) (*models.ProfileOverview, error) {
	// Not gctx: the ledger is cached past this request.
	overview := &models.ProfileOverview{Balance: app.resource(ctx, claims).Get()}
	var days []time.Time

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := app.db.GetProfile(gctx, claims.ProfileID)
		if err != nil {
			return notFound(err)
		}
		overview.Profile = profile
		return nil
	})
	g.Go(func() error {
		best, err := app.db.BestScore(gctx, claims.ProfileID)
		overview.BestScore = best
		return err
	})
	g.Go(func() error {
		var err error
		days, err = app.db.ListScoreDays(gctx, claims.ProfileID)
		return err
	})
	g.Go(func() error {
		denied, err := app.cache.PermissionDenied(gctx, claims.ProfileID)
		if err != nil {
			app.log.Sugar().Errorf("Failed to read permission flag of profile %d: %s", claims.ProfileID, err)
			return nil
		}
		overview.PermissionDenied = denied
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview.DailyStreak = dailyStreak(days, time.Now())
	return overview, nil
}

// UpdateProfile edits the name and avatar of the session's profile.
func (app *App) UpdateProfile(ctx context.Context, claims *auth.Claims, req models.ProfileUpdateRequest) (*models.Profile, error) {
	if err := app.validateRequest(req); err != nil {
		return nil, err
	}
	profile, err := app.db.UpdateProfile(ctx, claims.ProfileID, req)
	if err != nil {
		return nil, notFound(err)
	}
	return profile, nil
}

// SetPermissionDenied records whether the player refused to share their platform profile.
func (app *App) SetPermissionDenied(ctx context.Context, claims *auth.Claims, req models.PermissionRequest) error {
	return app.cache.SetPermissionDenied(ctx, claims.ProfileID, req.Denied)
}
