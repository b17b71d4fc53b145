package app

import (
	"context"
	"strconv"

	"voka/internal/ledger"
	"voka/internal/models"
	"voka/internal/pkg/auth"
	"voka/internal/storage"
)

// creditStore keeps signed-in players' credits in the credits table, keyed by profile id.
type creditStore struct {
	db storage.Storage
}

func (s *creditStore) Load(ctx context.Context, key string) (int, bool, error) {
	profileID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return s.db.LoadCredits(ctx, profileID)
}

func (s *creditStore) Save(ctx context.Context, key string, value int) error {
	profileID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return err
	}
	return s.db.SaveCredits(ctx, profileID, value)
}

func (s *creditStore) Add(ctx context.Context, key string, delta int) (int, error) {
	profileID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, err
	}
	return s.db.AddCredits(ctx, profileID, delta)
}

func ledgerKey(profileID int64) string {
	return strconv.FormatInt(profileID, 10)
}

// resource returns the ledger gating play for the session: hearts for anonymous players,
// credits for signed-in ones.
func (app *App) resource(ctx context.Context, claims *auth.Claims) *ledger.Ledger {
	if claims.Anonymous {
		return app.hearts.Get(ctx, ledgerKey(claims.ProfileID))
	}
	return app.credits.Get(ctx, ledgerKey(claims.ProfileID))
}

// Balance reports the hearts or credits of the session.
func (app *App) Balance(ctx context.Context, claims *auth.Claims) *models.BalanceResponse {
	l := app.resource(ctx, claims)
	return &models.BalanceResponse{
		Balance:       l.Get(),
		CanPlay:       l.CanPlay(),
		OutOfResource: l.OutOfResource(),
	}
}

// DismissOutOfResource clears the out-of-hearts notice of the session.
func (app *App) DismissOutOfResource(ctx context.Context, claims *auth.Claims) *models.BalanceResponse {
	app.resource(ctx, claims).DismissOutOfResource()
	return app.Balance(ctx, claims)
}

// ResetHearts puts the session's counter back to its default. Only available in sandbox mode.
func (app *App) ResetHearts(ctx context.Context, claims *auth.Claims) (*models.BalanceResponse, error) {
	if !app.cfg.SandboxMode {
		return nil, ErrForbidden
	}
	app.resource(ctx, claims).Reset(ctx)
	return app.Balance(ctx, claims), nil
}
