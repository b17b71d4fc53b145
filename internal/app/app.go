// Package app provides the core business logic of the Voka quiz backend.
// Quiz runs are gated by the hearts and credits ledgers, and credit purchases are reconciled
// with the payment gateway.
// The package integrates with the storage layer for persistence, the cache for device state,
// and the auth package for token generation.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"voka/internal/cache"
	"voka/internal/ledger"
	"voka/internal/payment"
	"voka/internal/pkg/logger"
	"voka/internal/pkg/zalo"
	"voka/internal/quiz"
	"voka/internal/scores"
	"voka/internal/storage"
)

var (
	// ErrMissingUsernameOrPassword indicates that either the username or password is not provided.
	ErrMissingUsernameOrPassword = errors.New("app: missing username or password")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("app: invalid request")
	// ErrUnauthorized is returned when a call needs a valid session and has none.
	ErrUnauthorized = errors.New("app: unauthorized")
	// ErrForbidden is returned when the session may not perform the call.
	ErrForbidden = errors.New("app: forbidden")
	// ErrNotFound is returned when a referenced profile, product, order or session does not exist.
	ErrNotFound = errors.New("app: not found")
	// ErrOutOfResource is returned when the player has no hearts or credits left.
	ErrOutOfResource = errors.New("app: nothing left to play with")
	// ErrProviderFailure is returned when the payment gateway could not create a payment link.
	ErrProviderFailure = errors.New("app: payment provider failure")
	// ErrOrderFailed is returned for webhooks of orders that already failed.
	ErrOrderFailed = errors.New("app: order failed")
)

// PaymentProvider creates payment links.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, r payment.LinkRequest) (*payment.Link, error)
}

// IdentityProvider resolves a chat-platform access token.
type IdentityProvider interface {
	Me(ctx context.Context, accessToken string) (*zalo.Identity, error)
}

// Config tunes the application.
type Config struct {
	DefaultHearts    int
	DefaultCredits   int
	ScoreWindow      time.Duration
	Quiz             quiz.Config
	SessionTTL       time.Duration
	ChecksumKey      string
	ReturnURL        string
	CancelURL        string
	SandboxMode      bool
	LeaderboardTTL   time.Duration
	ScoreClock       scores.Clock
	LeaderboardLimit int
}

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	db         storage.Storage
	cache      cache.Cache
	payments   PaymentProvider
	identities IdentityProvider
	hearts     *ledger.Registry
	credits    *ledger.Registry
	scores     *scores.Channel
	sessions   *sessionStore
	validate   *validator.Validate
	cfg        Config
	log        *logger.Logger
}

// NewApp creates and returns a new instance of App.
func NewApp(db storage.Storage, c cache.Cache, payments PaymentProvider, identities IdentityProvider, cfg Config, log *logger.Logger) *App {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.LeaderboardTTL <= 0 {
		cfg.LeaderboardTTL = 30 * time.Second
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 10
	}

	app := &App{
		db:         db,
		cache:      c,
		payments:   payments,
		identities: identities,
		hearts:     ledger.NewRegistry(c, cfg.DefaultHearts, log),
		credits:    ledger.NewRegistry(&creditStore{db: db}, cfg.DefaultCredits, log),
		sessions:   newSessionStore(cfg.SessionTTL),
		validate:   validator.New(),
		cfg:        cfg,
		log:        log,
	}
	app.scores = scores.NewChannel(&scorePoster{db: db, cache: c, log: log}, cfg.ScoreClock, cfg.ScoreWindow, log)

	watch := func(kind string) func(key string, value int) {
		return func(key string, value int) {
			log.Sugar().Debugf("Ledger %s:%s changed to %d", kind, key, value)
		}
	}
	app.hearts.Watch(watch("hearts"))
	app.credits.Watch(watch("credits"))

	return app
}

// Close flushes the buffered scores.
func (app *App) Close(ctx context.Context) {
	app.scores.Close(ctx)
}

func (app *App) validateRequest(req any) error {
	if err := app.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return err
}
