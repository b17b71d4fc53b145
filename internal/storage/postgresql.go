// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Storage interface along with its PostgreSQL implementation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voka/internal/models"
	"voka/internal/pkg/logger"
	"voka/internal/pkg/security"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrOrderFailed is returned when a failed order is asked to complete.
	ErrOrderFailed = errors.New("storage: order already failed")
)

const (
	createAccountQuery = `INSERT INTO content.accounts (id, username, password_hash, anonymous) VALUES ($1, $2, $3, $4);`
	checkAccountQuery  = `SELECT id, password_hash FROM content.accounts WHERE username = $1 AND NOT anonymous;`
)

//go:generate mockgen -source=postgresql.go -destination=mocks/mock_storage.go -package=mocks

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the database connection.
	Close()

	// Authentication methods.
	CheckAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)

	// Profile methods.
	UpsertProfile(ctx context.Context, profile models.ProfileUpsert) (int64, error)
	GetProfile(ctx context.Context, profileID int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profileID int64, req models.ProfileUpdateRequest) (*models.Profile, error)

	// Vocabulary catalog methods. An empty category means every category.
	ListCategories(ctx context.Context) ([]models.Category, error)
	CountWords(ctx context.Context, category string) (int64, error)
	FetchWords(ctx context.Context, category string, offset, limit int) ([]models.Word, error)

	// Score methods.
	InsertScore(ctx context.Context, score models.Score) error
	ListScoreDays(ctx context.Context, profileID int64) ([]time.Time, error)
	BestScore(ctx context.Context, profileID int64) (int, error)
	Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error)

	// Shop and order methods.
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetActiveProduct(ctx context.Context, productID int64) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	AttachPaymentLink(ctx context.Context, orderID uuid.UUID, paymentLinkID, checkoutURL string) error
	FailOrder(ctx context.Context, orderID uuid.UUID) error
	CompleteOrder(ctx context.Context, paymentID string) (*models.Order, bool, error)

	// Credits ledger methods.
	LoadCredits(ctx context.Context, profileID int64) (int, bool, error)
	SaveCredits(ctx context.Context, profileID int64, amount int) error
	AddCredits(ctx context.Context, profileID int64, delta int) (int, error)
}

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB        // Connection to the database.
	log *logger.Logger // Logger for recording events and errors.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// CheckAccount looks up a password account by username and verifies the password.
// An unknown username yields the account with a nil ID.
func (postgresql *PostgreSQL) CheckAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	var encryptedPassword sql.NullString

	err := postgresql.db.QueryRowContext(ctx, checkAccountQuery, account.Username).Scan(&account.ID, &encryptedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		account.ID = uuid.Nil
		return account, nil
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query checkAccountQuery: %s", err)
		return account, err
	}

	if err = security.CheckPassword(encryptedPassword.String, account.Password); err != nil {
		postgresql.log.Sugar().Infof("Password mismatch for account %s", account.ID)
		return account, err
	}

	return account, nil
}

// CreateAccount registers a new account. Password accounts get a bcrypt hash;
// anonymous accounts carry neither username nor password.
func (postgresql *PostgreSQL) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	var username, passwordHash sql.NullString
	if !account.Anonymous {
		hash, err := security.HashPassword(account.Password)
		if err != nil {
			return account, err
		}
		username = sql.NullString{String: account.Username, Valid: true}
		passwordHash = sql.NullString{String: hash, Valid: true}
	}

	account.ID = uuid.New()
	_, err := postgresql.db.ExecContext(ctx, createAccountQuery, account.ID, username, passwordHash, account.Anonymous)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createAccountQuery: %s", err)
		return account, err
	}
	return account, nil
}
