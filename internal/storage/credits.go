package storage

import (
	"context"
	"database/sql"
	"errors"
)

const (
	loadCreditsQuery = `SELECT amount FROM content.credits WHERE profile_id = $1;`
	saveCreditsQuery = `INSERT INTO content.credits (profile_id, amount) VALUES ($1, $2)
ON CONFLICT (profile_id) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW();`
	addCreditsQuery = `INSERT INTO content.credits (profile_id, amount) VALUES ($1, GREATEST(0, $2::integer))
ON CONFLICT (profile_id) DO UPDATE SET amount = GREATEST(0, content.credits.amount + $2::integer), updated_at = NOW()
RETURNING amount;`
)

// LoadCredits returns the credits of a profile and whether a row exists.
func (postgresql *PostgreSQL) LoadCredits(ctx context.Context, profileID int64) (int, bool, error) {
	var amount int
	err := postgresql.db.QueryRowContext(ctx, loadCreditsQuery, profileID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query loadCreditsQuery: %s", err)
		return 0, false, err
	}
	return amount, true, nil
}

// SaveCredits overwrites the credits of a profile.
func (postgresql *PostgreSQL) SaveCredits(ctx context.Context, profileID int64, amount int) error {
	if _, err := postgresql.db.ExecContext(ctx, saveCreditsQuery, profileID, max(0, amount)); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query saveCreditsQuery: %s", err)
		return err
	}
	return nil
}

// AddCredits applies delta in place, never going below zero, and returns the new amount.
func (postgresql *PostgreSQL) AddCredits(ctx context.Context, profileID int64, delta int) (int, error) {
	var amount int
	if err := postgresql.db.QueryRowContext(ctx, addCreditsQuery, profileID, delta).Scan(&amount); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query addCreditsQuery: %s", err)
		return 0, err
	}
	return amount, nil
}
