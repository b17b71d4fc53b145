package storage

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations.
func (postgresql *PostgreSQL) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, postgresql.db, "migrations"); err != nil {
		postgresql.log.Sugar().Errorf("Failed to apply migrations: %s", err)
		return err
	}
	return nil
}
