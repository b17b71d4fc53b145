package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"voka/internal/models"
)

const (
	upsertProfileByAuthQuery = `INSERT INTO content.profiles (auth_id, zalo_id, name, avatar_url) VALUES ($1, $2, $3, $4)
ON CONFLICT (auth_id) DO UPDATE SET
  zalo_id = COALESCE(content.profiles.zalo_id, EXCLUDED.zalo_id),
  name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE content.profiles.name END,
  avatar_url = CASE WHEN EXCLUDED.avatar_url <> '' THEN EXCLUDED.avatar_url ELSE content.profiles.avatar_url END,
  updated_at = NOW()
RETURNING id;`
	upsertProfileByZaloQuery = `INSERT INTO content.profiles (auth_id, zalo_id, name, avatar_url) VALUES ($1, $2, $3, $4)
ON CONFLICT (zalo_id) DO UPDATE SET
  auth_id = COALESCE(content.profiles.auth_id, EXCLUDED.auth_id),
  name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE content.profiles.name END,
  avatar_url = CASE WHEN EXCLUDED.avatar_url <> '' THEN EXCLUDED.avatar_url ELSE content.profiles.avatar_url END,
  updated_at = NOW()
RETURNING id;`
	getProfileQuery    = `SELECT id, auth_id, zalo_id, name, avatar_url, created_at FROM content.profiles WHERE id = $1;`
	updateProfileQuery = `UPDATE content.profiles SET name = $2, avatar_url = $3, updated_at = NOW() WHERE id = $1
RETURNING id, auth_id, zalo_id, name, avatar_url, created_at;`

	zaloIDConstraint = "profiles_zalo_id_key"
)

// ErrMissingIdentity is returned by UpsertProfile when neither identifier is set.
var ErrMissingIdentity = errors.New("storage: profile needs an auth id or a zalo id")

// UpsertProfile creates the profile of an identity or updates the existing one in a single
// statement and returns its id. The auth id is the conflict key when present. When the zalo id
// of the request already belongs to another profile, the upsert is repeated keyed by zalo id so
// the chat-platform profile absorbs the auth id.
func (postgresql *PostgreSQL) UpsertProfile(ctx context.Context, profile models.ProfileUpsert) (int64, error) {
	if profile.AuthID == nil && (profile.ZaloID == nil || *profile.ZaloID == "") {
		return 0, ErrMissingIdentity
	}

	args := []any{profile.AuthID, profile.ZaloID, profile.Name, profile.AvatarURL}
	var id int64

	if profile.AuthID != nil {
		err := postgresql.db.QueryRowContext(ctx, upsertProfileByAuthQuery, args...).Scan(&id)
		if err == nil {
			return id, nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation || pgErr.ConstraintName != zaloIDConstraint {
			postgresql.log.Sugar().Errorf("Failed to execute a query upsertProfileByAuthQuery: %s", err)
			return 0, err
		}
		postgresql.log.Sugar().Infof("Zalo id of auth %s is taken, merging into the zalo profile", profile.AuthID)
	}

	if err := postgresql.db.QueryRowContext(ctx, upsertProfileByZaloQuery, args...).Scan(&id); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query upsertProfileByZaloQuery: %s", err)
		return 0, err
	}
	return id, nil
}

// GetProfile returns the profile with the given id.
func (postgresql *PostgreSQL) GetProfile(ctx context.Context, profileID int64) (*models.Profile, error) {
	profile, err := scanProfile(postgresql.db.QueryRowContext(ctx, getProfileQuery, profileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getProfileQuery: %s", err)
		return nil, err
	}
	return profile, nil
}

// UpdateProfile changes the editable fields of a profile.
func (postgresql *PostgreSQL) UpdateProfile(ctx context.Context, profileID int64, req models.ProfileUpdateRequest) (*models.Profile, error) {
	profile, err := scanProfile(postgresql.db.QueryRowContext(ctx, updateProfileQuery, profileID, req.Name, req.AvatarURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateProfileQuery: %s", err)
		return nil, err
	}
	return profile, nil
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	profile := &models.Profile{}
	err := row.Scan(&profile.ID, &profile.AuthID, &profile.ZaloID, &profile.Name, &profile.AvatarURL, &profile.CreatedAt)
	if err != nil {
		return nil, err
	}
	return profile, nil
}
