package storage

import (
	"context"
	"time"

	"voka/internal/models"
)

const (
	insertScoreQuery   = `INSERT INTO content.scores (profile_id, score, category, created_at) VALUES ($1, $2, $3, $4);`
	listScoreDaysQuery = `SELECT DISTINCT (created_at AT TIME ZONE 'UTC')::date AS day FROM content.scores WHERE profile_id = $1 ORDER BY day DESC LIMIT 400;`
	bestScoreQuery     = `SELECT COALESCE(MAX(score), 0) FROM content.scores WHERE profile_id = $1;`
	leaderboardQuery   = `SELECT p.id, p.name, p.avatar_url, MAX(s.score) AS best
FROM content.scores s JOIN content.profiles p ON p.id = s.profile_id
WHERE ($1 = '' OR s.category = $1)
GROUP BY p.id, p.name, p.avatar_url
ORDER BY best DESC, p.id
LIMIT $2;`
)

// InsertScore appends a score record.
func (postgresql *PostgreSQL) InsertScore(ctx context.Context, score models.Score) error {
	createdAt := score.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := postgresql.db.ExecContext(ctx, insertScoreQuery, score.ProfileID, score.Score, score.Category, createdAt)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query insertScoreQuery: %s", err)
		return err
	}
	return nil
}

// ListScoreDays returns the UTC days on which the profile posted a score, newest first.
func (postgresql *PostgreSQL) ListScoreDays(ctx context.Context, profileID int64) ([]time.Time, error) {
	rows, err := postgresql.db.QueryContext(ctx, listScoreDaysQuery, profileID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listScoreDaysQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	days := make([]time.Time, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan day in ListScoreDays method: %s", err)
			return nil, err
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListScoreDays method: %s", err)
		return days, err
	}
	return days, nil
}

// BestScore returns the highest score of a profile, 0 when it has none.
func (postgresql *PostgreSQL) BestScore(ctx context.Context, profileID int64) (int, error) {
	var best int
	if err := postgresql.db.QueryRowContext(ctx, bestScoreQuery, profileID).Scan(&best); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query bestScoreQuery: %s", err)
		return 0, err
	}
	return best, nil
}

// Leaderboard returns the best score per profile, highest first.
func (postgresql *PostgreSQL) Leaderboard(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := postgresql.db.QueryContext(ctx, leaderboardQuery, category, limit)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query leaderboardQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		entry := models.LeaderboardEntry{}
		if err := rows.Scan(&entry.ProfileID, &entry.Name, &entry.AvatarURL, &entry.Score); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan entry in Leaderboard method: %s", err)
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in Leaderboard method: %s", err)
		return entries, err
	}
	return entries, nil
}
