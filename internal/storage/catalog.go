package storage

import (
	"context"

	"voka/internal/models"
)

const (
	listCategoriesQuery = `SELECT id, slug, name FROM content.categories ORDER BY name;`
	countWordsQuery     = `SELECT COUNT(*) FROM content.words WHERE ($1 = '' OR category = $1);`
	fetchWordsQuery     = `SELECT id, term, category, language, meaning FROM content.words WHERE ($1 = '' OR category = $1) ORDER BY id OFFSET $2 LIMIT $3;`
)

// ListCategories returns every category of the catalog.
func (postgresql *PostgreSQL) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := postgresql.db.QueryContext(ctx, listCategoriesQuery)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listCategoriesQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		category := models.Category{}
		if err := rows.Scan(&category.ID, &category.Slug, &category.Name); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan category in ListCategories method: %s", err)
			return nil, err
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListCategories method: %s", err)
		return categories, err
	}
	return categories, nil
}

// CountWords returns the size of a category.
func (postgresql *PostgreSQL) CountWords(ctx context.Context, category string) (int64, error) {
	var total int64
	if err := postgresql.db.QueryRowContext(ctx, countWordsQuery, category).Scan(&total); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query countWordsQuery: %s", err)
		return 0, err
	}
	return total, nil
}

// FetchWords returns the words of a category in the range [offset, offset+limit) of id order.
func (postgresql *PostgreSQL) FetchWords(ctx context.Context, category string, offset, limit int) ([]models.Word, error) {
	rows, err := postgresql.db.QueryContext(ctx, fetchWordsQuery, category, offset, limit)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query fetchWordsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	words := make([]models.Word, 0, limit)
	for rows.Next() {
		word := models.Word{}
		if err := rows.Scan(&word.ID, &word.Term, &word.Category, &word.Language, &word.Meaning); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan word in FetchWords method: %s", err)
			return nil, err
		}
		words = append(words, word)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in FetchWords method: %s", err)
		return words, err
	}
	return words, nil
}
