package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"voka/internal/models"
)

const (
	listProductsQuery     = `SELECT id, name, credits, bonus_credits, price, currency, active FROM content.products WHERE active ORDER BY price;`
	getActiveProductQuery = `SELECT id, name, credits, bonus_credits, price, currency, active FROM content.products WHERE id = $1 AND active;`
	createOrderQuery      = `WITH code AS (SELECT nextval('content.order_code_seq') AS c)
INSERT INTO content.orders (id, profile_id, product_id, credits, amount, currency, status, order_code, payment_id)
SELECT $1, $2, $3, $4, $5, $6, 'pending', c, c::text FROM code
RETURNING order_code, payment_id, created_at;`
	attachPaymentLinkQuery = `UPDATE content.orders SET payment_link_id = $2, checkout_url = $3, updated_at = NOW() WHERE id = $1;`
	failOrderQuery         = `UPDATE content.orders SET status = 'failed', updated_at = NOW() WHERE id = $1 AND status = 'pending';`
	lockOrderQuery         = `SELECT id, profile_id, product_id, credits, amount, currency, status, order_code, payment_id, payment_link_id, checkout_url, created_at
FROM content.orders WHERE payment_id = $1 FOR UPDATE;`
	completeOrderQuery  = `UPDATE content.orders SET status = 'completed', updated_at = NOW() WHERE id = $1;`
	incrementCreditsSQL = `INSERT INTO content.credits (profile_id, amount) VALUES ($1, $2)
ON CONFLICT (profile_id) DO UPDATE SET amount = content.credits.amount + EXCLUDED.amount, updated_at = NOW();`
)

// ListProducts returns the active products, cheapest first.
func (postgresql *PostgreSQL) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := postgresql.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listProductsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		product := models.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Credits, &product.BonusCredits, &product.Price, &product.Currency, &product.Active); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan product in ListProducts method: %s", err)
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListProducts method: %s", err)
		return products, err
	}
	return products, nil
}

// GetActiveProduct returns a product that is on sale.
func (postgresql *PostgreSQL) GetActiveProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product := &models.Product{}
	err := postgresql.db.QueryRowContext(ctx, getActiveProductQuery, productID).
		Scan(&product.ID, &product.Name, &product.Credits, &product.BonusCredits, &product.Price, &product.Currency, &product.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getActiveProductQuery: %s", err)
		return nil, err
	}
	return product, nil
}

// CreateOrder inserts a pending order. The order code comes from a sequence and doubles as the
// payment id the gateway reports back.
func (postgresql *PostgreSQL) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	order.Status = models.OrderStatusPending

	err := postgresql.db.QueryRowContext(ctx, createOrderQuery,
		order.ID, order.ProfileID, order.ProductID, order.Credits, order.Amount, order.Currency,
	).Scan(&order.OrderCode, &order.PaymentID, &order.CreatedAt)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createOrderQuery: %s", err)
		return order, err
	}
	return order, nil
}

// AttachPaymentLink records the gateway link of an order.
func (postgresql *PostgreSQL) AttachPaymentLink(ctx context.Context, orderID uuid.UUID, paymentLinkID, checkoutURL string) error {
	_, err := postgresql.db.ExecContext(ctx, attachPaymentLinkQuery, orderID, paymentLinkID, checkoutURL)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query attachPaymentLinkQuery: %s", err)
		return err
	}
	return nil
}

// FailOrder moves a pending order to failed. Orders in other states are left alone.
func (postgresql *PostgreSQL) FailOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := postgresql.db.ExecContext(ctx, failOrderQuery, orderID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query failOrderQuery: %s", err)
		return err
	}
	return nil
}

// CompleteOrder marks the order with paymentID completed and credits its profile, in one
// transaction holding the order row lock. It reports false when the order was completed before.
func (postgresql *PostgreSQL) CompleteOrder(ctx context.Context, paymentID string) (*models.Order, bool, error) {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	order := &models.Order{}
	err = tx.QueryRowContext(ctx, lockOrderQuery, paymentID).Scan(
		&order.ID, &order.ProfileID, &order.ProductID, &order.Credits, &order.Amount, &order.Currency,
		&order.Status, &order.OrderCode, &order.PaymentID, &order.PaymentLinkID, &order.CheckoutURL, &order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query lockOrderQuery: %s", err)
		return nil, false, err
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return order, false, nil
	case models.OrderStatusFailed:
		return order, false, ErrOrderFailed
	}

	if _, err = tx.ExecContext(ctx, completeOrderQuery, order.ID); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query completeOrderQuery: %s", err)
		return nil, false, err
	}
	if _, err = tx.ExecContext(ctx, incrementCreditsSQL, order.ProfileID, order.Credits); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query incrementCreditsSQL: %s", err)
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}

	order.Status = models.OrderStatusCompleted
	return order, true, nil
}
