package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"voka/internal/models"
	"voka/internal/payment"
	"voka/internal/pkg/auth"
	"voka/internal/storage"
)

const (
	orderDescriptionPrefix = "VOKA"
	failOrderTimeout       = 5 * time.Second
)

// CreateOrder opens a pending order for a credit pack and returns the gateway checkout link.
// When the gateway refuses, the order is marked failed.
func (app *App) CreateOrder(ctx context.Context, claims *auth.Claims, productID int64) (*models.CreateOrderResponse, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	if claims.Anonymous {
		return nil, ErrForbidden
	}

	if _, err := app.db.GetProfile(ctx, claims.ProfileID); err != nil {
		return nil, notFound(err)
	}
	product, err := app.db.GetActiveProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err)
	}

	order, err := app.db.CreateOrder(ctx, &models.Order{
		ProfileID: claims.ProfileID,
		ProductID: product.ID,
		Credits:   product.TotalCredits(),
		Amount:    product.Price,
		Currency:  product.Currency,
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%s %d", orderDescriptionPrefix, order.OrderCode)
	link, err := app.payments.CreatePaymentLink(ctx, payment.LinkRequest{
		OrderCode:   order.OrderCode,
		Amount:      product.Price.IntPart(),
		Description: description,
		ItemName:    product.Name,
		ReturnURL:   app.cfg.ReturnURL,
		CancelURL:   app.cfg.CancelURL,
	})
	if err != nil {
		app.log.Sugar().Errorf("Failed to create payment link of order %d: %s", order.OrderCode, err)
		// The request context may already be done when the gateway timed out.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failOrderTimeout)
		defer cancel()
		if err := app.db.FailOrder(failCtx, order.ID); err != nil {
			app.log.Sugar().Errorf("Failed to mark order %d failed: %s", order.OrderCode, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, err)
	}

	if err := app.db.AttachPaymentLink(ctx, order.ID, link.PaymentLinkID, link.CheckoutURL); err != nil {
		app.log.Sugar().Errorf("Failed to attach payment link to order %d: %s", order.OrderCode, err)
	}

	return &models.CreateOrderResponse{
		CheckoutURL: link.CheckoutURL,
		QRCode:      link.QRCode,
		Reference:   order.PaymentID,
		Description: description,
		OrderID:     order.ID,
	}, nil
}

// VerifyOrder reconciles a gateway webhook; a webhook failing the signature or code check
// returns payment.ErrInvalidWebhook. A paid order is completed and its credits are granted
// exactly once, however many times the webhook is delivered.
func (app *App) VerifyOrder(ctx context.Context, webhook *payment.Webhook) (*models.WebhookResponse, error) {
	data, err := payment.ParseWebhook(webhook)
	if err != nil {
		return nil, err
	}

	if data.IsSandbox() {
		if app.cfg.SandboxMode {
			app.log.Sugar().Info("Acknowledged sandbox webhook")
			return &models.WebhookResponse{Success: true, Message: "sandbox webhook acknowledged"}, nil
		}
		app.log.Sugar().Warn("Rejected sandbox webhook outside sandbox mode")
	}

	data, err = payment.VerifyWebhook(webhook, app.cfg.ChecksumKey)
	if err != nil {
		app.log.Sugar().Warnf("Rejected webhook: %s", err)
		return nil, err
	}

	order, applied, err := app.db.CompleteOrder(ctx, strconv.FormatInt(data.OrderCode, 10))
	if err != nil {
		if errors.Is(err, storage.ErrOrderFailed) {
			return nil, fmt.Errorf("%w: order %d", ErrOrderFailed, data.OrderCode)
		}
		return nil, notFound(err)
	}
	if !applied {
		return &models.WebhookResponse{Success: true, Message: "already processed"}, nil
	}

	app.credits.Reload(ctx, ledgerKey(order.ProfileID))
	app.log.Sugar().Infof("Order %d completed, granted %d credits to profile %d", order.OrderCode, order.Credits, order.ProfileID)

	return &models.WebhookResponse{Success: true, Message: "payment processed"}, nil
}
