// Package models defines the data structures used throughout the application.
// It also holds the request and response payloads of the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuthRequest represents the password authentication request payload.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ZaloAuthRequest carries a Zalo Mini App access token to be exchanged for a session.
type ZaloAuthRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// AuthResponse represents the authentication response payload.
// It contains the generated token and the profile the token is bound to.
type AuthResponse struct {
	Token     string `json:"token"`
	ProfileID int64  `json:"profileId"`
	Anonymous bool   `json:"anonymous"`
}

// ErrorResponse represents a generic error response payload of the /api routes.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// FunctionErrorResponse is the error payload of the payment function routes.
type FunctionErrorResponse struct {
	Error string `json:"error"`
}

// Account is an identity issued by the auth layer. Anonymous accounts have no credentials.
type Account struct {
	ID        uuid.UUID
	Username  string
	Password  string
	Anonymous bool
}

// Profile is the player identity record.
type Profile struct {
	ID        int64      `json:"id"`
	AuthID    *uuid.UUID `json:"authId,omitempty"`
	ZaloID    *string    `json:"zaloId,omitempty"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatarUrl"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ProfileUpsert is the input of the identity resolver.
// At least one of AuthID and ZaloID must be set; AuthID wins when both are.
type ProfileUpsert struct {
	Name      string
	AuthID    *uuid.UUID
	ZaloID    *string
	AvatarURL string
}

// ProfileUpdateRequest is the payload of a profile edit.
type ProfileUpdateRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
}

// PermissionRequest records whether the user denied sharing their platform profile.
type PermissionRequest struct {
	Denied bool `json:"denied"`
}

// ProfileOverview is the response payload of GET /api/profile.
type ProfileOverview struct {
	Profile          *Profile `json:"profile"`
	Balance          int      `json:"balance"`
	BestScore        int      `json:"bestScore"`
	DailyStreak      int      `json:"dailyStreak"`
	PermissionDenied bool     `json:"permissionDenied"`
}

// Category groups words of the vocabulary catalog.
type Category struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Word is a vocabulary unit. Meaning is the correct answer string.
type Word struct {
	ID       int64  `json:"id"`
	Term     string `json:"term"`
	Category string `json:"category"`
	Language string `json:"language"`
	Meaning  string `json:"meaning"`
}

// Score is one posted quiz result.
type Score struct {
	ProfileID int64     `json:"profileId"`
	Score     int       `json:"score"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScoreRequest is the payload of a direct score submission.
type ScoreRequest struct {
	Score    int    `json:"score" validate:"gte=0"`
	Category string `json:"category" validate:"required,max=64"`
}

// LastScore is the device-local record of the latest finished run.
type LastScore struct {
	Score    int    `json:"score"`
	Category string `json:"category"`
}

// LeaderboardEntry is the best score of one profile.
type LeaderboardEntry struct {
	ProfileID int64  `json:"profileId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Score     int    `json:"score"`
}

// BalanceResponse reports the hearts or credits of the caller.
type BalanceResponse struct {
	Balance       int  `json:"balance"`
	CanPlay       bool `json:"canPlay"`
	OutOfResource bool `json:"outOfResource"`
}

// Product is an entry of the credits shop catalog.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Credits      int             `json:"credits"`
	BonusCredits int             `json:"bonusCredits"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Active       bool            `json:"active"`
}

// TotalCredits returns the credits granted by one purchase of the product.
func (p *Product) TotalCredits() int {
	return p.Credits + p.BonusCredits
}

// OrderStatus is the payment state of an order.
type OrderStatus string

// Order states. pending moves to completed or failed exactly once.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order is a credits purchase.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	ProfileID     int64           `json:"profileId"`
	ProductID     int64           `json:"productId"`
	Credits       int             `json:"credits"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        OrderStatus     `json:"status"`
	OrderCode     int64           `json:"orderCode"`
	PaymentID     string          `json:"paymentId"`
	PaymentLinkID string          `json:"paymentLinkId,omitempty"`
	CheckoutURL   string          `json:"checkoutUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CreateOrderResponse is returned to the buyer after a payment link was created.
type CreateOrderResponse struct {
	CheckoutURL string    `json:"checkoutUrl"`
	QRCode      string    `json:"qrCode"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	OrderID     uuid.UUID `json:"orderId"`
}

// WebhookResponse acknowledges a processed payment webhook.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ScoreResponse reports whether a submitted score was written right away or buffered.
type ScoreResponse struct {
	Posted bool `json:"posted"`
}
