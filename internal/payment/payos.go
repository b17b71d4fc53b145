// Package payment talks to the payOS payment gateway: it creates payment links for orders
// and verifies the signature of the webhooks the gateway sends back.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SuccessCode is the gateway code of an accepted request or a paid order.
const SuccessCode = "00"

var (
	// ErrInvalidWebhook is returned for webhooks with a bad signature, a non-success code or
	// a malformed body.
	ErrInvalidWebhook = errors.New("payment: invalid webhook")
	// ErrProvider is returned when the gateway refuses to create a payment link.
	ErrProvider = errors.New("payment: provider error")
)

// LinkRequest describes the payment link of one order.
type LinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	ItemName    string
	ReturnURL   string
	CancelURL   string
}

// Link is a created payment link.
type Link struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	AccountNumber string `json:"accountNumber"`
	Status        string `json:"status"`
}

// Config holds the merchant credentials.
type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
}

// Client is a payOS merchant API client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

type item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type createLinkBody struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Items       []item `json:"items"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	Signature   string `json:"signature"`
}

type envelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

// CreatePaymentLink registers a payment request and returns its checkout link.
func (c *Client) CreatePaymentLink(ctx context.Context, r LinkRequest) (*Link, error) {
	body := createLinkBody{
		OrderCode:   r.OrderCode,
		Amount:      r.Amount,
		Description: r.Description,
		Items:       []item{{Name: r.ItemName, Quantity: 1, Price: r.Amount}},
		CancelURL:   r.CancelURL,
		ReturnURL:   r.ReturnURL,
		Signature:   LinkSignature(r, c.cfg.ChecksumKey),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/payment-requests", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProvider, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != SuccessCode {
		return nil, fmt.Errorf("%w: code %s: %s", ErrProvider, env.Code, env.Desc)
	}

	var link Link
	if err := json.Unmarshal(env.Data, &link); err != nil {
		return nil, fmt.Errorf("%w: decode link: %s", ErrProvider, err)
	}
	if link.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: empty checkout url", ErrProvider)
	}
	return &link, nil
}
