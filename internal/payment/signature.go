package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sandbox sentinel sent by the gateway's "test webhook" button.
const (
	SandboxOrderCode     = 123
	SandboxDescription   = "VQRIO123"
	SandboxAccountNumber = "12345678"
)

// Webhook is the body the gateway posts when a payment changes state.
type Webhook struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WebhookData is the signed part of a Webhook.
type WebhookData struct {
	OrderCode           int64  `json:"orderCode"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	AccountNumber       string `json:"accountNumber"`
	Reference           string `json:"reference"`
	TransactionDateTime string `json:"transactionDateTime"`
	Currency            string `json:"currency"`
	PaymentLinkID       string `json:"paymentLinkId"`
	Code                string `json:"code"`
	Desc                string `json:"desc"`
}

// IsSandbox reports whether d is the gateway's test sentinel.
func (d *WebhookData) IsSandbox() bool {
	return d.OrderCode == SandboxOrderCode &&
		d.Description == SandboxDescription &&
		d.AccountNumber == SandboxAccountNumber
}

// LinkSignature signs the fields of a payment link request.
func LinkSignature(r LinkRequest, checksumKey string) string {
	data := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		r.Amount, r.CancelURL, r.Description, r.OrderCode, r.ReturnURL)
	return sign(data, checksumKey)
}

// SignData signs a webhook data object: its keys sorted, joined as k=v pairs with '&'.
func SignData(data json.RawMessage, checksumKey string) (string, error) {
	canonical, err := canonicalData(data)
	if err != nil {
		return "", err
	}
	return sign(canonical, checksumKey), nil
}

// ParseWebhook decodes data without checking it. Use it on webhooks that are known not to be
// signed, such as the sandbox sentinel.
func ParseWebhook(w *Webhook) (*WebhookData, error) {
	if len(w.Data) == 0 || bytes.Equal(w.Data, []byte("null")) {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidWebhook)
	}
	var data WebhookData
	if err := json.Unmarshal(w.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWebhook, err)
	}
	return &data, nil
}

// VerifyWebhook checks the signature and the success code of w and returns its data.
func VerifyWebhook(w *Webhook, checksumKey string) (*WebhookData, error) {
	data, err := ParseWebhook(w)
	if err != nil {
		return nil, err
	}
	if w.Signature == "" || checksumKey == "" {
		return nil, fmt.Errorf("%w: unsigned", ErrInvalidWebhook)
	}

	expected, err := SignData(w.Data, checksumKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWebhook, err)
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(w.Signature))) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidWebhook)
	}
	if w.Code != SuccessCode || (data.Code != "" && data.Code != SuccessCode) {
		return nil, fmt.Errorf("%w: payment code %s", ErrInvalidWebhook, w.Code)
	}
	return data, nil
}

func sign(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func canonicalData(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := canonicalValue(fields[k])
		if err != nil {
			return "", err
		}
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, "&"), nil
}

func canonicalValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		if v == "null" || v == "undefined" {
			return "", nil
		}
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
