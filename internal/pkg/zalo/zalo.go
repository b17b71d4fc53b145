// Package zalo resolves a Zalo Mini App access token into the platform user it belongs to.
package zalo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidToken is returned when the Graph API rejects the access token.
var ErrInvalidToken = errors.New("zalo: invalid access token")

// Identity is the Zalo user behind an access token.
type Identity struct {
	ID        string
	Name      string
	AvatarURL string
}

// Client calls the Zalo Graph API.
type Client struct {
	baseURL    string
	appSecret  string
	httpClient *http.Client
}

// NewClient creates a Graph API client. appSecret signs requests with appsecret_proof when set.
func NewClient(baseURL, appSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type meResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Me returns the identity the access token was issued to.
func (c *Client) Me(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2.0/me?fields=id,name,picture", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("access_token", accessToken)
	if c.appSecret != "" {
		req.Header.Set("appsecret_proof", AppSecretProof(accessToken, c.appSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zalo: request me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zalo: unexpected status %d", resp.StatusCode)
	}

	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("zalo: decode me: %w", err)
	}
	if me.Error != 0 || me.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, me.Message)
	}

	return &Identity{ID: me.ID, Name: me.Name, AvatarURL: me.Picture.Data.URL}, nil
}

// AppSecretProof is the hex HMAC-SHA256 of the access token keyed by the app secret.
func AppSecretProof(accessToken, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
