// Package auth provides functionality for generating and parsing JSON Web Tokens (JWT)
// for player sessions. It defines custom claims, token generation, and validation logic.
package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TOKENEXP defines the default token expiration duration.
const TOKENEXP = time.Hour * 72

var (
	mu        sync.RWMutex
	secretKey = []byte("supersecretkey")
	tokenExp  = TOKENEXP
)

// Configure replaces the signing key and the token lifetime.
func Configure(secret string, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if secret != "" {
		secretKey = []byte(secret)
	}
	if ttl > 0 {
		tokenExp = ttl
	}
}

// Claims represents the custom JWT claims of a session.
// Anonymous sessions are allowed to play but not to buy.
type Claims struct {
	ProfileID int64  `json:"profile_id"`
	AccountID string `json:"account_id,omitempty"`
	Anonymous bool   `json:"anonymous"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for the given session identity.
func GenerateToken(profileID int64, accountID string, anonymous bool) (string, error) {
	mu.RLock()
	key, exp := secretKey, tokenExp
	mu.RUnlock()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ProfileID: profileID,
		AccountID: accountID,
		Anonymous: anonymous,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseToken validates the provided JWT token string and parses its claims.
// It returns the Claims if the token is valid, or an error otherwise.
func ParseToken(tokenStr string) (*Claims, error) {
	mu.RLock()
	key := secretKey
	mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.ProfileID != 0 {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
