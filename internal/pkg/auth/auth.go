// Package auth provides functionality for handling JSON Web Token (JWT) based authentication.
// It includes middleware for validating JWT tokens in HTTP requests and parsing tokens to extract claims.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"voka/internal/models"
)

// contextKey is a custom type used for storing values in a context without risking collisions.
type contextKey string

// ContextClaims is the key used to store and retrieve the session claims from the request context.
const ContextClaims contextKey = "contextClaims"

var (
	ErrMissingAuthHeader = errors.New("missing auth header")
	ErrInvalidAuthHeader = errors.New("invalid auth header")
	ErrInvalidToken      = errors.New("invalid token")
)

// ParseBearer extracts and validates the token of an Authorization header value.
func ParseBearer(authHeader string) (*Claims, error) {
	if authHeader == "" {
		return nil, ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrInvalidAuthHeader
	}

	claims, err := ParseToken(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CheckJWTMiddleware is an HTTP middleware function that validates the Authorization header of incoming requests.
// It parses the Bearer token and stores its claims in the request context.
// If validation fails at any point, it returns an error response with the appropriate HTTP status code.
func CheckJWTMiddleware() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				writeErrorResponse(w, err.Error(), http.StatusUnauthorized)
				return
			}

			h.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		}
		return http.HandlerFunc(fn)
	}
}

// WithClaims returns a copy of ctx carrying the session claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextClaims, claims)
}

// FromContext returns the session claims stored by CheckJWTMiddleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextClaims).(*Claims)
	return claims, ok && claims != nil
}

// writeErrorResponse writes a JSON-formatted error response to the HTTP response writer.
func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
