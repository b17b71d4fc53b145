// Package service contains HTTP handler implementations for the Voka quiz API endpoints.
// It orchestrates request parsing, calls the underlying business logic in the app package,
// handles errors (including database-specific errors), and writes appropriate HTTP responses.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	pgconn "github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	pgx_pgconn "github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"voka/internal/app"
	"voka/internal/models"
	"voka/internal/payment"
	"voka/internal/pkg/auth"
	"voka/internal/pkg/logger"
	"voka/internal/quiz"
)

const requestTimeout = 10 * time.Second

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

// authHandler handles password authentication requests.
// It reads the request body, unmarshals it into an AuthRequest,
// invokes the authentication process, and returns a JSON response with a token.
func (handlers *handlers) authHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var authRequest models.AuthRequest
	if err := readJSON(req, &authRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	var pgError *pgconn.PgError
	var pgxError *pgx_pgconn.PgError
	authResponse, err := handlers.app.ProcessAuth(ctx, authRequest)
	if err != nil {
		if ok := errors.As(err, &pgError); ok && pgError.Code == pgerrcode.UniqueViolation {
			writeErrorResponse(res, "user with provided name already exists", http.StatusUnauthorized)
			return
		}

		if ok := errors.As(err, &pgxError); ok && pgxError.Code == pgerrcode.UniqueViolation {
			writeErrorResponse(res, "user with provided name already exists", http.StatusUnauthorized)
			return
		}

		if errors.Is(err, app.ErrMissingUsernameOrPassword) {
			writeErrorResponse(res, "missing username or password", http.StatusBadRequest)
			return
		}

		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			writeErrorResponse(res, "incorrect password", http.StatusUnauthorized)
			return
		}
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	writeResponse(res, http.StatusOK, authResponse)
}

// anonymousAuthHandler opens a session without credentials.
func (handlers *handlers) anonymousAuthHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	authResponse, err := handlers.app.ProcessAnonymousAuth(ctx)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, authResponse)
}

// zaloAuthHandler exchanges a Zalo Mini App access token for a session.
func (handlers *handlers) zaloAuthHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var zaloRequest models.ZaloAuthRequest
	if err := readJSON(req, &zaloRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	authResponse, err := handlers.app.ProcessZaloAuth(ctx, zaloRequest)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, authResponse)
}

// profileHandler returns the profile card of the caller.
func (handlers *handlers) profileHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	overview, err := handlers.app.ProfileOverview(ctx, claims)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, overview)
}

func (handlers *handlers) updateProfileHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	var update models.ProfileUpdateRequest
	if err := readJSON(req, &update); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := handlers.app.UpdateProfile(ctx, claims, update)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, profile)
}

func (handlers *handlers) permissionHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	var permission models.PermissionRequest
	if err := readJSON(req, &permission); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handlers.app.SetPermissionDenied(ctx, claims, permission); err != nil {
		handlers.writeAppError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
}

// balanceHandler reports the hearts or credits of the caller.
func (handlers *handlers) balanceHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}
	writeResponse(res, http.StatusOK, handlers.app.Balance(ctx, claims))
}

func (handlers *handlers) dismissHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}
	writeResponse(res, http.StatusOK, handlers.app.DismissOutOfResource(ctx, claims))
}

// resetHeartsHandler refills the caller's counter. Sandbox mode only.
func (handlers *handlers) resetHeartsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	balance, err := handlers.app.ResetHearts(ctx, claims)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, balance)
}

func (handlers *handlers) categoriesHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	categories, err := handlers.app.Categories(ctx)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, categories)
}

func (handlers *handlers) productsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	products, err := handlers.app.Products(ctx)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, products)
}

// leaderboardHandler returns the best score per profile, optionally for one category.
func (handlers *handlers) leaderboardHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeErrorResponse(res, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	entries, err := handlers.app.Leaderboard(ctx, req.URL.Query().Get("category"), limit)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, entries)
}

// startQuizHandler opens a quiz run and returns its first question.
func (handlers *handlers) startQuizHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	var start models.StartQuizRequest
	if err := readJSON(req, &start); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	question, err := handlers.app.StartQuiz(ctx, claims, start)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusCreated, question)
}

func (handlers *handlers) questionHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	question, err := handlers.app.Question(ctx, claims, chi.URLParam(req, "id"))
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, question)
}

func (handlers *handlers) answerHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	var answer models.AnswerRequest
	if err := readJSON(req, &answer); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := handlers.app.Answer(ctx, claims, chi.URLParam(req, "id"), answer)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, result)
}

// submitScoreHandler hands a score to the throttled score channel.
func (handlers *handlers) submitScoreHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	var score models.ScoreRequest
	if err := readJSON(req, &score); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	posted, err := handlers.app.SubmitScore(ctx, claims, score)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}

	status := http.StatusAccepted
	if posted {
		status = http.StatusCreated
	}
	writeResponse(res, status, models.ScoreResponse{Posted: posted})
}

func (handlers *handlers) lastScoreHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, ok := claimsOf(res, req)
	if !ok {
		return
	}

	last, err := handlers.app.LastScore(ctx, claims)
	if err != nil {
		handlers.writeAppError(res, err)
		return
	}
	writeResponse(res, http.StatusOK, last)
}

// writeAppError maps business errors to HTTP status codes.
func (handlers *handlers) writeAppError(res http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		handlers.log.Sugar().Errorf("Failed to process request: %s", err)
	}
	writeErrorResponse(res, err.Error(), status)
}

func statusOf(err error) int {
	var pgxError *pgx_pgconn.PgError
	switch {
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, app.ErrOrderFailed),
		errors.Is(err, payment.ErrInvalidWebhook):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrOutOfResource):
		return http.StatusPaymentRequired
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrSessionOver):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrInsufficientCatalog):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pgxError) && pgxError.Code == pgerrcode.ForeignKeyViolation:
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func claimsOf(res http.ResponseWriter, req *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(req.Context())
	if !ok || claims.ProfileID == 0 {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

func readJSON(req *http.Request, v any) error {
	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(requestBody, v)
}

func writeResponse(res http.ResponseWriter, statusCode int, v any) {
	result, err := json.Marshal(v)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
