package service

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"voka/internal/app"
	"voka/internal/pkg/auth"
	"voka/internal/pkg/logger"
)

// paymentCORS lets the mini app call the payment functions from any origin.
var paymentCORS = cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
	MaxAge:         300,
}

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the server's run address, and a logger for event and error logging.
type Service struct {
	handlers   *handlers
	app        *app.App
	runAddress string
	log        *logger.Logger
}

// NewService creates and initializes a new Service instance.
// It sets up the handlers using the provided application and logger,
// and configures the server's run address.
func NewService(app *app.App, runAddress string, l *logger.Logger) *Service {
	handlers := newHandlers(app, l)
	return &Service{handlers: handlers, app: app, runAddress: runAddress, log: l}
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// It applies logging middleware globally, JWT authentication middleware for the player API, and
// CORS for the payment functions called straight from the mini app.
func (service *Service) NewRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(service.log.WithLogging())
	router.Use(middleware.Recoverer)

	router.Post("/api/auth", service.handlers.authHandler)
	router.Post("/api/auth/anonymous", service.handlers.anonymousAuthHandler)
	router.Post("/api/auth/zalo", service.handlers.zaloAuthHandler)

	router.Group(func(r chi.Router) {
		r.Use(auth.CheckJWTMiddleware())

		r.Get("/api/profile", service.handlers.profileHandler)
		r.Put("/api/profile", service.handlers.updateProfileHandler)
		r.Put("/api/profile/permission", service.handlers.permissionHandler)

		r.Get("/api/hearts", service.handlers.balanceHandler)
		r.Post("/api/hearts/reset", service.handlers.resetHeartsHandler)
		r.Post("/api/hearts/dismiss", service.handlers.dismissHandler)

		r.Get("/api/categories", service.handlers.categoriesHandler)
		r.Get("/api/products", service.handlers.productsHandler)
		r.Get("/api/leaderboard", service.handlers.leaderboardHandler)

		r.Post("/api/quiz/sessions", service.handlers.startQuizHandler)
		r.Get("/api/quiz/sessions/{id}", service.handlers.questionHandler)
		r.Post("/api/quiz/sessions/{id}/answer", service.handlers.answerHandler)

		r.Post("/api/scores", service.handlers.submitScoreHandler)
		r.Get("/api/scores/last", service.handlers.lastScoreHandler)
	})

	router.Route("/functions/payment", func(r chi.Router) {
		r.Use(cors.Handler(paymentCORS))
		r.Options("/", preflightHandler)
		r.Options("/order", preflightHandler)
		r.Post("/", service.handlers.createOrderHandler)
		r.Post("/order", service.handlers.verifyOrderHandler)
	})

	return router
}
