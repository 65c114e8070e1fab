package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/smschat/server/internal/auth"
	"github.com/smschat/server/internal/http/handlers"
	"github.com/smschat/server/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured. Public
// routes: register, login, health, the provider webhook. Everything under
// /messages requires a valid bearer token.
func NewRouter(
	authHandler *handlers.AuthHandler,
	messagesHandler *handlers.MessagesHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	jwtService *auth.JWTService,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Post("/login", authHandler.HandleLogin)
	r.Post("/register", authHandler.HandleRegister)

	r.Post("/webhooks/twilio/status", webhookHandler.HandleTwilioStatus)

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService))
		r.Get("/messages", messagesHandler.HandleList)
		r.Post("/messages", messagesHandler.HandleCreate)
		r.Get("/messages/check_status_updates", messagesHandler.HandleCheckStatusUpdates)
	})

	return r
}
