package handlers

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"
)

// HealthHandler reports service health: database reachability and provider
// configuration state.
type HealthHandler struct {
	db               *sql.DB
	twilioConfigured bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, twilioConfigured bool) *HealthHandler {
	return &HealthHandler{db: db, twilioConfigured: twilioConfigured}
}

// healthResponse is the JSON response for GET /health
type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// ServeHTTP handles GET /health. Any check that is not "ok" yields 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"server":   "ok",
		"database": h.checkDatabase(r.Context()),
		"twilio":   h.checkTwilio(),
	}

	healthy := true
	for _, v := range checks {
		if v != "ok" {
			healthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, healthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(pingCtx); err != nil {
		log.Printf("Database health check failed: %v", err)
		return "error"
	}
	return "ok"
}

func (h *HealthHandler) checkTwilio() string {
	if !h.twilioConfigured {
		log.Printf("Twilio configuration incomplete")
		return "warning"
	}
	return "ok"
}
