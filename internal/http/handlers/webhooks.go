package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/smschat/server/internal/repo"
)

// WebhookHandler ingests asynchronous provider status callbacks. The endpoint
// is unauthenticated; correlation happens on the provider message sid.
type WebhookHandler struct {
	service MessageService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service MessageService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleTwilioStatus handles POST /webhooks/twilio/status. Twilio posts form
// fields MessageSid and MessageStatus, at least once per transition.
func (h *WebhookHandler) HandleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	sid := r.PostFormValue("MessageSid")
	status := r.PostFormValue("MessageStatus")
	if sid == "" || status == "" {
		log.Printf("Invalid webhook payload: missing MessageSid or MessageStatus")
		respondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if _, err := h.service.ApplyWebhook(r.Context(), sid, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Expected provider noise: stale or foreign sids.
			log.Printf("Received status update for unknown message SID: %s", sid)
			respondWithError(w, http.StatusNotFound, "Message not found")
			return
		}
		log.Printf("Webhook processing failed for SID %s: %v", sid, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
