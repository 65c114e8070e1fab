package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/smschat/server/internal/middleware"
	"github.com/smschat/server/internal/sms"
)

// MessagesHandler handles the message endpoints
type MessagesHandler struct {
	service MessageService
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(service MessageService) *MessagesHandler {
	return &MessagesHandler{service: service}
}

// createMessageRequest is the request body for POST /messages
type createMessageRequest struct {
	Message struct {
		PhoneNumber string `json:"phone_number"`
		MessageBody string `json:"message_body"`
	} `json:"message"`
}

// statusUpdatesResponse is the JSON response for GET /messages/check_status_updates
type statusUpdatesResponse struct {
	Messages     []messageResponse `json:"messages"`
	UpdatesCount int               `json:"updates_count"`
}

// HandleList handles GET /messages. Returns the caller's messages newest-first.
func (h *MessagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserName(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, err := h.service.ListMessages(r.Context(), owner)
	if err != nil {
		log.Printf("Failed to list messages for %q: %v", owner, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusOK, toMessageResponses(messages))
}

// HandleCreate handles POST /messages. The delivery attempt is synchronous;
// a failed send still leaves the message persisted with status failed.
func (h *MessagesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserName(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.service.Create(r.Context(), owner, req.Message.PhoneNumber, req.Message.MessageBody)
	if err != nil {
		var vErr *sms.ValidationError
		if errors.As(err, &vErr) {
			respondWithErrors(w, http.StatusUnprocessableEntity, vErr.Errors)
			return
		}
		var dErr *sms.DeliveryError
		if errors.As(err, &dErr) {
			// Provider error detail stays in the server log.
			respondWithErrors(w, http.StatusUnprocessableEntity, []string{"message could not be sent"})
			return
		}
		log.Printf("Failed to create message for %q: %v", owner, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusCreated, toMessageResponse(message))
}

// HandleCheckStatusUpdates handles GET /messages/check_status_updates. It
// always returns the full current list, even when nothing changed.
func (h *MessagesHandler) HandleCheckStatusUpdates(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserName(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, updated, err := h.service.RefreshStatuses(r.Context(), owner)
	if err != nil {
		log.Printf("Status refresh failed for %q: %v", owner, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusOK, statusUpdatesResponse{
		Messages:     toMessageResponses(messages),
		UpdatesCount: updated,
	})
}
