package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/smschat/server/internal/model"
)

// MessageService is the lifecycle surface the HTTP layer depends on.
// Implemented by *sms.Service.
type MessageService interface {
	Create(ctx context.Context, owner, phoneNumber, messageBody string) (model.Message, error)
	ListMessages(ctx context.Context, owner string) ([]model.Message, error)
	RefreshStatuses(ctx context.Context, owner string) ([]model.Message, int, error)
	ApplyWebhook(ctx context.Context, sid, providerStatus string) (bool, error)
}

// messageResponse is the persisted message JSON shape.
type messageResponse struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	MessageBody string    `json:"message_body"`
	Direction   string    `json:"direction"`
	Status      string    `json:"status"`
	TwilioSID   string    `json:"twilio_sid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMessageResponse(m model.Message) messageResponse {
	resp := messageResponse{
		ID:          m.ID.String(),
		PhoneNumber: m.PhoneNumber,
		MessageBody: m.MessageBody,
		Direction:   string(m.Direction),
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.TwilioSID != nil {
		resp.TwilioSID = *m.TwilioSID
	}
	return resp
}

func toMessageResponses(messages []model.Message) []messageResponse {
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	return out
}

// respondWithJSON writes a JSON response with the given status code
func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithErrors sends a field-level error list
func respondWithErrors(w http.ResponseWriter, statusCode int, errs []string) {
	respondWithJSON(w, statusCode, map[string][]string{"errors": errs})
}
