// Package sms implements the message lifecycle: creation, the synchronous
// delivery attempt, webhook-driven status updates, and the polling refresh
// path. All entry points converge on the same store update and status mapping.
package sms

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/smschat/server/internal/cache"
	"github.com/smschat/server/internal/model"
	"github.com/smschat/server/internal/repo"
)

// refreshWindow bounds how far back the polling refresh looks for messages
// still awaiting a terminal status.
const refreshWindow = 24 * time.Hour

// Gateway is the outbound side of the delivery provider.
type Gateway interface {
	// Send submits a message and returns the provider-assigned sid and the
	// provider's initial status token.
	Send(ctx context.Context, to, body string) (sid string, status string, err error)
	// FetchStatus returns the provider's current status token for a sid.
	FetchStatus(ctx context.Context, sid string) (string, error)
}

// ValidationError carries field-level errors for a rejected create request.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// DeliveryError reports that the message could not be handed to the provider.
// The failed record is retained in the store and carried here so callers can
// still show it.
type DeliveryError struct {
	Message model.Message
	cause   error
}

func (e *DeliveryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("delivery failed: %v", e.cause)
	}
	return "delivery failed: provider not configured"
}

func (e *DeliveryError) Unwrap() error { return e.cause }

// Service is the message lifecycle orchestrator.
type Service struct {
	messages   repo.MessageRepo
	gateway    Gateway
	cache      cache.MessageCache
	configured bool
}

// NewService creates a lifecycle service. configured reflects whether provider
// credentials were resolved at startup; when false every send attempt
// short-circuits to a failed delivery without network I/O.
func NewService(messages repo.MessageRepo, gateway Gateway, messageCache cache.MessageCache, configured bool) *Service {
	return &Service{
		messages:   messages,
		gateway:    gateway,
		cache:      messageCache,
		configured: configured,
	}
}

// Create validates and persists a new outbound message, then attempts
// delivery synchronously. The returned error is *ValidationError when input
// was rejected (nothing persisted) or *DeliveryError when the send failed
// (record retained with status failed).
func (s *Service) Create(ctx context.Context, owner, phoneNumber, messageBody string) (model.Message, error) {
	if errs := model.ValidateNewMessage(phoneNumber, messageBody); len(errs) > 0 {
		return model.Message{}, &ValidationError{Errors: errs}
	}

	message, err := s.messages.Create(ctx, model.Message{
		Owner:       owner,
		PhoneNumber: strings.TrimSpace(phoneNumber),
		MessageBody: strings.TrimSpace(messageBody),
		Direction:   model.DirectionOutbound,
		Status:      model.StatusSending,
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to persist message: %w", err)
	}
	s.invalidate(ctx, owner)

	if !s.configured {
		log.Printf("sms: provider not configured, message %s marked failed", message.ID)
		return s.failMessage(ctx, message, nil)
	}

	sid, providerStatus, err := s.gateway.Send(ctx, message.PhoneNumber, message.MessageBody)
	if err != nil {
		log.Printf("sms: send failed for message %s: %v", message.ID, err)
		return s.failMessage(ctx, message, err)
	}

	mapped := MapProviderStatus(providerStatus)
	if err := s.messages.MarkAccepted(ctx, message.ID, sid, mapped); err != nil {
		return model.Message{}, fmt.Errorf("failed to record provider acceptance: %w", err)
	}
	s.invalidate(ctx, owner)

	message.TwilioSID = &sid
	message.Status = mapped
	return message, nil
}

// failMessage records the failed outcome and wraps it in a DeliveryError.
// The record is kept so the failed attempt stays visible to the user.
func (s *Service) failMessage(ctx context.Context, message model.Message, cause error) (model.Message, error) {
	if err := s.messages.UpdateStatus(ctx, message.ID, model.StatusFailed); err != nil {
		return model.Message{}, fmt.Errorf("failed to record delivery failure: %w", err)
	}
	s.invalidate(ctx, message.Owner)
	message.Status = model.StatusFailed
	return message, &DeliveryError{Message: message, cause: cause}
}

// ApplyWebhook applies an asynchronous provider status callback. It returns
// repo.ErrNotFound when the sid is unknown and reports whether a store write
// happened; re-delivery of the same status is a no-op, so the provider's
// at-least-once callbacks are safe.
func (s *Service) ApplyWebhook(ctx context.Context, sid, providerStatus string) (bool, error) {
	message, err := s.messages.GetByTwilioSID(ctx, sid)
	if err != nil {
		return false, err
	}

	newStatus := MapProviderStatus(providerStatus)
	if newStatus == message.Status {
		return false, nil
	}

	if err := s.messages.UpdateStatus(ctx, message.ID, newStatus); err != nil {
		return false, fmt.Errorf("failed to update message status: %w", err)
	}
	s.invalidate(ctx, message.Owner)
	log.Printf("sms: message %s status %s -> %s (webhook)", sid, message.Status, newStatus)
	return true, nil
}

// RefreshStatuses polls the provider for the owner's recent non-terminal
// messages and applies any status changes. A provider failure on one message
// is logged and does not abort the rest of the batch. It always returns the
// owner's full current list plus the number of updates applied.
func (s *Service) RefreshStatuses(ctx context.Context, owner string) ([]model.Message, int, error) {
	updated := 0

	if s.configured {
		candidates, err := s.messages.ListRefreshable(ctx, owner, time.Now().Add(-refreshWindow))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list refreshable messages: %w", err)
		}

		for _, message := range candidates {
			providerStatus, err := s.gateway.FetchStatus(ctx, *message.TwilioSID)
			if err != nil {
				log.Printf("sms: status fetch failed for %s: %v", *message.TwilioSID, err)
				continue
			}

			newStatus := MapProviderStatus(providerStatus)
			if newStatus == message.Status {
				continue
			}
			if err := s.messages.UpdateStatus(ctx, message.ID, newStatus); err != nil {
				log.Printf("sms: status update failed for %s: %v", *message.TwilioSID, err)
				continue
			}
			updated++
		}
	}

	if updated > 0 {
		s.invalidate(ctx, owner)
	}

	messages, err := s.ListMessages(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	return messages, updated, nil
}

// ListMessages returns the owner's messages, newest first, through the cache.
func (s *Service) ListMessages(ctx context.Context, owner string) ([]model.Message, error) {
	if messages, ok := s.cache.GetList(ctx, owner); ok {
		return messages, nil
	}

	messages, err := s.messages.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if err := s.cache.SetList(ctx, owner, messages); err != nil {
		log.Printf("sms: cache set failed for owner %q: %v", owner, err)
	}
	return messages, nil
}

func (s *Service) invalidate(ctx context.Context, owner string) {
	if err := s.cache.Invalidate(ctx, owner); err != nil {
		log.Printf("sms: cache invalidation failed for owner %q: %v", owner, err)
	}
}
