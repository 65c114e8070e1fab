package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the internal delivery status of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further status transition is expected.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Direction indicates whether a message was sent by us or received from the provider.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MaxBodyLength is the maximum message body length in characters.
const MaxBodyLength = 250

// phonePattern accepts E.164-style numbers: optional leading +, no leading
// zero, 2-15 digits total.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Message represents an SMS message in the store.
type Message struct {
	ID          uuid.UUID
	Owner       string
	PhoneNumber string
	MessageBody string
	Direction   Direction
	Status      Status
	TwilioSID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User represents a registered account. Only the bcrypt digest of the
// password is ever stored.
type User struct {
	ID             uuid.UUID
	UserName       string
	PasswordDigest string
	CreatedAt      time.Time
}

// ValidateNewMessage checks the client-supplied fields of a message before it
// is persisted. It returns one error string per failed field, empty when valid.
func ValidateNewMessage(phoneNumber, messageBody string) []string {
	var errs []string

	phone := strings.TrimSpace(phoneNumber)
	if phone == "" {
		errs = append(errs, "phone_number is required")
	} else if !phonePattern.MatchString(phone) {
		errs = append(errs, "phone_number must be a valid phone number")
	}

	body := strings.TrimSpace(messageBody)
	if body == "" {
		errs = append(errs, "message_body is required")
	} else if utf8.RuneCountInString(body) > MaxBodyLength {
		errs = append(errs, "message_body must be 250 characters or less")
	}

	return errs
}
