package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smschat/server/internal/model"
)

// MessageRepo defines the interface for message store operations.
type MessageRepo interface {
	// Create persists a new message and returns it with id and timestamps set.
	Create(ctx context.Context, m model.Message) (model.Message, error)
	// GetByTwilioSID looks up the message correlated with a provider callback.
	GetByTwilioSID(ctx context.Context, sid string) (model.Message, error)
	// ListByOwner returns all messages for an owner, newest first.
	ListByOwner(ctx context.Context, owner string) ([]model.Message, error)
	// UpdateStatus sets the status of a message.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	// MarkAccepted records the provider sid and initial status after a
	// successful send.
	MarkAccepted(ctx context.Context, id uuid.UUID, sid string, status model.Status) error
	// ListRefreshable returns the owner's outbound messages that are still in
	// a non-terminal state, carry a provider sid, and were created after the
	// given cutoff.
	ListRefreshable(ctx context.Context, owner string, createdAfter time.Time) ([]model.Message, error)
}

type messageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new MessageRepo instance
func NewMessageRepo(db *sql.DB) MessageRepo {
	return &messageRepo{db: db}
}

const messageColumns = `id, owner, phone_number, message_body, direction, status, twilio_sid, created_at, updated_at`

func (r *messageRepo) Create(ctx context.Context, m model.Message) (model.Message, error) {
	query := `
		INSERT INTO messages (id, owner, phone_number, message_body, direction, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	m.ID = uuid.New()
	err := r.db.QueryRowContext(ctx, query,
		m.ID.String(),
		m.Owner,
		m.PhoneNumber,
		m.MessageBody,
		string(m.Direction),
		string(m.Status),
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return m, nil
}

func (r *messageRepo) GetByTwilioSID(ctx context.Context, sid string) (model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE twilio_sid = $1
	`
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, sid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Message{}, ErrNotFound
		}
		return model.Message{}, fmt.Errorf("failed to query message by sid: %w", err)
	}
	return m, nil
}

func (r *messageRepo) ListByOwner(ctx context.Context, owner string) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE owner = $1
		ORDER BY created_at DESC
	`
	return r.queryMessages(ctx, query, owner)
}

func (r *messageRepo) ListRefreshable(ctx context.Context, owner string, createdAfter time.Time) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE owner = $1
		  AND direction = 'outbound'
		  AND status IN ('sending', 'sent')
		  AND twilio_sid IS NOT NULL
		  AND created_at > $2
		ORDER BY created_at DESC
	`
	return r.queryMessages(ctx, query, owner, createdAfter)
}

func (r *messageRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	query := `
		UPDATE messages
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id.String(), string(status))
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepo) MarkAccepted(ctx context.Context, id uuid.UUID, sid string, status model.Status) error {
	query := `
		UPDATE messages
		SET twilio_sid = $2, status = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id.String(), sid, string(status))
	if err != nil {
		return fmt.Errorf("failed to mark message accepted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepo) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (model.Message, error) {
	var m model.Message
	var idStr, direction, status string
	var sid sql.NullString

	err := row.Scan(
		&idStr,
		&m.Owner,
		&m.PhoneNumber,
		&m.MessageBody,
		&direction,
		&status,
		&sid,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return model.Message{}, err
	}

	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to parse message ID: %w", err)
	}
	m.Direction = model.Direction(direction)
	m.Status = model.Status(status)
	if sid.Valid {
		s := sid.String
		m.TwilioSID = &s
	}
	return m, nil
}
