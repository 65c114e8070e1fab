package cache

import (
	"context"

	"github.com/smschat/server/internal/model"
)

// MessageCache caches per-owner message lists. Implementations treat cache
// failures as misses; the store stays authoritative.
type MessageCache interface {
	// GetList returns the cached list for an owner and whether it was present.
	GetList(ctx context.Context, owner string) ([]model.Message, bool)
	// SetList stores the list for an owner.
	SetList(ctx context.Context, owner string, messages []model.Message) error
	// Invalidate drops the cached list for an owner.
	Invalidate(ctx context.Context, owner string) error
}

// Noop is the MessageCache used when Redis is not configured.
type Noop struct{}

// NewNoop creates a cache that never hits.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) GetList(ctx context.Context, owner string) ([]model.Message, bool) { return nil, false }

func (*Noop) SetList(ctx context.Context, owner string, messages []model.Message) error { return nil }

func (*Noop) Invalidate(ctx context.Context, owner string) error { return nil }
