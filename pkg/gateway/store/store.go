// Package store persists conversations and agents.
package store

import (
	"context"
	"errors"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("not found")

// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	UserID  string
	AgentID string
}

// ConversationStore persists conversation documents. The whole document is
// replaced on save; callers serialize mutations per conversation.
type ConversationStore interface {
	Insert(ctx context.Context, c *types.Conversation) error
	FindByID(ctx context.Context, id string) (*types.Conversation, error)
	// Find lists conversations matching the filter, newest first.
	Find(ctx context.Context, f ConversationFilter) ([]*types.Conversation, error)
	Replace(ctx context.Context, c *types.Conversation) error
	// Delete removes the document and returns it, so callers can clean up
	// referenced audio files.
	Delete(ctx context.Context, id string) (*types.Conversation, error)
}

// AgentStore persists agent records, always scoped to the owning user.
type AgentStore interface {
	Insert(ctx context.Context, a *types.Agent) error
	FindByID(ctx context.Context, id, userID string) (*types.Agent, error)
	FindByUser(ctx context.Context, userID string) ([]*types.Agent, error)
	Update(ctx context.Context, a *types.Agent) error
	Delete(ctx context.Context, id, userID string) error
}
