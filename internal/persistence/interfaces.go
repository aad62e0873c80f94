// Package persistence provides the storage abstraction for conversations,
// articles, preferences, style-training data, and agent sessions, plus
// the PostgreSQL implementation.
package persistence

import (
	"context"
	"fmt"

	"mithoo/internal/core"
)

// StoreUnavailableError wraps a datastore failure. The turn it aborts is
// not retried automatically; the caller may retry the whole user action.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("datastore unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// ConversationRepository handles conversation persistence. The contract
// is read-full-list / write-full-list: Save upserts the entire message
// sequence, and concurrent writers race last-writer-wins.
type ConversationRepository interface {
	// Get retrieves a conversation by ID, or (nil, nil) if none exists.
	Get(ctx context.Context, id string) (*core.Conversation, error)

	// Create inserts a new conversation record.
	Create(ctx context.Context, conv *core.Conversation) error

	// Save writes back the full message list for an existing conversation.
	Save(ctx context.Context, conv *core.Conversation) error
}

// ArticleRepository handles the working documents conversations edit.
type ArticleRepository interface {
	// Get retrieves an article by ID, or (nil, nil) if none exists.
	Get(ctx context.Context, id string) (*core.Article, error)

	// Create inserts a new article.
	Create(ctx context.Context, article *core.Article) error

	// UpdateContent replaces an article's body and word count, scoped to
	// the owning user.
	UpdateContent(ctx context.Context, id, userID, content string, wordCount int) error

	// UpdateResearch attaches the latest research run to an article,
	// scoped to the owning user.
	UpdateResearch(ctx context.Context, id, userID string, data *core.ResearchData) error
}

// PreferenceRepository handles per-user settings.
type PreferenceRepository interface {
	// Get retrieves a user's preferences, or (nil, nil) if none exist.
	Get(ctx context.Context, userID string) (*core.Preferences, error)

	// Save upserts a user's preferences.
	Save(ctx context.Context, prefs *core.Preferences) error
}

// TrainingRepository handles style-training records.
type TrainingRepository interface {
	// Create inserts a new training record.
	Create(ctx context.Context, data *core.TrainingData) error

	// UpdateStatus moves a record through its lifecycle.
	UpdateStatus(ctx context.Context, id string, status core.TrainingStatus) error

	// LatestCompleted returns the newest completed record for a user, or
	// (nil, nil) if none exists.
	LatestCompleted(ctx context.Context, userID string) (*core.TrainingData, error)
}

// AgentRepository records completed agent runs. Sessions are written
// once after both model calls succeed; there is no partial state.
type AgentRepository interface {
	// Create inserts a finished agent session.
	Create(ctx context.Context, session *core.AgentSession) error

	// ListByUser returns a user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]core.AgentSession, error)
}

// Database aggregates the repositories behind one connection.
type Database interface {
	Conversations() ConversationRepository
	Articles() ArticleRepository
	Preferences() PreferenceRepository
	Training() TrainingRepository
	Agents() AgentRepository

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
