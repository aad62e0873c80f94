package core

import "time"

// Role identifies which side of a conversation produced a turn.
type Role string

const (
	// RoleUser marks a turn written by the human author.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the model.
	RoleAssistant Role = "assistant"
)

// Turn is one exchange unit in a conversation: a role plus text content.
// Turns are immutable once appended to a conversation's history.
type Turn struct {
	Role    Role   `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // Non-empty after normalization
}

// Conversation is an ordered, persisted sequence of turns tied to a user
// and optionally to the article being drafted. The full message list is
// read and written as a whole; the last writer wins.
type Conversation struct {
	ID        string    `json:"id"`         // Unique identifier for the conversation
	UserID    string    `json:"user_id"`    // Owning user
	ArticleID string    `json:"article_id"` // Associated article (may be empty)
	Messages  []Turn    `json:"messages"`   // Ordered turn history
	CreatedAt time.Time `json:"created_at"` // Timestamp when the conversation was created
	UpdatedAt time.Time `json:"updated_at"` // Timestamp of the last write
}

// Article is the working document a conversation edits. Content is
// markdown; ResearchData holds the most recent research run for the topic.
type Article struct {
	ID           string        `json:"id"`            // Unique identifier for the article
	UserID       string        `json:"user_id"`       // Owning user
	Title        string        `json:"title"`         // Title of the article
	Content      string        `json:"content"`       // Markdown body
	WordCount    int           `json:"word_count"`    // Word count of Content
	ResearchData *ResearchData `json:"research_data"` // Latest research run, if any
	CreatedAt    time.Time     `json:"created_at"`    // Timestamp when the article was created
	UpdatedAt    time.Time     `json:"updated_at"`    // Timestamp of the last update
}

// ResearchData captures the output of one research run for an article.
type ResearchData struct {
	Topic       string     `json:"topic"`        // Researched topic
	Keywords    []string   `json:"keywords"`     // Keywords supplied by the user
	Data        string     `json:"data"`         // Generated research text
	Sources     []Citation `json:"sources"`      // Grounding sources, when available
	GeneratedAt time.Time  `json:"generated_at"` // Timestamp when the research completed
}

// Citation is one grounding source the model consulted while researching.
type Citation struct {
	URL   string `json:"url"`   // Source URL
	Title string `json:"title"` // Page title (resolved best-effort)
}

// DocumentContext carries the working document into the system prompt.
// The pipeline only reads it; it never mutates the document.
type DocumentContext struct {
	Title    string `json:"title"`    // Article title ("Untitled" when unknown)
	Markdown string `json:"markdown"` // Current article content
}

// Preferences holds per-user settings that affect pipeline behavior.
type Preferences struct {
	UserID          string `json:"user_id"`           // Owning user
	CustomGeminiKey string `json:"custom_gemini_key"` // Optional user-supplied API key
}

// TrainingStatus tracks the lifecycle of a style-training record.
type TrainingStatus string

const (
	// TrainingStatusTraining means the record was accepted but not yet applied.
	TrainingStatusTraining TrainingStatus = "training"
	// TrainingStatusCompleted means the record is eligible for prompt injection.
	TrainingStatusCompleted TrainingStatus = "completed"
)

// AgentSession records one plan-then-execute agent run: the request, the
// plan the model produced, and the final answer.
type AgentSession struct {
	ID          string    `json:"id"`           // Unique identifier for the session
	UserID      string    `json:"user_id"`      // Owning user
	Prompt      string    `json:"prompt"`       // Original user request
	Plan        []string  `json:"plan"`         // Ordered plan steps
	FinalResult string    `json:"final_result"` // Markdown answer from the execution call
	Status      string    `json:"status"`       // completed once both calls succeed
	CreatedAt   time.Time `json:"created_at"`   // Timestamp when the session was recorded
}

// TrainingData is a user-supplied writing sample used to steer the model's
// style. The latest completed record is appended to system prompts.
type TrainingData struct {
	ID           string         `json:"id"`            // Unique identifier for the record
	UserID       string         `json:"user_id"`       // Owning user
	TrainingText string         `json:"training_text"` // The writing sample
	ModelName    string         `json:"model_name"`    // Label for the tuned persona
	Status       TrainingStatus `json:"status"`        // training or completed
	CreatedAt    time.Time      `json:"created_at"`    // Timestamp when the record was created
}
