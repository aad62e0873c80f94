// Package pipeline orchestrates one conversation turn: load history,
// normalize it, dispatch to the model, classify the reply, and persist
// the outcome. Each invocation is stateless; everything it needs is
// loaded fresh and written back before returning.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mithoo/internal/convo"
	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
	"mithoo/internal/training"
)

// Pipeline wires the conversation stages together.
type Pipeline struct {
	conversations persistence.ConversationRepository
	prefs         persistence.PreferenceRepository
	training      *training.Service
	factory       llm.Factory
}

// New creates a pipeline over the given collaborators.
func New(conversations persistence.ConversationRepository, prefs persistence.PreferenceRepository, tr *training.Service, factory llm.Factory) *Pipeline {
	return &Pipeline{
		conversations: conversations,
		prefs:         prefs,
		training:      tr,
		factory:       factory,
	}
}

// ChatRequest is one user turn entering the pipeline.
type ChatRequest struct {
	UserID         string                `json:"userId"`
	ConversationID string                `json:"conversationId"` // Empty means start a new conversation
	ArticleID      string                `json:"articleId"`
	Message        string                `json:"message"`
	Document       *core.DocumentContext `json:"document"` // Working document, may be nil
	EnableResearch bool                  `json:"enableResearch"`
}

// ChatResult is the caller-facing outcome of one turn. Type is "edit"
// when the model proposed a document change and "chat" otherwise.
type ChatResult struct {
	Type           string          `json:"type"`
	Content        string          `json:"content,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
	NewContent     string          `json:"newContent,omitempty"`
	ConversationID string          `json:"conversationId"`
	Sources        []core.Citation `json:"sources,omitempty"`
	Degraded       bool            `json:"degraded,omitempty"`
}

// Chat runs one buffered turn.
func (p *Pipeline) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	return p.run(ctx, req, nil)
}

// ChatStream runs one turn, flushing model chunks through onChunk as
// they arrive. Classification and persistence still happen on the
// complete final text.
func (p *Pipeline) ChatStream(ctx context.Context, req ChatRequest, onChunk func(chunk string)) (*ChatResult, error) {
	return p.run(ctx, req, onChunk)
}

func (p *Pipeline) run(ctx context.Context, req ChatRequest, onChunk func(string)) (*ChatResult, error) {
	conv, err := p.loadOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	userTurn := core.Turn{Role: core.RoleUser, Content: req.Message}
	normalized, err := convo.Normalize(append(append([]core.Turn{}, conv.Messages...), userTurn))
	if err != nil {
		// Nothing is persisted for a turn the model never saw.
		return nil, err
	}

	apiKey, err := p.resolveKey(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	gen, err := p.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	trainingText := p.training.LatestText(ctx, req.UserID)

	llmReq := llm.Request{
		Turns:          normalized,
		SystemPrompt:   llm.SystemPrompt(req.Document, trainingText),
		EnableResearch: req.EnableResearch,
	}

	var result llm.Result
	if onChunk != nil {
		result, err = gen.GenerateStream(ctx, llmReq, onChunk)
	} else {
		result, err = gen.Generate(ctx, llmReq)
	}
	if err != nil {
		return nil, err
	}

	reply, historyContent := convo.Classify(result.Text)

	// The raw history keeps the turn as typed; for edits only the
	// explanation is stored so the document never bloats the log.
	conv.Messages = append(conv.Messages,
		userTurn,
		core.Turn{Role: core.RoleAssistant, Content: historyContent},
	)
	conv.UpdatedAt = time.Now().UTC()
	if err := p.conversations.Save(ctx, conv); err != nil {
		return nil, err
	}

	res := &ChatResult{
		ConversationID: conv.ID,
		Sources:        result.Sources,
		Degraded:       result.Degraded,
	}
	switch reply.Kind {
	case convo.ReplyEdit:
		res.Type = "edit"
		res.Explanation = reply.Edit.Explanation
		res.NewContent = reply.Edit.NewContent
	default:
		res.Type = "chat"
		res.Content = reply.Content
	}

	logger.Info("Conversation turn completed",
		"conversation_id", conv.ID,
		"user_id", req.UserID,
		"reply_type", res.Type,
		"degraded", res.Degraded)
	return res, nil
}

// SaveExchange appends a user/assistant pair without dispatching to the
// model. The streaming client uses it to persist turns it already holds.
func (p *Pipeline) SaveExchange(ctx context.Context, req ChatRequest, assistantContent string) (string, error) {
	conv, err := p.loadOrCreate(ctx, req)
	if err != nil {
		return "", err
	}

	conv.Messages = append(conv.Messages,
		core.Turn{Role: core.RoleUser, Content: req.Message},
		core.Turn{Role: core.RoleAssistant, Content: assistantContent},
	)
	conv.UpdatedAt = time.Now().UTC()
	if err := p.conversations.Save(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// History returns the persisted message list for a conversation, or
// (nil, nil) when the conversation does not exist.
func (p *Pipeline) History(ctx context.Context, conversationID string) ([]core.Turn, error) {
	conv, err := p.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}
	return conv.Messages, nil
}

// loadOrCreate fetches the conversation, creating the record up front
// when the ID is absent or unknown so the turn always has a home.
func (p *Pipeline) loadOrCreate(ctx context.Context, req ChatRequest) (*core.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := p.conversations.Get(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return conv, nil
		}
	}

	now := time.Now().UTC()
	conv := &core.Conversation{
		ID:        req.ConversationID,
		UserID:    req.UserID,
		ArticleID: req.ArticleID,
		Messages:  []core.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if err := p.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (p *Pipeline) resolveKey(ctx context.Context, userID string) (string, error) {
	prefs, err := p.prefs.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	custom := ""
	if prefs != nil {
		custom = prefs.CustomGeminiKey
	}
	return llm.ResolveAPIKey(custom, llm.DefaultAPIKey()), nil
}
