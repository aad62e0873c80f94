package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mithoo/internal/convo"
	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/persistence"
	"mithoo/internal/training"
)

type memConversationRepo struct {
	conversations map[string]*core.Conversation
	saveErr       error
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{conversations: make(map[string]*core.Conversation)}
}

func (r *memConversationRepo) Get(_ context.Context, id string) (*core.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *conv
	cp.Messages = append([]core.Turn{}, conv.Messages...)
	return &cp, nil
}

func (r *memConversationRepo) Create(_ context.Context, conv *core.Conversation) error {
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

func (r *memConversationRepo) Save(_ context.Context, conv *core.Conversation) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

type memPreferenceRepo struct {
	prefs map[string]*core.Preferences
}

func (r *memPreferenceRepo) Get(_ context.Context, userID string) (*core.Preferences, error) {
	if r.prefs == nil {
		return nil, nil
	}
	return r.prefs[userID], nil
}

func (r *memPreferenceRepo) Save(_ context.Context, p *core.Preferences) error {
	if r.prefs == nil {
		r.prefs = make(map[string]*core.Preferences)
	}
	r.prefs[p.UserID] = p
	return nil
}

type memTrainingRepo struct {
	latest *core.TrainingData
}

func (r *memTrainingRepo) Create(_ context.Context, _ *core.TrainingData) error { return nil }
func (r *memTrainingRepo) UpdateStatus(_ context.Context, _ string, _ core.TrainingStatus) error {
	return nil
}
func (r *memTrainingRepo) LatestCompleted(_ context.Context, _ string) (*core.TrainingData, error) {
	return r.latest, nil
}

// fakeGenerator returns a canned result and records the request it saw.
type fakeGenerator struct {
	result  llm.Result
	err     error
	lastReq llm.Request
	chunks  []string
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (llm.Result, error) {
	g.lastReq = req
	return g.result, g.err
}

func (g *fakeGenerator) GenerateStream(_ context.Context, req llm.Request, onChunk func(string)) (llm.Result, error) {
	g.lastReq = req
	if g.err != nil {
		return llm.Result{}, g.err
	}
	for _, c := range g.chunks {
		onChunk(c)
	}
	return g.result, nil
}

func newTestPipeline(gen *fakeGenerator) (*Pipeline, *memConversationRepo) {
	conversations := newMemConversationRepo()
	prefs := &memPreferenceRepo{}
	tr := training.NewService(&memTrainingRepo{})
	factory := func(_ context.Context, _ string) (llm.Generator, error) { return gen, nil }
	return New(conversations, prefs, tr, factory), conversations
}

func TestChatEditPersistsExplanationOnly(t *testing.T) {
	raw := "```json\n{\"explanation\": \"Tightened the intro.\", \"newContent\": \"# New Draft\\n\\nShorter opening.\"}\n```"
	gen := &fakeGenerator{result: llm.Result{Text: raw}}
	p, conversations := newTestPipeline(gen)

	res, err := p.Chat(context.Background(), ChatRequest{
		UserID:  "user-1",
		Message: "Tighten the intro",
		Document: &core.DocumentContext{
			Title:    "Draft",
			Markdown: "# Draft\n\nA long rambling opening.",
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if res.Type != "edit" {
		t.Fatalf("expected edit result, got %q", res.Type)
	}
	if res.Explanation != "Tightened the intro." {
		t.Errorf("explanation = %q", res.Explanation)
	}
	if !strings.Contains(res.NewContent, "Shorter opening.") {
		t.Errorf("newContent = %q", res.NewContent)
	}

	conv := conversations.conversations[res.ConversationID]
	if conv == nil {
		t.Fatal("conversation not persisted")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(conv.Messages))
	}
	// Only the explanation goes into history, never the document.
	if conv.Messages[1].Content != "Tightened the intro." {
		t.Errorf("persisted assistant turn = %q", conv.Messages[1].Content)
	}
	if strings.Contains(conv.Messages[1].Content, "Shorter opening.") {
		t.Error("document content leaked into conversation history")
	}
}

func TestChatPlainReply(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Text: "Sure, here are three angle ideas."}}
	p, conversations := newTestPipeline(gen)

	res, err := p.Chat(context.Background(), ChatRequest{UserID: "user-1", Message: "Suggest angles"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if res.Type != "chat" || res.Content != "Sure, here are three angle ideas." {
		t.Errorf("unexpected result: %+v", res)
	}

	conv := conversations.conversations[res.ConversationID]
	if conv.Messages[1].Content != "Sure, here are three angle ideas." {
		t.Errorf("chat reply must persist verbatim, got %q", conv.Messages[1].Content)
	}
}

func TestChatDegradedApology(t *testing.T) {
	apology := "I am unable to provide a response. Reason: SAFETY. Please try rephrasing your request."
	gen := &fakeGenerator{result: llm.Result{Text: apology, Degraded: true}}
	p, conversations := newTestPipeline(gen)

	res, err := p.Chat(context.Background(), ChatRequest{UserID: "user-1", Message: "blocked prompt"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !res.Degraded {
		t.Error("degraded flag not propagated")
	}
	if res.Type != "chat" || !strings.Contains(res.Content, "SAFETY") {
		t.Errorf("unexpected result: %+v", res)
	}
	// The apology is a legitimate assistant turn and is persisted.
	conv := conversations.conversations[res.ConversationID]
	if conv.Messages[1].Content != apology {
		t.Errorf("apology not persisted: %q", conv.Messages[1].Content)
	}
}

func TestChatNoUserTurnAbortsWithoutPersisting(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Text: "unused"}}
	p, conversations := newTestPipeline(gen)

	_, err := p.Chat(context.Background(), ChatRequest{UserID: "user-1", Message: "   "})
	if !errors.Is(err, convo.ErrNoUserTurn) {
		t.Fatalf("expected ErrNoUserTurn, got %v", err)
	}

	for _, conv := range conversations.conversations {
		if len(conv.Messages) != 0 {
			t.Errorf("turn persisted despite abort: %+v", conv.Messages)
		}
	}
}

func TestChatContinuesExistingConversation(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Text: "Second answer."}}
	p, conversations := newTestPipeline(gen)

	first := &core.Conversation{
		ID:     "conv-1",
		UserID: "user-1",
		Messages: []core.Turn{
			{Role: core.RoleUser, Content: "First question"},
			{Role: core.RoleAssistant, Content: "First answer."},
		},
	}
	conversations.Create(context.Background(), first)

	res, err := p.Chat(context.Background(), ChatRequest{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Message:        "Second question",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if res.ConversationID != "conv-1" {
		t.Errorf("conversation id = %q", res.ConversationID)
	}

	// The model saw the full normalized history plus the new turn.
	if len(gen.lastReq.Turns) != 3 {
		t.Fatalf("expected 3 turns sent to model, got %d", len(gen.lastReq.Turns))
	}
	if gen.lastReq.Turns[2].Content != "Second question" {
		t.Errorf("last turn = %q", gen.lastReq.Turns[2].Content)
	}

	conv := conversations.conversations["conv-1"]
	if len(conv.Messages) != 4 {
		t.Errorf("expected 4 persisted turns, got %d", len(conv.Messages))
	}
}

func TestChatStreamForwardsChunks(t *testing.T) {
	gen := &fakeGenerator{
		chunks: []string{"Hel", "lo ", "there."},
		result: llm.Result{Text: "Hello there."},
	}
	p, _ := newTestPipeline(gen)

	var streamed []string
	res, err := p.ChatStream(context.Background(), ChatRequest{UserID: "user-1", Message: "Hi"},
		func(chunk string) { streamed = append(streamed, chunk) })
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if strings.Join(streamed, "") != "Hello there." {
		t.Errorf("streamed chunks = %q", streamed)
	}
	if res.Content != "Hello there." {
		t.Errorf("final content = %q", res.Content)
	}
}

func TestChatUpstreamErrorPropagates(t *testing.T) {
	gen := &fakeGenerator{err: &llm.UpstreamError{Message: "rate limited"}}
	p, _ := newTestPipeline(gen)

	_, err := p.Chat(context.Background(), ChatRequest{UserID: "user-1", Message: "Hi"})
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestChatStoreFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Text: "answer"}}
	p, conversations := newTestPipeline(gen)
	conversations.saveErr = &persistence.StoreUnavailableError{Op: "save conversation", Err: errors.New("connection refused")}

	_, err := p.Chat(context.Background(), ChatRequest{UserID: "user-1", Message: "Hi"})
	var unavailable *persistence.StoreUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected StoreUnavailableError, got %v", err)
	}
}

func TestSaveExchange(t *testing.T) {
	gen := &fakeGenerator{}
	p, conversations := newTestPipeline(gen)

	id, err := p.SaveExchange(context.Background(), ChatRequest{
		UserID:  "user-1",
		Message: "What did we decide?",
	}, "We decided to lead with the case study.")
	if err != nil {
		t.Fatalf("SaveExchange failed: %v", err)
	}

	conv := conversations.conversations[id]
	if conv == nil {
		t.Fatal("conversation not created")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != core.RoleUser || conv.Messages[1].Role != core.RoleAssistant {
		t.Errorf("roles wrong: %+v", conv.Messages)
	}
}

func TestChatSystemPromptCarriesDocumentAndTraining(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Text: "ok"}}
	conversations := newMemConversationRepo()
	prefs := &memPreferenceRepo{}
	tr := training.NewService(&memTrainingRepo{latest: &core.TrainingData{
		TrainingText: "Short punchy sentences.",
		Status:       core.TrainingStatusCompleted,
	}})
	factory := func(_ context.Context, _ string) (llm.Generator, error) { return gen, nil }
	p := New(conversations, prefs, tr, factory)

	_, err := p.Chat(context.Background(), ChatRequest{
		UserID:  "user-1",
		Message: "Review my draft",
		Document: &core.DocumentContext{
			Title:    "The Piece",
			Markdown: "# The Piece\n\nBody text.",
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if !strings.Contains(gen.lastReq.SystemPrompt, `"The Piece"`) {
		t.Error("document title missing from system prompt")
	}
	if !strings.Contains(gen.lastReq.SystemPrompt, "Short punchy sentences.") {
		t.Error("training data missing from system prompt")
	}
}
