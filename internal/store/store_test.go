package store

import (
	"context"
	"testing"
	"time"

	"mithoo/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := &core.Conversation{
		ID:        "conv-1",
		UserID:    "user-1",
		ArticleID: "article-1",
		Messages: []core.Turn{
			{Role: core.RoleUser, Content: "Tighten the intro"},
			{Role: core.RoleAssistant, Content: "Trimmed the opening paragraph."},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Conversations().Create(ctx, conv); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Conversations().Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected conversation, got nil")
	}
	if got.UserID != "user-1" || got.ArticleID != "article-1" {
		t.Errorf("unexpected ownership fields: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != core.RoleUser || got.Messages[1].Role != core.RoleAssistant {
		t.Errorf("message roles not preserved: %+v", got.Messages)
	}
}

func TestConversationGetMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Conversations().Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing conversation, got %+v", got)
	}
}

func TestConversationSaveReplacesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	conv := &core.Conversation{
		ID:        "conv-2",
		UserID:    "user-1",
		Messages:  []core.Turn{{Role: core.RoleUser, Content: "Hello"}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Conversations().Create(ctx, conv); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	conv.Messages = append(conv.Messages,
		core.Turn{Role: core.RoleAssistant, Content: "Hi there."},
		core.Turn{Role: core.RoleUser, Content: "Add a conclusion"},
	)
	conv.UpdatedAt = now.Add(time.Minute)
	if err := s.Conversations().Save(ctx, conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Conversations().Get(ctx, "conv-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("expected 3 messages after save, got %d", len(got.Messages))
	}
}

func TestArticleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	article := &core.Article{
		ID:        "article-1",
		UserID:    "user-1",
		Title:     "Go Concurrency Patterns",
		Content:   "Channels are the backbone of Go concurrency.",
		WordCount: 7,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Articles().Create(ctx, article); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Articles().Get(ctx, "article-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected article, got nil")
	}
	if got.Title != article.Title || got.WordCount != 7 {
		t.Errorf("unexpected article fields: %+v", got)
	}
	if got.ResearchData != nil {
		t.Errorf("expected nil research data, got %+v", got.ResearchData)
	}
}

func TestArticleUpdateContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	article := &core.Article{ID: "article-2", UserID: "user-1", CreatedAt: now, UpdatedAt: now}
	if err := s.Articles().Create(ctx, article); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Articles().UpdateContent(ctx, "article-2", "user-1", "New body text here", 4); err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}

	got, err := s.Articles().Get(ctx, "article-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "New body text here" || got.WordCount != 4 {
		t.Errorf("content not updated: %+v", got)
	}

	// A different user must not be able to overwrite.
	if err := s.Articles().UpdateContent(ctx, "article-2", "user-2", "hijacked", 1); err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}
	got, _ = s.Articles().Get(ctx, "article-2")
	if got.Content != "New body text here" {
		t.Errorf("content overwritten by wrong user: %q", got.Content)
	}
}

func TestArticleUpdateResearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	article := &core.Article{ID: "article-3", UserID: "user-1", CreatedAt: now, UpdatedAt: now}
	if err := s.Articles().Create(ctx, article); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	data := &core.ResearchData{
		Topic:    "quantum computing",
		Keywords: []string{"qubits", "error correction"},
		Data:     "Recent advances in logical qubits...",
		Sources: []core.Citation{
			{URL: "https://example.com/qubits", Title: "Logical Qubits Explained"},
		},
		GeneratedAt: now,
	}
	if err := s.Articles().UpdateResearch(ctx, "article-3", "user-1", data); err != nil {
		t.Fatalf("UpdateResearch failed: %v", err)
	}

	got, err := s.Articles().Get(ctx, "article-3")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ResearchData == nil {
		t.Fatal("expected research data, got nil")
	}
	if got.ResearchData.Topic != "quantum computing" {
		t.Errorf("unexpected topic: %q", got.ResearchData.Topic)
	}
	if len(got.ResearchData.Sources) != 1 || got.ResearchData.Sources[0].Title != "Logical Qubits Explained" {
		t.Errorf("sources not preserved: %+v", got.ResearchData.Sources)
	}
}

func TestPreferencesUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Preferences().Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing preferences, got %+v", got)
	}

	prefs := &core.Preferences{UserID: "user-1", CustomGeminiKey: "key-a"}
	if err := s.Preferences().Save(ctx, prefs); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	prefs.CustomGeminiKey = "key-b"
	if err := s.Preferences().Save(ctx, prefs); err != nil {
		t.Fatalf("Save (upsert) failed: %v", err)
	}

	got, err = s.Preferences().Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CustomGeminiKey != "key-b" {
		t.Errorf("expected upserted key, got %q", got.CustomGeminiKey)
	}
}

func TestTrainingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	records := []*core.TrainingData{
		{ID: "t-1", UserID: "user-1", TrainingText: "older sample", ModelName: "gemini-2.0-flash", Status: core.TrainingStatusCompleted, CreatedAt: base},
		{ID: "t-2", UserID: "user-1", TrainingText: "newer sample", ModelName: "gemini-2.0-flash", Status: core.TrainingStatusTraining, CreatedAt: base.Add(30 * time.Minute)},
		{ID: "t-3", UserID: "user-2", TrainingText: "other user", ModelName: "gemini-2.0-flash", Status: core.TrainingStatusCompleted, CreatedAt: base.Add(45 * time.Minute)},
	}
	for _, rec := range records {
		if err := s.Training().Create(ctx, rec); err != nil {
			t.Fatalf("Create %s failed: %v", rec.ID, err)
		}
	}

	got, err := s.Training().LatestCompleted(ctx, "user-1")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if got == nil || got.ID != "t-1" {
		t.Fatalf("expected t-1 (only completed record), got %+v", got)
	}

	if err := s.Training().UpdateStatus(ctx, "t-2", core.TrainingStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err = s.Training().LatestCompleted(ctx, "user-1")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if got == nil || got.ID != "t-2" {
		t.Fatalf("expected t-2 after completion, got %+v", got)
	}

	got, err = s.Training().LatestCompleted(ctx, "user-3")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for user with no records, got %+v", got)
	}
}

func TestAgentSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	first := &core.AgentSession{
		ID:          "session-1",
		UserID:      "user-1",
		Prompt:      "compare databases",
		Plan:        []string{"list candidates", "benchmark them"},
		FinalResult: "## Comparison\n\nPostgres wins.",
		Status:      "completed",
		CreatedAt:   now.Add(-time.Minute),
	}
	second := &core.AgentSession{
		ID:        "session-2",
		UserID:    "user-1",
		Prompt:    "summarize the results",
		Plan:      []string{"read the comparison"},
		Status:    "completed",
		CreatedAt: now,
	}
	if err := s.Agents().Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Agents().Create(ctx, second); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Agents().Create(ctx, &core.AgentSession{
		ID: "session-3", UserID: "user-2", Prompt: "other user", Status: "completed", CreatedAt: now,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sessions, err := s.Agents().ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "session-2" || sessions[1].ID != "session-1" {
		t.Errorf("sessions should come back newest first: %s, %s", sessions[0].ID, sessions[1].ID)
	}
	got := sessions[1]
	if got.Prompt != first.Prompt || got.FinalResult != first.FinalResult || got.Status != "completed" {
		t.Errorf("unexpected session: %+v", got)
	}
	if len(got.Plan) != 2 || got.Plan[0] != "list candidates" {
		t.Errorf("plan did not survive the round trip: %v", got.Plan)
	}
}

func TestAgentSessionsEmptyForUnknownUser(t *testing.T) {
	s := newTestStore(t)

	sessions, err := s.Agents().ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}
