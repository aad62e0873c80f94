package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/training"
)

type memArticleRepo struct {
	saved map[string]*core.ResearchData
}

func (r *memArticleRepo) Get(_ context.Context, _ string) (*core.Article, error) { return nil, nil }
func (r *memArticleRepo) Create(_ context.Context, _ *core.Article) error        { return nil }
func (r *memArticleRepo) UpdateContent(_ context.Context, _, _, _ string, _ int) error {
	return nil
}

func (r *memArticleRepo) UpdateResearch(_ context.Context, id, userID string, data *core.ResearchData) error {
	if r.saved == nil {
		r.saved = make(map[string]*core.ResearchData)
	}
	r.saved[id+"/"+userID] = data
	return nil
}

type memPrefRepo struct {
	prefs *core.Preferences
}

func (r *memPrefRepo) Get(_ context.Context, _ string) (*core.Preferences, error) {
	return r.prefs, nil
}
func (r *memPrefRepo) Save(_ context.Context, _ *core.Preferences) error { return nil }

type memTrainingRepo struct{}

func (memTrainingRepo) Create(_ context.Context, _ *core.TrainingData) error { return nil }
func (memTrainingRepo) UpdateStatus(_ context.Context, _ string, _ core.TrainingStatus) error {
	return nil
}
func (memTrainingRepo) LatestCompleted(_ context.Context, _ string) (*core.TrainingData, error) {
	return nil, nil
}

type groundedGenerator struct {
	lastReq llm.Request
	result  llm.Result
	key     string
}

func (g *groundedGenerator) Generate(_ context.Context, req llm.Request) (llm.Result, error) {
	g.lastReq = req
	return g.result, nil
}

func (g *groundedGenerator) GenerateStream(_ context.Context, req llm.Request, onChunk func(string)) (llm.Result, error) {
	return g.Generate(context.Background(), req)
}

func newTestService(gen *groundedGenerator, articles *memArticleRepo, prefs *memPrefRepo) *Service {
	tr := training.NewService(memTrainingRepo{})
	factory := func(_ context.Context, key string) (llm.Generator, error) {
		gen.key = key
		return gen, nil
	}
	return NewService(articles, prefs, tr, factory)
}

func TestRunGroundedAndPersisted(t *testing.T) {
	gen := &groundedGenerator{result: llm.Result{
		Text: "Latest findings on edge caching.",
		Sources: []core.Citation{
			{URL: "https://example.com/cdn", Title: "CDN Benchmarks 2026"},
		},
	}}
	articles := &memArticleRepo{}
	s := newTestService(gen, articles, &memPrefRepo{})

	data, err := s.Run(context.Background(), Request{
		UserID:    "user-1",
		ArticleID: "article-1",
		Topic:     "edge caching",
		Keywords:  []string{"CDN", "latency"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !gen.lastReq.EnableResearch {
		t.Error("search grounding not enabled")
	}
	if gen.lastReq.MaxOutputTokens != llm.DefaultLongFormMaxTokens {
		t.Errorf("max tokens = %d, want long-form budget", gen.lastReq.MaxOutputTokens)
	}
	if !strings.Contains(gen.lastReq.Turns[0].Content, "edge caching") {
		t.Error("topic missing from prompt")
	}
	if !strings.Contains(gen.lastReq.Turns[0].Content, "CDN, latency") {
		t.Error("keywords missing from prompt")
	}

	if data.Data != "Latest findings on edge caching." {
		t.Errorf("data = %q", data.Data)
	}
	if len(data.Sources) != 1 || data.Sources[0].Title != "CDN Benchmarks 2026" {
		t.Errorf("sources = %+v", data.Sources)
	}

	saved := articles.saved["article-1/user-1"]
	if saved == nil {
		t.Fatal("research not persisted to article")
	}
	if saved.Topic != "edge caching" {
		t.Errorf("persisted topic = %q", saved.Topic)
	}
}

func TestRunWithoutArticleSkipsPersistence(t *testing.T) {
	gen := &groundedGenerator{result: llm.Result{Text: "findings"}}
	articles := &memArticleRepo{}
	s := newTestService(gen, articles, &memPrefRepo{})

	if _, err := s.Run(context.Background(), Request{UserID: "user-1", Topic: "anything"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(articles.saved) != 0 {
		t.Errorf("unexpected persistence: %+v", articles.saved)
	}
}

func TestRunEmptyTopic(t *testing.T) {
	s := newTestService(&groundedGenerator{}, &memArticleRepo{}, &memPrefRepo{})

	if _, err := s.Run(context.Background(), Request{UserID: "user-1", Topic: "  "}); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestRunUsesCustomKey(t *testing.T) {
	gen := &groundedGenerator{result: llm.Result{Text: "findings"}}
	prefs := &memPrefRepo{prefs: &core.Preferences{UserID: "user-1", CustomGeminiKey: "user-key"}}
	s := newTestService(gen, &memArticleRepo{}, prefs)

	if _, err := s.Run(context.Background(), Request{UserID: "user-1", Topic: "anything"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gen.key != "user-key" {
		t.Errorf("factory key = %q, want user-key", gen.key)
	}
}
