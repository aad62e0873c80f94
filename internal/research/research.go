// Package research runs grounded topic research for an article: a single
// search-grounded generation whose output and consulted sources are saved
// onto the article row.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mithoo/internal/core"
	"mithoo/internal/fetch"
	"mithoo/internal/llm"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
	"mithoo/internal/training"
)

// ErrEmptyTopic is returned when the research request has no topic.
var ErrEmptyTopic = errors.New("research topic is empty")

// Service coordinates grounded research runs.
type Service struct {
	articles persistence.ArticleRepository
	prefs    persistence.PreferenceRepository
	training *training.Service
	factory  llm.Factory
	resolver *fetch.TitleResolver
}

// NewService wires a research service.
func NewService(articles persistence.ArticleRepository, prefs persistence.PreferenceRepository, tr *training.Service, factory llm.Factory) *Service {
	return &Service{
		articles: articles,
		prefs:    prefs,
		training: tr,
		factory:  factory,
		resolver: fetch.NewTitleResolver(),
	}
}

// Request describes one research run.
type Request struct {
	UserID    string   `json:"userId"`
	ArticleID string   `json:"articleId"`
	Topic     string   `json:"topic"`
	Keywords  []string `json:"keywords"`
}

// Run performs a grounded generation for the topic, resolves citation
// titles, and persists the result onto the article when one is named.
func (s *Service) Run(ctx context.Context, req Request) (*core.ResearchData, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, ErrEmptyTopic
	}

	apiKey, err := s.resolveKey(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	gen, err := s.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	trainingText := s.training.LatestText(ctx, req.UserID)

	result, err := gen.Generate(ctx, llm.Request{
		Turns: []core.Turn{
			{Role: core.RoleUser, Content: llm.ResearchPrompt(req.Topic, req.Keywords)},
		},
		SystemPrompt:    llm.ResearchSystemPrompt(trainingText),
		EnableResearch:  true,
		MaxOutputTokens: llm.DefaultLongFormMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	data := &core.ResearchData{
		Topic:       req.Topic,
		Keywords:    req.Keywords,
		Data:        result.Text,
		Sources:     s.resolver.ResolveTitles(ctx, result.Sources),
		GeneratedAt: time.Now().UTC(),
	}

	if req.ArticleID != "" {
		if err := s.articles.UpdateResearch(ctx, req.ArticleID, req.UserID, data); err != nil {
			return nil, err
		}
	}

	logger.Info("Research run completed",
		"user_id", req.UserID,
		"article_id", req.ArticleID,
		"topic", req.Topic,
		"sources", len(data.Sources),
		"degraded", result.Degraded)
	return data, nil
}

// resolveKey prefers the user's custom key over the server default.
func (s *Service) resolveKey(ctx context.Context, userID string) (string, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	custom := ""
	if prefs != nil {
		custom = prefs.CustomGeminiKey
	}
	return llm.ResolveAPIKey(custom, llm.DefaultAPIKey()), nil
}
