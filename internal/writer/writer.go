// Package writer produces long-form article drafts: generating a first
// draft from a title, outline, and prior research, or improving an
// existing draft in place.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
	"mithoo/internal/training"
)

// Action selects what the writer does with the article.
type Action string

const (
	// ActionGenerate drafts a new article body from title, outline, and research.
	ActionGenerate Action = "generate"
	// ActionImprove rewrites the current article body for quality.
	ActionImprove Action = "improve"
)

var (
	// ErrUnknownAction is returned for an action outside generate/improve.
	ErrUnknownAction = errors.New("unknown writer action")
	// ErrNothingToImprove is returned when improve is requested on an empty article.
	ErrNothingToImprove = errors.New("article has no content to improve")
)

// Service turns article metadata into long-form drafts.
type Service struct {
	articles persistence.ArticleRepository
	prefs    persistence.PreferenceRepository
	training *training.Service
	factory  llm.Factory
}

// NewService wires a writer service.
func NewService(articles persistence.ArticleRepository, prefs persistence.PreferenceRepository, tr *training.Service, factory llm.Factory) *Service {
	return &Service{
		articles: articles,
		prefs:    prefs,
		training: tr,
		factory:  factory,
	}
}

// Request describes one draft operation.
type Request struct {
	UserID    string `json:"userId"`
	ArticleID string `json:"articleId"`
	Action    Action `json:"action"`
	Title     string `json:"title"`   // Overrides the stored title when set
	Outline   string `json:"outline"` // Generate only, may be empty
}

// Result carries the produced draft.
type Result struct {
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// Run executes the requested action and persists the draft onto the
// article row.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Action != ActionGenerate && req.Action != ActionImprove {
		return nil, ErrUnknownAction
	}

	article, err := s.articles.Get(ctx, req.ArticleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, fmt.Errorf("article %s not found", req.ArticleID)
	}

	title := req.Title
	if title == "" {
		title = article.Title
	}

	var prompt string
	switch req.Action {
	case ActionGenerate:
		researchData := ""
		if article.ResearchData != nil {
			researchData = article.ResearchData.Data
		}
		prompt = llm.GeneratePrompt(title, req.Outline, researchData)
	case ActionImprove:
		if strings.TrimSpace(article.Content) == "" {
			return nil, ErrNothingToImprove
		}
		prompt = llm.ImprovePrompt(title, article.Content)
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
		Turns:           []core.Turn{{Role: core.RoleUser, Content: prompt}},
		SystemPrompt:    llm.WriterSystemPrompt(trainingText),
		MaxOutputTokens: llm.DefaultLongFormMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(result.Text)
	wordCount := CountWords(content)

	if err := s.articles.UpdateContent(ctx, req.ArticleID, req.UserID, content, wordCount); err != nil {
		return nil, err
	}

	logger.Info("Draft produced",
		"user_id", req.UserID,
		"article_id", req.ArticleID,
		"action", req.Action,
		"word_count", wordCount)
	return &Result{Content: content, WordCount: wordCount}, nil
}

// CountWords counts whitespace-separated tokens in markdown content.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

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
