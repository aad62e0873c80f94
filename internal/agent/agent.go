// Package agent runs plan-then-execute requests: one generation turns the
// user's request into a step plan, a second executes the plan, and the
// finished session is recorded.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
)

// ErrEmptyPrompt is returned when the agent request has no prompt.
var ErrEmptyPrompt = errors.New("agent prompt is empty")

// StatusCompleted marks a session whose plan and execution calls both
// succeeded. Sessions are only written in this state.
const StatusCompleted = "completed"

var (
	jsonFence     = regexp.MustCompile("```json\\n?|```")
	leadingBullet = regexp.MustCompile(`^- ?`)
)

// Service coordinates agent runs.
type Service struct {
	sessions persistence.AgentRepository
	prefs    persistence.PreferenceRepository
	factory  llm.Factory
}

// NewService wires an agent service.
func NewService(sessions persistence.AgentRepository, prefs persistence.PreferenceRepository, factory llm.Factory) *Service {
	return &Service{
		sessions: sessions,
		prefs:    prefs,
		factory:  factory,
	}
}

// Request describes one agent run.
type Request struct {
	UserID string `json:"userId"`
	Prompt string `json:"prompt"`
}

// Result carries the plan and the final answer.
type Result struct {
	Plan        []string `json:"plan"`
	FinalResult string   `json:"finalResult"`
}

// Run plans, executes, and records one agent session.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	apiKey, err := s.resolveKey(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	gen, err := s.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	planResult, err := gen.Generate(ctx, llm.Request{
		Turns: []core.Turn{
			{Role: core.RoleUser, Content: llm.PlanPrompt(req.Prompt)},
		},
		MaxOutputTokens: llm.DefaultChatMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	plan := ParsePlan(planResult.Text)

	execResult, err := gen.Generate(ctx, llm.Request{
		Turns: []core.Turn{
			{Role: core.RoleUser, Content: llm.ExecutePrompt(req.Prompt, plan)},
		},
		MaxOutputTokens: llm.DefaultLongFormMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	session := &core.AgentSession{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Prompt:      req.Prompt,
		Plan:        plan,
		FinalResult: execResult.Text,
		Status:      StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	logger.Info("Agent run completed",
		"user_id", req.UserID,
		"session_id", session.ID,
		"steps", len(plan))
	return &Result{Plan: plan, FinalResult: execResult.Text}, nil
}

// Sessions returns a user's recorded runs, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]core.AgentSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// ParsePlan decodes the planner's reply. The expected shape is a JSON
// array of strings, optionally fenced; anything else falls back to line
// splitting with leading bullets stripped.
func ParsePlan(raw string) []string {
	text := strings.TrimSpace(jsonFence.ReplaceAllString(raw, ""))

	var plan []string
	if err := json.Unmarshal([]byte(text), &plan); err == nil {
		return plan
	}

	var steps []string
	for _, line := range strings.Split(text, "\n") {
		step := strings.TrimSpace(leadingBullet.ReplaceAllString(strings.TrimSpace(line), ""))
		if step != "" {
			steps = append(steps, step)
		}
	}
	return steps
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
