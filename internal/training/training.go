// Package training manages user writing samples that steer the model's
// voice. A sample moves through a short lifecycle (training -> completed)
// and the newest completed sample is injected into system prompts.
package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mithoo/internal/core"
	"mithoo/internal/llm"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
)

// ErrEmptySample is returned when the submitted writing sample is blank.
var ErrEmptySample = errors.New("training text is empty")

// Service handles style-training submissions and lookups.
type Service struct {
	repo persistence.TrainingRepository
}

// NewService creates a training service over the given repository.
func NewService(repo persistence.TrainingRepository) *Service {
	return &Service{repo: repo}
}

// Train records a writing sample for the user and marks it completed.
// Prompt-injection tuning has no real training phase, so the record is
// eligible as soon as it is stored.
func (s *Service) Train(ctx context.Context, userID, trainingText string) (*core.TrainingData, error) {
	if strings.TrimSpace(trainingText) == "" {
		return nil, ErrEmptySample
	}

	record := &core.TrainingData{
		ID:           uuid.NewString(),
		UserID:       userID,
		TrainingText: trainingText,
		ModelName:    llm.DefaultModel,
		Status:       core.TrainingStatusTraining,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store training record: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, record.ID, core.TrainingStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to complete training record: %w", err)
	}
	record.Status = core.TrainingStatusCompleted

	logger.Info("Stored style-training sample", "user_id", userID, "record_id", record.ID)
	return record, nil
}

// LatestText returns the newest completed writing sample for the user,
// or "" when none exists. Lookup failures degrade to "" so a flaky
// store never blocks generation.
func (s *Service) LatestText(ctx context.Context, userID string) string {
	record, err := s.repo.LatestCompleted(ctx, userID)
	if err != nil {
		logger.Warn("Failed to load training data, continuing without it", "user_id", userID, "error", err)
		return ""
	}
	if record == nil {
		return ""
	}
	return record.TrainingText
}
