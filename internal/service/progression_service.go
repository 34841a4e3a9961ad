package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	"chromance-server/internal/repository"
)

// ProgressionTracker owns the ProgressRecord state machine. All mutations of
// a record go through it; callers never write progress rows directly.
type ProgressionTracker struct {
	progressRepo repository.ProgressRepository
	campaignRepo repository.CampaignRepository
	logger       *zap.Logger
}

// NewProgressionTracker creates a new progression tracker.
func NewProgressionTracker(
	progressRepo repository.ProgressRepository,
	campaignRepo repository.CampaignRepository,
	logger *zap.Logger,
) *ProgressionTracker {
	return &ProgressionTracker{
		progressRepo: progressRepo,
		campaignRepo: campaignRepo,
		logger:       logger.Named("ProgressionTracker"),
	}
}

// Start creates an active ProgressRecord at chapter 0, interaction 0.
// Returns models.ErrAlreadyActive when the user already runs any campaign:
// one concurrent campaign per user, enforced by the storage layer.
func (t *ProgressionTracker) Start(ctx context.Context, userID uuid.UUID, campaignID string, characterID uuid.UUID) (*models.ProgressRecord, error) {
	if _, err := t.campaignRepo.GetDefinition(ctx, campaignID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &models.ProgressRecord{
		UserID:           userID,
		CampaignID:       campaignID,
		CharacterID:      characterID,
		CurrentChapter:   0,
		InteractionCount: 0,
		Phase:            models.PhaseIntroduction,
		Status:           models.StatusActive,
		RewardedChapters: []int{},
		StartedAt:        now,
		UpdatedAt:        now,
	}

	if err := t.progressRepo.Create(ctx, rec); err != nil {
		if errors.Is(err, models.ErrAlreadyActive) {
			return nil, models.ErrAlreadyActive
		}
		return nil, fmt.Errorf("failed to start campaign %s: %w", campaignID, err)
	}

	t.logger.Info("Campaign started",
		zap.Stringer("userID", userID),
		zap.String("campaignID", campaignID))
	return rec, nil
}

// AdvanceInteraction increments the interaction count, clamped at
// models.MaxInteractions while the chapter awaits closure, and recomputes
// the phase. Persists the record.
func (t *ProgressionTracker) AdvanceInteraction(ctx context.Context, rec *models.ProgressRecord) error {
	if !rec.Active() {
		return models.ErrInvalidTransition
	}

	if rec.InteractionCount < models.MaxInteractions {
		rec.InteractionCount++
	}
	rec.Phase = models.PhaseForCount(rec.InteractionCount)

	return t.progressRepo.Update(ctx, rec)
}

// CloseChapter advances to the next chapter, resetting interaction count and
// phase. When the closed chapter was the campaign's last the record becomes
// completed (terminal). Returns whether the campaign finished.
func (t *ProgressionTracker) CloseChapter(ctx context.Context, rec *models.ProgressRecord, def *models.CampaignDefinition) (bool, error) {
	if !rec.Active() {
		return false, models.ErrInvalidTransition
	}

	done := def.LastChapter(rec.CurrentChapter)
	closed := rec.CurrentChapter

	rec.CurrentChapter++
	rec.InteractionCount = 0
	rec.Phase = models.PhaseIntroduction
	if done {
		rec.Status = models.StatusCompleted
	}

	if err := t.progressRepo.Update(ctx, rec); err != nil {
		return false, err
	}

	t.logger.Info("Chapter closed",
		zap.Stringer("userID", rec.UserID),
		zap.String("campaignID", rec.CampaignID),
		zap.Int("chapter", closed),
		zap.Bool("campaignDone", done))
	return done, nil
}

// Cancel moves an active record to cancelled (terminal).
func (t *ProgressionTracker) Cancel(ctx context.Context, userID uuid.UUID, campaignID string) error {
	rec, err := t.progressRepo.GetByUserAndCampaign(ctx, userID, campaignID)
	if err != nil {
		return err
	}
	if !rec.Active() {
		return models.ErrInvalidTransition
	}

	rec.Status = models.StatusCancelled
	if err := t.progressRepo.Update(ctx, rec); err != nil {
		return err
	}

	t.logger.Info("Campaign cancelled",
		zap.Stringer("userID", userID),
		zap.String("campaignID", campaignID))
	return nil
}

// Reset zeroes the interaction count and phase within the current chapter.
// Stored narrative turns are untouched; only the counters rewind.
func (t *ProgressionTracker) Reset(ctx context.Context, userID uuid.UUID, campaignID string) (*models.ProgressRecord, error) {
	rec, err := t.progressRepo.GetByUserAndCampaign(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if !rec.Active() {
		return nil, models.ErrInvalidTransition
	}

	rec.InteractionCount = 0
	rec.Phase = models.PhaseIntroduction
	if err := t.progressRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
