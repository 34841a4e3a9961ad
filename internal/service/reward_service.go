package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chromance-server/internal/models"
	"chromance-server/internal/repository"
)

// defaultActionWords are the acquisition verbs matched when a chapter's
// RewardSpec does not override them.
var defaultActionWords = []string{
	"take", "takes", "took",
	"grab", "grabs", "grabbed",
	"seize", "seizes", "seized",
	"claim", "claims", "claimed",
	"obtain", "obtains", "obtained",
	"acquire", "acquires", "acquired",
	"pick up", "picks up", "picked up",
	"retrieve", "retrieves", "retrieved",
	"receive", "receives", "received",
}

// RewardEngine detects chapter completion in narrator text and delivers the
// chapter's reward exactly once. Detection is best-effort matching: a false
// negative defers closure to a later turn; the atomic delivered flag is the
// sole safeguard against a false positive applying twice.
type RewardEngine struct {
	progressRepo  repository.ProgressRepository
	characterRepo repository.CharacterRepository
	logger        *zap.Logger
}

// NewRewardEngine creates a new reward engine.
func NewRewardEngine(
	progressRepo repository.ProgressRepository,
	characterRepo repository.CharacterRepository,
	logger *zap.Logger,
) *RewardEngine {
	return &RewardEngine{
		progressRepo:  progressRepo,
		characterRepo: characterRepo,
		logger:        logger.Named("RewardEngine"),
	}
}

// Detect reports whether narrative signals completion of the chapter. Only
// evaluated in the resolution phase (count >= 8); earlier mentions of the
// reward are foreshadowing, not completion.
func (e *RewardEngine) Detect(rec *models.ProgressRecord, spec *models.RewardSpec, narrative string) bool {
	if models.PhaseForCount(rec.InteractionCount) != models.PhaseResolution {
		return false
	}
	if len(spec.Aliases) == 0 {
		return false
	}

	text := strings.ToLower(narrative)

	alias := containsAny(text, spec.Aliases)
	if !alias {
		return false
	}

	actionWords := spec.ActionWords
	if len(actionWords) == 0 {
		actionWords = defaultActionWords
	}
	if containsAny(text, actionWords) {
		return true
	}
	return containsAny(text, spec.CompletionPhrases)
}

// Evaluate runs detection and, on a match not yet delivered, applies the
// reward: flag check-and-set first, then the character grant. The flag is
// rolled back if the grant fails so a retry can deliver.
func (e *RewardEngine) Evaluate(ctx context.Context, rec *models.ProgressRecord, spec *models.RewardSpec, narrative string) (*models.RewardDelivery, error) {
	if rec.ChapterRewarded(rec.CurrentChapter) {
		return nil, nil
	}
	if !e.Detect(rec, spec, narrative) {
		return nil, nil
	}

	marked, err := e.progressRepo.MarkRewarded(ctx, rec.UserID, rec.CampaignID, rec.CurrentChapter)
	if err != nil {
		return nil, err
	}
	if !marked {
		// A concurrent delivery won the flag.
		return nil, nil
	}

	if err := e.characterRepo.ApplyDelta(ctx, rec.CharacterID, spec.AttributeDeltas, spec.ItemID); err != nil {
		e.logger.Error("Reward grant failed, rolling back delivered flag",
			zap.Stringer("userID", rec.UserID),
			zap.String("campaignID", rec.CampaignID),
			zap.Int("chapter", rec.CurrentChapter),
			zap.Error(err))
		if rbErr := e.progressRepo.UnmarkRewarded(ctx, rec.UserID, rec.CampaignID, rec.CurrentChapter); rbErr != nil {
			e.logger.Error("Failed to roll back delivered flag", zap.Error(rbErr))
		}
		return nil, err
	}

	rec.RewardedChapters = append(rec.RewardedChapters, rec.CurrentChapter)

	e.logger.Info("Reward delivered",
		zap.Stringer("userID", rec.UserID),
		zap.String("campaignID", rec.CampaignID),
		zap.Int("chapter", rec.CurrentChapter),
		zap.String("itemID", spec.ItemID))

	return &models.RewardDelivery{
		Chapter:         rec.CurrentChapter,
		ItemID:          spec.ItemID,
		ItemName:        spec.ItemName,
		AttributeDeltas: spec.AttributeDeltas,
	}, nil
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
