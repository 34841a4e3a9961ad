package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	repoMocks "chromance-server/internal/repository/mocks"
	"chromance-server/internal/service"
)

func testDefinition() *models.CampaignDefinition {
	return &models.CampaignDefinition{
		ID:    "chromance",
		Title: "Chromance",
		Chapters: []models.Chapter{
			{Index: 0, Title: "The Shadow Cube"},
			{Index: 1, Title: "Arcane Crystal Laboratory"},
			{Index: 2, Title: "Neon Coliseum"},
		},
	}
}

func TestProgressionStart(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	characterID := uuid.New()

	t.Run("Creates record at chapter zero", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		campaignRepo := new(repoMocks.CampaignRepository)
		tracker := service.NewProgressionTracker(progressRepo, campaignRepo, zap.NewNop())

		campaignRepo.On("GetDefinition", ctx, "chromance").Return(testDefinition(), nil).Once()
		progressRepo.On("Create", ctx, mock.MatchedBy(func(rec *models.ProgressRecord) bool {
			assert.Equal(t, userID, rec.UserID)
			assert.Equal(t, 0, rec.CurrentChapter)
			assert.Equal(t, 0, rec.InteractionCount)
			assert.Equal(t, models.PhaseIntroduction, rec.Phase)
			assert.Equal(t, models.StatusActive, rec.Status)
			return true
		})).Return(nil).Once()

		rec, err := tracker.Start(ctx, userID, "chromance", characterID)

		assert.NoError(t, err)
		assert.NotNil(t, rec)
		progressRepo.AssertExpectations(t)
		campaignRepo.AssertExpectations(t)
	})

	t.Run("Second active campaign is rejected", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		campaignRepo := new(repoMocks.CampaignRepository)
		tracker := service.NewProgressionTracker(progressRepo, campaignRepo, zap.NewNop())

		campaignRepo.On("GetDefinition", ctx, "chromance").Return(testDefinition(), nil).Once()
		progressRepo.On("Create", ctx, mock.Anything).Return(models.ErrAlreadyActive).Once()

		rec, err := tracker.Start(ctx, userID, "chromance", characterID)

		assert.Nil(t, rec)
		assert.ErrorIs(t, err, models.ErrAlreadyActive)
	})

	t.Run("Unknown campaign is rejected", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		campaignRepo := new(repoMocks.CampaignRepository)
		tracker := service.NewProgressionTracker(progressRepo, campaignRepo, zap.NewNop())

		campaignRepo.On("GetDefinition", ctx, "nope").Return(nil, models.ErrCampaignNotFound).Once()

		_, err := tracker.Start(ctx, userID, "nope", characterID)
		assert.ErrorIs(t, err, models.ErrCampaignNotFound)
		progressRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAdvanceInteraction(t *testing.T) {
	ctx := context.Background()

	t.Run("Increments and recomputes phase", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusActive, InteractionCount: 3, Phase: models.PhaseIntroduction}
		progressRepo.On("Update", ctx, rec).Return(nil).Once()

		err := tracker.AdvanceInteraction(ctx, rec)

		assert.NoError(t, err)
		assert.Equal(t, 4, rec.InteractionCount)
		assert.Equal(t, models.PhaseDevelopment, rec.Phase)
	})

	t.Run("Clamps at the ceiling", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusActive, InteractionCount: models.MaxInteractions, Phase: models.PhaseResolution}
		progressRepo.On("Update", ctx, rec).Return(nil).Once()

		err := tracker.AdvanceInteraction(ctx, rec)

		assert.NoError(t, err)
		assert.Equal(t, models.MaxInteractions, rec.InteractionCount)
		assert.Equal(t, models.PhaseResolution, rec.Phase)
	})

	t.Run("Rejects terminal records", func(t *testing.T) {
		tracker := service.NewProgressionTracker(new(repoMocks.ProgressRepository), new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusCancelled, InteractionCount: 5}
		err := tracker.AdvanceInteraction(ctx, rec)

		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Equal(t, 5, rec.InteractionCount)
	})
}

func TestCloseChapter(t *testing.T) {
	ctx := context.Background()

	t.Run("Advances to next chapter", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusActive, CurrentChapter: 0, InteractionCount: 9, Phase: models.PhaseResolution}
		progressRepo.On("Update", ctx, rec).Return(nil).Once()

		done, err := tracker.CloseChapter(ctx, rec, testDefinition())

		assert.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, 1, rec.CurrentChapter)
		assert.Equal(t, 0, rec.InteractionCount)
		assert.Equal(t, models.PhaseIntroduction, rec.Phase)
		assert.Equal(t, models.StatusActive, rec.Status)
	})

	t.Run("Completes campaign on last chapter", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusActive, CurrentChapter: 2, InteractionCount: 10}
		progressRepo.On("Update", ctx, rec).Return(nil).Once()

		done, err := tracker.CloseChapter(ctx, rec, testDefinition())

		assert.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, models.StatusCompleted, rec.Status)
	})
}

func TestCancelAndReset(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Cancel requires an active record", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusCompleted}
		progressRepo.On("GetByUserAndCampaign", ctx, userID, "chromance").Return(rec, nil).Once()

		err := tracker.Cancel(ctx, userID, "chromance")

		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		progressRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Reset zeroes counters only", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		rec := &models.ProgressRecord{Status: models.StatusActive, CurrentChapter: 1, InteractionCount: 6, Phase: models.PhaseDevelopment}
		progressRepo.On("GetByUserAndCampaign", ctx, userID, "chromance").Return(rec, nil).Once()
		progressRepo.On("Update", ctx, rec).Return(nil).Once()

		got, err := tracker.Reset(ctx, userID, "chromance")

		assert.NoError(t, err)
		assert.Equal(t, 0, got.InteractionCount)
		assert.Equal(t, models.PhaseIntroduction, got.Phase)
		assert.Equal(t, 1, got.CurrentChapter, "reset stays within the current chapter")
	})

	t.Run("Reset surfaces repository errors", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		tracker := service.NewProgressionTracker(progressRepo, new(repoMocks.CampaignRepository), zap.NewNop())

		progressRepo.On("GetByUserAndCampaign", ctx, userID, "chromance").Return(nil, errors.New("db down")).Once()

		_, err := tracker.Reset(ctx, userID, "chromance")
		assert.Error(t, err)
	})
}
