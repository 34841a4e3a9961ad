package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	repoMocks "chromance-server/internal/repository/mocks"
	"chromance-server/internal/service"
)

func cubeSpec() *models.RewardSpec {
	return &models.RewardSpec{
		ItemID:            "shadow_cube",
		ItemName:          "Shadow Cube",
		AttributeDeltas:   map[string]int{"energy": 5, "intelligence": 3},
		Aliases:           []string{"shadow cube", "the cube"},
		CompletionPhrases: []string{"is yours"},
	}
}

func resolutionRecord() *models.ProgressRecord {
	return &models.ProgressRecord{
		UserID:           uuid.New(),
		CampaignID:       "chromance",
		CharacterID:      uuid.New(),
		CurrentChapter:   0,
		InteractionCount: 8,
		Phase:            models.PhaseResolution,
		Status:           models.StatusActive,
	}
}

func TestRewardDetect(t *testing.T) {
	engine := service.NewRewardEngine(new(repoMocks.ProgressRepository), new(repoMocks.CharacterRepository), zap.NewNop())

	t.Run("Action verb with alias matches", func(t *testing.T) {
		rec := resolutionRecord()
		assert.True(t, engine.Detect(rec, cubeSpec(), "You grab the Shadow Cube and the market lights flicker."))
	})

	t.Run("Completion phrase with alias matches", func(t *testing.T) {
		rec := resolutionRecord()
		assert.True(t, engine.Detect(rec, cubeSpec(), "The cube is yours now, humming softly."))
	})

	t.Run("Alias alone does not match", func(t *testing.T) {
		rec := resolutionRecord()
		assert.False(t, engine.Detect(rec, cubeSpec(), "The shadow cube glints in the distance."))
	})

	t.Run("Never matches before resolution phase", func(t *testing.T) {
		rec := resolutionRecord()
		rec.InteractionCount = 7
		assert.False(t, engine.Detect(rec, cubeSpec(), "You grab the shadow cube."))
	})

	t.Run("Custom action words override defaults", func(t *testing.T) {
		rec := resolutionRecord()
		reward := cubeSpec()
		reward.ActionWords = []string{"absorb"}
		assert.True(t, engine.Detect(rec, reward, "You absorb the shadow cube into your palm."))
		assert.False(t, engine.Detect(rec, reward, "You grab the shadow cube."))
	})
}

func TestRewardEvaluate(t *testing.T) {
	ctx := context.Background()
	narrative := "You grab the shadow cube. It is yours."

	t.Run("Delivers once", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		characterRepo := new(repoMocks.CharacterRepository)
		engine := service.NewRewardEngine(progressRepo, characterRepo, zap.NewNop())

		rec := resolutionRecord()
		progressRepo.On("MarkRewarded", ctx, rec.UserID, "chromance", 0).Return(true, nil).Once()
		characterRepo.On("ApplyDelta", ctx, rec.CharacterID, cubeSpec().AttributeDeltas, "shadow_cube").Return(nil).Once()

		reward, err := engine.Evaluate(ctx, rec, cubeSpec(), narrative)

		assert.NoError(t, err)
		assert.NotNil(t, reward)
		assert.Equal(t, "shadow_cube", reward.ItemID)
		assert.Equal(t, 0, reward.Chapter)
		assert.True(t, rec.ChapterRewarded(0))
		progressRepo.AssertExpectations(t)
		characterRepo.AssertExpectations(t)
	})

	t.Run("Repeated signal delivers at most once", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		characterRepo := new(repoMocks.CharacterRepository)
		engine := service.NewRewardEngine(progressRepo, characterRepo, zap.NewNop())

		rec := resolutionRecord()
		rec.RewardedChapters = []int{0}

		reward, err := engine.Evaluate(ctx, rec, cubeSpec(), narrative)

		assert.NoError(t, err)
		assert.Nil(t, reward)
		progressRepo.AssertNotCalled(t, "MarkRewarded", ctx, rec.UserID, "chromance", 0)
		characterRepo.AssertNotCalled(t, "ApplyDelta", ctx, rec.CharacterID, cubeSpec().AttributeDeltas, "shadow_cube")
	})

	t.Run("Concurrent flag loss skips delivery", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		characterRepo := new(repoMocks.CharacterRepository)
		engine := service.NewRewardEngine(progressRepo, characterRepo, zap.NewNop())

		rec := resolutionRecord()
		progressRepo.On("MarkRewarded", ctx, rec.UserID, "chromance", 0).Return(false, nil).Once()

		reward, err := engine.Evaluate(ctx, rec, cubeSpec(), narrative)

		assert.NoError(t, err)
		assert.Nil(t, reward)
		characterRepo.AssertNotCalled(t, "ApplyDelta", ctx, rec.CharacterID, cubeSpec().AttributeDeltas, "shadow_cube")
	})

	t.Run("Failed grant rolls the flag back", func(t *testing.T) {
		progressRepo := new(repoMocks.ProgressRepository)
		characterRepo := new(repoMocks.CharacterRepository)
		engine := service.NewRewardEngine(progressRepo, characterRepo, zap.NewNop())

		rec := resolutionRecord()
		progressRepo.On("MarkRewarded", ctx, rec.UserID, "chromance", 0).Return(true, nil).Once()
		characterRepo.On("ApplyDelta", ctx, rec.CharacterID, cubeSpec().AttributeDeltas, "shadow_cube").Return(errors.New("character store down")).Once()
		progressRepo.On("UnmarkRewarded", ctx, rec.UserID, "chromance", 0).Return(nil).Once()

		reward, err := engine.Evaluate(ctx, rec, cubeSpec(), narrative)

		assert.Error(t, err)
		assert.Nil(t, reward)
		assert.False(t, rec.ChapterRewarded(0))
		progressRepo.AssertExpectations(t)
	})
}
