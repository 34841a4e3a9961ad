package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	repoMocks "chromance-server/internal/repository/mocks"
	"chromance-server/internal/service"
	serviceMocks "chromance-server/internal/service/mocks"
)

func assemblerConfig() service.ContextConfig {
	return service.ContextConfig{
		RecentWindow:     3,
		TopK:             5,
		ArchiveTopK:      3,
		LoreFloor:        0.35,
		TokenBudget:      3000,
		RetrievalTimeout: time.Second,
	}
}

func chapterTurns(n int) []models.NarrativeTurn {
	turns := make([]models.NarrativeTurn, n)
	for i := range turns {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleNarrator
		}
		turns[i] = models.NarrativeTurn{
			ID:          uuid.New(),
			CampaignID:  "chromance",
			Chapter:     0,
			Interaction: i/2 + 1,
			Role:        role,
			Text:        "turn text",
			Collection:  models.CollectionCurrent,
		}
	}
	return turns
}

func TestAssembleContext(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.1, 0.2}

	t.Run("Recent window always precedes recall", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		embedder := new(serviceMocks.Embedder)
		assembler := service.NewContextAssembler(store, embedder, assemblerConfig(), zap.NewNop())

		turns := chapterTurns(6)
		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(turns, nil).Once()
		embedder.On("Embed", mock.Anything, "open the vault").Return(embedding, nil).Once()

		// Recall excludes exactly the recent window's IDs.
		store.On("SearchTurns", mock.Anything, embedding, models.CollectionCurrent, "chromance", 0,
			[]uuid.UUID{turns[3].ID, turns[4].ID, turns[5].ID}, 5).
			Return([]models.ScoredNarrative{{Text: "an older exchange", Similarity: 0.8}}, nil).Once()
		store.On("SearchLore", mock.Anything, embedding, 5).
			Return([]models.ScoredNarrative{
				{Text: "the vault predates the city", Similarity: 0.7},
				{Text: "barely related fact", Similarity: 0.2},
			}, nil).Once()
		store.On("SearchTurns", mock.Anything, embedding, models.CollectionArchive, "chromance", -1,
			[]uuid.UUID(nil), 3).
			Return([]models.ScoredNarrative{{Text: "a prior chapter scene", Similarity: 0.6}}, nil).Once()

		assembled, err := assembler.Assemble(ctx, "chromance", 0, "open the vault")

		assert.NoError(t, err)
		// Last 3 turns verbatim, in interaction order.
		assert.Len(t, assembled.Recent, 3)
		assert.Equal(t, turns[3].ID, assembled.Recent[0].ID)
		assert.Equal(t, turns[5].ID, assembled.Recent[2].ID)
		// Priority order: current similarity, lore above floor, archive.
		assert.Equal(t, []string{
			"an older exchange",
			"World lore: the vault predates the city",
			"Earlier in this campaign: a prior chapter scene",
		}, assembled.Chunks)
	})

	t.Run("Embedding failure degrades to recency only", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		embedder := new(serviceMocks.Embedder)
		assembler := service.NewContextAssembler(store, embedder, assemblerConfig(), zap.NewNop())

		turns := chapterTurns(2)
		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(turns, nil).Once()
		embedder.On("Embed", mock.Anything, "act").Return(nil, errors.New("embedder down")).Once()

		assembled, err := assembler.Assemble(ctx, "chromance", 0, "act")

		assert.NoError(t, err)
		assert.Len(t, assembled.Recent, 2)
		assert.Empty(t, assembled.Chunks)
		store.AssertNotCalled(t, "SearchTurns", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Recall failure degrades tier by tier", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		embedder := new(serviceMocks.Embedder)
		assembler := service.NewContextAssembler(store, embedder, assemblerConfig(), zap.NewNop())

		turns := chapterTurns(2)
		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(turns, nil).Once()
		embedder.On("Embed", mock.Anything, "act").Return(embedding, nil).Once()
		store.On("SearchTurns", mock.Anything, embedding, models.CollectionCurrent, "chromance", 0, mock.Anything, 5).
			Return(nil, models.ErrRetrievalUnavailable).Once()
		store.On("SearchLore", mock.Anything, embedding, 5).
			Return([]models.ScoredNarrative{{Text: "a surviving fact", Similarity: 0.9}}, nil).Once()
		store.On("SearchTurns", mock.Anything, embedding, models.CollectionArchive, "chromance", -1, mock.Anything, 3).
			Return(nil, models.ErrRetrievalUnavailable).Once()

		assembled, err := assembler.Assemble(ctx, "chromance", 0, "act")

		assert.NoError(t, err)
		assert.Equal(t, []string{"World lore: a surviving fact"}, assembled.Chunks)
	})

	t.Run("Budget evicts lowest priority first", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		embedder := new(serviceMocks.Embedder)
		cfg := assemblerConfig()
		cfg.TokenBudget = 30
		assembler := service.NewContextAssembler(store, embedder, cfg, zap.NewNop())

		turns := chapterTurns(2)
		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(turns, nil).Once()
		embedder.On("Embed", mock.Anything, "act").Return(embedding, nil).Once()
		store.On("SearchTurns", mock.Anything, embedding, models.CollectionCurrent, "chromance", 0, mock.Anything, 5).
			Return([]models.ScoredNarrative{{Text: "a short recalled line", Similarity: 0.9}}, nil).Once()
		store.On("SearchLore", mock.Anything, embedding, 5).
			Return([]models.ScoredNarrative{{
				Text:       "an extremely long lore fact that repeats itself over and over and over again until no reasonable token budget could hold it together with everything else already assembled",
				Similarity: 0.9,
			}}, nil).Once()

		assembled, err := assembler.Assemble(ctx, "chromance", 0, "act")

		assert.NoError(t, err)
		// Recent turns survive; the oversized lore fact and anything below
		// it are dropped.
		assert.Len(t, assembled.Recent, 2)
		assert.Equal(t, []string{"a short recalled line"}, assembled.Chunks)
		store.AssertNotCalled(t, "SearchTurns", mock.Anything, embedding, models.CollectionArchive, "chromance", -1, mock.Anything, 3)
	})
}
