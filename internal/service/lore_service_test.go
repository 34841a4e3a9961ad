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
	serviceMocks "chromance-server/internal/service/mocks"
)

func closedChapterTurns() []models.NarrativeTurn {
	return []models.NarrativeTurn{
		{ID: uuid.New(), CampaignID: "chromance", Chapter: 0, Interaction: 1, Role: models.RoleUser, Text: "I enter the market"},
		{ID: uuid.New(), CampaignID: "chromance", Chapter: 0, Interaction: 1, Role: models.RoleNarrator, Text: "Vex hands over the Shadow Cube. The market will never forget it."},
	}
}

func TestExtractAndArchive(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.3}

	t.Run("Lore is written before relocation", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		oracle := new(serviceMocks.Oracle)
		embedder := new(serviceMocks.Embedder)
		extractor := service.NewLoreExtractor(store, oracle, embedder, zap.NewNop())

		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(closedChapterTurns(), nil).Once()
		oracle.On("Summarize", ctx, mock.Anything, mock.Anything).
			Return("- Vex sold the Shadow Cube.\n- The undercity market remembers the sale.", nil).Once()
		embedder.On("Embed", ctx, mock.Anything).Return(embedding, nil).Twice()

		var loreWritten bool
		store.On("InsertLoreFact", ctx, mock.MatchedBy(func(fact *models.LoreFact) bool {
			assert.Equal(t, "chromance", fact.CampaignID)
			assert.Equal(t, 0, fact.Chapter)
			assert.NotEmpty(t, fact.Text)
			return true
		})).Run(func(mock.Arguments) { loreWritten = true }).Return(nil).Twice()
		store.On("Relocate", ctx, "chromance", 0).Run(func(mock.Arguments) {
			assert.True(t, loreWritten, "relocation must not precede lore writes")
		}).Return(int64(2), nil).Once()

		err := extractor.ExtractAndArchive(ctx, "chromance", 0)

		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Failed lore write aborts before relocation", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		oracle := new(serviceMocks.Oracle)
		embedder := new(serviceMocks.Embedder)
		extractor := service.NewLoreExtractor(store, oracle, embedder, zap.NewNop())

		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(closedChapterTurns(), nil).Once()
		oracle.On("Summarize", ctx, mock.Anything, mock.Anything).Return("- A fact.", nil).Once()
		embedder.On("Embed", ctx, mock.Anything).Return(embedding, nil).Once()
		store.On("InsertLoreFact", ctx, mock.Anything).Return(models.ErrStoreUnavailable).Once()

		err := extractor.ExtractAndArchive(ctx, "chromance", 0)

		assert.ErrorIs(t, err, models.ErrStoreUnavailable)
		store.AssertNotCalled(t, "Relocate", ctx, "chromance", 0)
	})

	t.Run("Oracle failure falls back to the final narrator turn", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		oracle := new(serviceMocks.Oracle)
		embedder := new(serviceMocks.Embedder)
		extractor := service.NewLoreExtractor(store, oracle, embedder, zap.NewNop())

		turns := closedChapterTurns()
		store.On("ListByChapter", ctx, "chromance", 0, models.CollectionCurrent).Return(turns, nil).Once()
		oracle.On("Summarize", ctx, mock.Anything, mock.Anything).Return("", errors.New("oracle down")).Once()
		embedder.On("Embed", ctx, turns[1].Text).Return(embedding, nil).Once()
		store.On("InsertLoreFact", ctx, mock.MatchedBy(func(fact *models.LoreFact) bool {
			return fact.Text == turns[1].Text
		})).Return(nil).Once()
		store.On("Relocate", ctx, "chromance", 0).Return(int64(2), nil).Once()

		err := extractor.ExtractAndArchive(ctx, "chromance", 0)

		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Empty chapter relocates as a no-op", func(t *testing.T) {
		store := new(repoMocks.NarrativeRepository)
		extractor := service.NewLoreExtractor(store, new(serviceMocks.Oracle), new(serviceMocks.Embedder), zap.NewNop())

		store.On("ListByChapter", ctx, "chromance", 1, models.CollectionCurrent).Return([]models.NarrativeTurn{}, nil).Once()
		store.On("Relocate", ctx, "chromance", 1).Return(int64(0), nil).Once()

		err := extractor.ExtractAndArchive(ctx, "chromance", 1)

		assert.NoError(t, err)
		store.AssertNotCalled(t, "InsertLoreFact", ctx, mock.Anything)
	})
}
