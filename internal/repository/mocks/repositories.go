package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chromance-server/internal/models"
)

// Mock CampaignRepository
type CampaignRepository struct {
	mock.Mock
}

func (m *CampaignRepository) GetDefinition(ctx context.Context, campaignID string) (*models.CampaignDefinition, error) {
	args := m.Called(ctx, campaignID)
	def, _ := args.Get(0).(*models.CampaignDefinition)
	return def, args.Error(1)
}
func (m *CampaignRepository) List(ctx context.Context) ([]models.CampaignDefinition, error) {
	args := m.Called(ctx)
	defs, _ := args.Get(0).([]models.CampaignDefinition)
	return defs, args.Error(1)
}

// Mock ProgressRepository
type ProgressRepository struct {
	mock.Mock
}

func (m *ProgressRepository) Create(ctx context.Context, rec *models.ProgressRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *ProgressRepository) GetByUserAndCampaign(ctx context.Context, userID uuid.UUID, campaignID string) (*models.ProgressRecord, error) {
	args := m.Called(ctx, userID, campaignID)
	rec, _ := args.Get(0).(*models.ProgressRecord)
	return rec, args.Error(1)
}
func (m *ProgressRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.ProgressRecord, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*models.ProgressRecord)
	return rec, args.Error(1)
}
func (m *ProgressRepository) Update(ctx context.Context, rec *models.ProgressRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *ProgressRepository) MarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) (bool, error) {
	args := m.Called(ctx, userID, campaignID, chapter)
	return args.Bool(0), args.Error(1)
}
func (m *ProgressRepository) UnmarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) error {
	args := m.Called(ctx, userID, campaignID, chapter)
	return args.Error(0)
}

// Mock NarrativeRepository
type NarrativeRepository struct {
	mock.Mock
}

func (m *NarrativeRepository) Append(ctx context.Context, turn *models.NarrativeTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}
func (m *NarrativeRepository) Relocate(ctx context.Context, campaignID string, chapter int) (int64, error) {
	args := m.Called(ctx, campaignID, chapter)
	return args.Get(0).(int64), args.Error(1)
}
func (m *NarrativeRepository) Purge(ctx context.Context, campaignID string) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}
func (m *NarrativeRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.NarrativeTurn, error) {
	args := m.Called(ctx, campaignID)
	turns, _ := args.Get(0).([]models.NarrativeTurn)
	return turns, args.Error(1)
}
func (m *NarrativeRepository) ListByChapter(ctx context.Context, campaignID string, chapter int, collection models.Collection) ([]models.NarrativeTurn, error) {
	args := m.Called(ctx, campaignID, chapter, collection)
	turns, _ := args.Get(0).([]models.NarrativeTurn)
	return turns, args.Error(1)
}
func (m *NarrativeRepository) SearchTurns(ctx context.Context, embedding []float32, collection models.Collection, campaignID string, chapter int, excludeIDs []uuid.UUID, topK int) ([]models.ScoredNarrative, error) {
	args := m.Called(ctx, embedding, collection, campaignID, chapter, excludeIDs, topK)
	hits, _ := args.Get(0).([]models.ScoredNarrative)
	return hits, args.Error(1)
}
func (m *NarrativeRepository) SearchLore(ctx context.Context, embedding []float32, topK int) ([]models.ScoredNarrative, error) {
	args := m.Called(ctx, embedding, topK)
	hits, _ := args.Get(0).([]models.ScoredNarrative)
	return hits, args.Error(1)
}
func (m *NarrativeRepository) InsertLoreFact(ctx context.Context, fact *models.LoreFact) error {
	args := m.Called(ctx, fact)
	return args.Error(0)
}
func (m *NarrativeRepository) Stats(ctx context.Context) (*models.StoreStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*models.StoreStats)
	return stats, args.Error(1)
}

// Mock CharacterRepository
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) GetByID(ctx context.Context, characterID uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, characterID)
	ch, _ := args.Get(0).(*models.Character)
	return ch, args.Error(1)
}
func (m *CharacterRepository) ApplyDelta(ctx context.Context, characterID uuid.UUID, deltas map[string]int, itemID string) error {
	args := m.Called(ctx, characterID, deltas, itemID)
	return args.Error(0)
}
