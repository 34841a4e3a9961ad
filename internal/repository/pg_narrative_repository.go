package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"chromance-server/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ NarrativeRepository = (*pgNarrativeRepository)(nil)

type pgNarrativeRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgNarrativeRepository creates a new narrative store backed by Postgres
// with pgvector.
func NewPgNarrativeRepository(pool *pgxpool.Pool, logger *zap.Logger) NarrativeRepository {
	return &pgNarrativeRepository{
		pool:   pool,
		logger: logger.Named("PgNarrativeRepo"),
	}
}

const appendTurnQuery = `
INSERT INTO narrative_turns
    (id, campaign_id, user_id, chapter, interaction, role, text, embedding, collection, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const relocateChapterQuery = `
UPDATE narrative_turns
SET collection = 'archive'
WHERE campaign_id = $1 AND chapter = $2 AND collection = 'current'`

const purgeCampaignQuery = `
DELETE FROM narrative_turns
WHERE campaign_id = $1 AND collection IN ('current', 'archive')`

const listByCampaignQuery = `
SELECT id, campaign_id, user_id, chapter, interaction, role, text, collection, created_at
FROM narrative_turns
WHERE campaign_id = $1
ORDER BY chapter, interaction, created_at`

const listByChapterQuery = `
SELECT id, campaign_id, user_id, chapter, interaction, role, text, collection, created_at
FROM narrative_turns
WHERE campaign_id = $1 AND chapter = $2 AND collection = $3
ORDER BY chapter, interaction, created_at`

// Distance ordering with a most-recent-first tiebreak keeps retrieval
// deterministic when scores collide.
const searchTurnsQuery = `
SELECT id, campaign_id, chapter, interaction, role, text, collection,
       1 - (embedding <=> $1::vector) AS similarity,
       created_at
FROM narrative_turns
WHERE collection = $2
  AND campaign_id = $3
  AND ($4 < 0 OR chapter = $4)
  AND NOT (id = ANY($5::uuid[]))
  AND embedding IS NOT NULL
ORDER BY embedding <=> $1::vector, created_at DESC
LIMIT $6`

const searchLoreQuery = `
SELECT id, campaign_id, chapter, '' AS role, text, 'world_lore' AS collection,
       1 - (embedding <=> $1::vector) AS similarity,
       created_at
FROM world_lore
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1::vector, created_at DESC
LIMIT $2`

const insertLoreFactQuery = `
INSERT INTO world_lore (id, campaign_id, chapter, text, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const storeStatsQuery = `
SELECT
    count(*) FILTER (WHERE collection = 'current')  AS current,
    count(*) FILTER (WHERE collection = 'archive')  AS archive,
    (SELECT count(*) FROM world_lore)               AS world_lore
FROM narrative_turns`

func (r *pgNarrativeRepository) Append(ctx context.Context, turn *models.NarrativeTurn) error {
	var embedding any
	if len(turn.Embedding) > 0 {
		embedding = formatVector(turn.Embedding)
	}

	_, err := r.pool.Exec(ctx, appendTurnQuery,
		turn.ID,
		turn.CampaignID,
		turn.UserID,
		turn.Chapter,
		turn.Interaction,
		turn.Role,
		turn.Text,
		embedding,
		turn.Collection,
		turn.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append narrative turn",
			zap.String("campaignID", turn.CampaignID),
			zap.Int("chapter", turn.Chapter),
			zap.Int("interaction", turn.Interaction),
			zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *pgNarrativeRepository) Relocate(ctx context.Context, campaignID string, chapter int) (int64, error) {
	tag, err := r.pool.Exec(ctx, relocateChapterQuery, campaignID, chapter)
	if err != nil {
		r.logger.Error("Failed to relocate chapter turns",
			zap.String("campaignID", campaignID),
			zap.Int("chapter", chapter),
			zap.Error(err))
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgNarrativeRepository) Purge(ctx context.Context, campaignID string) error {
	_, err := r.pool.Exec(ctx, purgeCampaignQuery, campaignID)
	if err != nil {
		r.logger.Error("Failed to purge campaign narratives",
			zap.String("campaignID", campaignID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *pgNarrativeRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.NarrativeTurn, error) {
	var turns []models.NarrativeTurn
	if err := pgxscan.Select(ctx, r.pool, &turns, listByCampaignQuery, campaignID); err != nil {
		r.logger.Error("Failed to list campaign narratives",
			zap.String("campaignID", campaignID),
			zap.Error(err))
		return nil, err
	}
	return turns, nil
}

func (r *pgNarrativeRepository) ListByChapter(ctx context.Context, campaignID string, chapter int, collection models.Collection) ([]models.NarrativeTurn, error) {
	var turns []models.NarrativeTurn
	if err := pgxscan.Select(ctx, r.pool, &turns, listByChapterQuery, campaignID, chapter, collection); err != nil {
		r.logger.Error("Failed to list chapter narratives",
			zap.String("campaignID", campaignID),
			zap.Int("chapter", chapter),
			zap.Error(err))
		return nil, err
	}
	return turns, nil
}

func (r *pgNarrativeRepository) SearchTurns(ctx context.Context, embedding []float32, collection models.Collection, campaignID string, chapter int, excludeIDs []uuid.UUID, topK int) ([]models.ScoredNarrative, error) {
	excluded := make([]string, len(excludeIDs))
	for i, id := range excludeIDs {
		excluded[i] = id.String()
	}

	rows, err := r.pool.Query(ctx, searchTurnsQuery,
		formatVector(embedding), collection, campaignID, chapter, excluded, topK)
	if err != nil {
		r.logger.Error("Failed to search narrative turns",
			zap.String("campaignID", campaignID),
			zap.String("collection", string(collection)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var hits []models.ScoredNarrative
	for rows.Next() {
		var h models.ScoredNarrative
		if err := rows.Scan(&h.ID, &h.CampaignID, &h.Chapter, &h.Interaction, &h.Role, &h.Text, &h.Collection, &h.Similarity, &h.CreatedAt); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *pgNarrativeRepository) SearchLore(ctx context.Context, embedding []float32, topK int) ([]models.ScoredNarrative, error) {
	rows, err := r.pool.Query(ctx, searchLoreQuery, formatVector(embedding), topK)
	if err != nil {
		r.logger.Error("Failed to search world lore", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var hits []models.ScoredNarrative
	for rows.Next() {
		var h models.ScoredNarrative
		if err := rows.Scan(&h.ID, &h.CampaignID, &h.Chapter, &h.Role, &h.Text, &h.Collection, &h.Similarity, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Interaction = 0
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *pgNarrativeRepository) InsertLoreFact(ctx context.Context, fact *models.LoreFact) error {
	var embedding any
	if len(fact.Embedding) > 0 {
		embedding = formatVector(fact.Embedding)
	}

	_, err := r.pool.Exec(ctx, insertLoreFactQuery,
		fact.ID,
		fact.CampaignID,
		fact.Chapter,
		fact.Text,
		embedding,
		fact.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert lore fact",
			zap.String("campaignID", fact.CampaignID),
			zap.Int("chapter", fact.Chapter),
			zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *pgNarrativeRepository) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}
	err := r.pool.QueryRow(ctx, storeStatsQuery).Scan(&stats.Current, &stats.Archive, &stats.WorldLore)
	if err != nil {
		r.logger.Error("Failed to read store stats", zap.Error(err))
		return nil, err
	}
	return stats, nil
}
