package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"chromance-server/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ ProgressRepository = (*pgProgressRepository)(nil)

type pgProgressRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgProgressRepository creates a new progress repository.
func NewPgProgressRepository(pool *pgxpool.Pool, logger *zap.Logger) ProgressRepository {
	return &pgProgressRepository{
		pool:   pool,
		logger: logger.Named("PgProgressRepo"),
	}
}

const uniqueViolationCode = "23505"

const insertProgressQuery = `
INSERT INTO campaign_progress
    (user_id, campaign_id, character_id, current_chapter, interaction_count, phase, status, rewarded_chapters, started_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const getProgressQuery = `
SELECT user_id, campaign_id, character_id, current_chapter, interaction_count, phase, status, rewarded_chapters, started_at, updated_at
FROM campaign_progress
WHERE user_id = $1 AND campaign_id = $2`

const getActiveProgressQuery = `
SELECT user_id, campaign_id, character_id, current_chapter, interaction_count, phase, status, rewarded_chapters, started_at, updated_at
FROM campaign_progress
WHERE user_id = $1 AND status = 'active'`

const updateProgressQuery = `
UPDATE campaign_progress
SET current_chapter = $3, interaction_count = $4, phase = $5, status = $6, updated_at = $7
WHERE user_id = $1 AND campaign_id = $2`

// The NOT ... ANY guard makes the flag a single check-and-set: a concurrent
// second delivery attempt matches zero rows.
const markRewardedQuery = `
UPDATE campaign_progress
SET rewarded_chapters = array_append(rewarded_chapters, $3), updated_at = now()
WHERE user_id = $1 AND campaign_id = $2 AND NOT ($3 = ANY(rewarded_chapters))`

const unmarkRewardedQuery = `
UPDATE campaign_progress
SET rewarded_chapters = array_remove(rewarded_chapters, $3), updated_at = now()
WHERE user_id = $1 AND campaign_id = $2`

func (r *pgProgressRepository) Create(ctx context.Context, rec *models.ProgressRecord) error {
	_, err := r.pool.Exec(ctx, insertProgressQuery,
		rec.UserID,
		rec.CampaignID,
		rec.CharacterID,
		rec.CurrentChapter,
		rec.InteractionCount,
		rec.Phase,
		rec.Status,
		intsToInt64s(rec.RewardedChapters),
		rec.StartedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// Backed by the partial unique index on (user_id) WHERE active.
			return models.ErrAlreadyActive
		}
		r.logger.Error("Failed to create progress record",
			zap.Stringer("userID", rec.UserID),
			zap.String("campaignID", rec.CampaignID),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *pgProgressRepository) GetByUserAndCampaign(ctx context.Context, userID uuid.UUID, campaignID string) (*models.ProgressRecord, error) {
	return r.scanOne(ctx, getProgressQuery, userID, campaignID)
}

func (r *pgProgressRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.ProgressRecord, error) {
	return r.scanOne(ctx, getActiveProgressQuery, userID)
}

func (r *pgProgressRepository) Update(ctx context.Context, rec *models.ProgressRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, updateProgressQuery,
		rec.UserID,
		rec.CampaignID,
		rec.CurrentChapter,
		rec.InteractionCount,
		rec.Phase,
		rec.Status,
		rec.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update progress record",
			zap.Stringer("userID", rec.UserID),
			zap.String("campaignID", rec.CampaignID),
			zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgProgressRepository) MarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) (bool, error) {
	tag, err := r.pool.Exec(ctx, markRewardedQuery, userID, campaignID, chapter)
	if err != nil {
		r.logger.Error("Failed to mark chapter rewarded",
			zap.Stringer("userID", userID),
			zap.String("campaignID", campaignID),
			zap.Int("chapter", chapter),
			zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgProgressRepository) UnmarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) error {
	_, err := r.pool.Exec(ctx, unmarkRewardedQuery, userID, campaignID, chapter)
	if err != nil {
		r.logger.Error("Failed to unmark chapter rewarded",
			zap.Stringer("userID", userID),
			zap.String("campaignID", campaignID),
			zap.Int("chapter", chapter),
			zap.Error(err))
	}
	return err
}

func (r *pgProgressRepository) scanOne(ctx context.Context, query string, args ...any) (*models.ProgressRecord, error) {
	rec := &models.ProgressRecord{}
	var rewarded pq.Int64Array

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rec.UserID,
		&rec.CampaignID,
		&rec.CharacterID,
		&rec.CurrentChapter,
		&rec.InteractionCount,
		&rec.Phase,
		&rec.Status,
		&rewarded,
		&rec.StartedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get progress record", zap.Error(err))
		return nil, err
	}

	rec.RewardedChapters = make([]int, len(rewarded))
	for i, c := range rewarded {
		rec.RewardedChapters[i] = int(c)
	}
	return rec, nil
}

func intsToInt64s(in []int) pq.Int64Array {
	out := make(pq.Int64Array, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
