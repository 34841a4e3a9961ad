package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"chromance-server/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ CampaignRepository = (*pgCampaignRepository)(nil)

type pgCampaignRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgCampaignRepository creates a new campaign definition repository.
func NewPgCampaignRepository(pool *pgxpool.Pool, logger *zap.Logger) CampaignRepository {
	return &pgCampaignRepository{
		pool:   pool,
		logger: logger.Named("PgCampaignRepo"),
	}
}

const getCampaignDefinitionQuery = `
SELECT id, title, description, chapters, created_at
FROM campaign_definitions
WHERE id = $1`

const listCampaignDefinitionsQuery = `
SELECT id, title, description, chapters, created_at
FROM campaign_definitions
ORDER BY id`

func (r *pgCampaignRepository) GetDefinition(ctx context.Context, campaignID string) (*models.CampaignDefinition, error) {
	def := &models.CampaignDefinition{}
	var chaptersJSON []byte

	err := r.pool.QueryRow(ctx, getCampaignDefinitionQuery, campaignID).Scan(
		&def.ID,
		&def.Title,
		&def.Description,
		&chaptersJSON,
		&def.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCampaignNotFound
		}
		r.logger.Error("Failed to get campaign definition", zap.String("campaignID", campaignID), zap.Error(err))
		return nil, err
	}

	if err := json.Unmarshal(chaptersJSON, &def.Chapters); err != nil {
		r.logger.Error("Failed to unmarshal campaign chapters", zap.String("campaignID", campaignID), zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal chapters for campaign %s: %w", campaignID, err)
	}

	return def, nil
}

func (r *pgCampaignRepository) List(ctx context.Context) ([]models.CampaignDefinition, error) {
	rows, err := r.pool.Query(ctx, listCampaignDefinitionsQuery)
	if err != nil {
		r.logger.Error("Failed to list campaign definitions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var defs []models.CampaignDefinition
	for rows.Next() {
		var def models.CampaignDefinition
		var chaptersJSON []byte
		if err := rows.Scan(&def.ID, &def.Title, &def.Description, &chaptersJSON, &def.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(chaptersJSON, &def.Chapters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chapters for campaign %s: %w", def.ID, err)
		}
		defs = append(defs, def)
	}

	return defs, rows.Err()
}
