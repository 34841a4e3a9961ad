package repository

import (
	"context"

	"chromance-server/internal/models"
)

// CampaignRepository reads immutable campaign definitions. Definitions are
// created at seed time (migrations) and never mutated through this core.
type CampaignRepository interface {
	GetDefinition(ctx context.Context, campaignID string) (*models.CampaignDefinition, error)
	List(ctx context.Context) ([]models.CampaignDefinition, error)
}
