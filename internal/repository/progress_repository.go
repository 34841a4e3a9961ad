package repository

import (
	"context"

	"github.com/google/uuid"

	"chromance-server/internal/models"
)

// ProgressRepository persists ProgressRecords. All mutations go through the
// progression tracker; this layer only guarantees storage-level invariants
// (one active campaign per user, atomic reward flagging).
type ProgressRepository interface {
	// Create inserts a new record. Returns models.ErrAlreadyActive when the
	// user already has an active record for any campaign.
	Create(ctx context.Context, rec *models.ProgressRecord) error

	GetByUserAndCampaign(ctx context.Context, userID uuid.UUID, campaignID string) (*models.ProgressRecord, error)

	// GetActiveByUser returns the user's single active record, or
	// models.ErrNotFound when none exists.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.ProgressRecord, error)

	Update(ctx context.Context, rec *models.ProgressRecord) error

	// MarkRewarded atomically checks-and-sets the delivered flag for one
	// chapter. Returns false when the flag was already set, in which case
	// the caller must not deliver the reward again.
	MarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) (bool, error)

	// UnmarkRewarded rolls the flag back when the grant that followed a
	// successful MarkRewarded could not be applied.
	UnmarkRewarded(ctx context.Context, userID uuid.UUID, campaignID string, chapter int) error
}
