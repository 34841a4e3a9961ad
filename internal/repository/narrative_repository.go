package repository

import (
	"context"

	"github.com/google/uuid"

	"chromance-server/internal/models"
)

// NarrativeRepository is the append-only narrative store plus its vector
// retriever. One table with a collection tag models the current/archive
// partitions so relocation is a single atomic UPDATE; world lore lives in
// its own permanent table.
type NarrativeRepository interface {
	// Append writes one turn with its embedding. Returns
	// models.ErrStoreUnavailable when the backing index rejects the write.
	Append(ctx context.Context, turn *models.NarrativeTurn) error

	// Relocate re-tags all current turns of one chapter to archive.
	// Atomic per chapter and idempotent: re-running it on an already
	// archived chapter affects zero rows.
	Relocate(ctx context.Context, campaignID string, chapter int) (int64, error)

	// Purge deletes all turns of a campaign across current and archive.
	// World lore is never purged.
	Purge(ctx context.Context, campaignID string) error

	ListByCampaign(ctx context.Context, campaignID string) ([]models.NarrativeTurn, error)
	ListByChapter(ctx context.Context, campaignID string, chapter int, collection models.Collection) ([]models.NarrativeTurn, error)

	// SearchTurns runs a similarity search over one turn collection.
	// chapter < 0 matches any chapter; excludeIDs removes the literal
	// recency window from semantic recall. Ties break most-recent first.
	SearchTurns(ctx context.Context, embedding []float32, collection models.Collection, campaignID string, chapter int, excludeIDs []uuid.UUID, topK int) ([]models.ScoredNarrative, error)

	// SearchLore runs a similarity search over the world_lore collection.
	SearchLore(ctx context.Context, embedding []float32, topK int) ([]models.ScoredNarrative, error)

	InsertLoreFact(ctx context.Context, fact *models.LoreFact) error

	Stats(ctx context.Context) (*models.StoreStats, error)
}
