package repository

import (
	"context"

	"github.com/google/uuid"

	"chromance-server/internal/models"
)

// CharacterRepository is the character record collaborator consumed by the
// reward engine. ApplyDelta must be atomic per call.
type CharacterRepository interface {
	GetByID(ctx context.Context, characterID uuid.UUID) (*models.Character, error)

	// ApplyDelta adds attribute deltas and grants an item in one
	// transaction. An empty itemID grants nothing.
	ApplyDelta(ctx context.Context, characterID uuid.UUID, deltas map[string]int, itemID string) error
}
