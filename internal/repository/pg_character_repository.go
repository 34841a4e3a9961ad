package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	"chromance-server/pkg/database"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ CharacterRepository = (*pgCharacterRepository)(nil)

type pgCharacterRepository struct {
	db     *database.Database
	logger *zap.Logger
}

// NewPgCharacterRepository creates a new character repository.
func NewPgCharacterRepository(db *database.Database, logger *zap.Logger) CharacterRepository {
	return &pgCharacterRepository{
		db:     db,
		logger: logger.Named("PgCharacterRepo"),
	}
}

const getCharacterQuery = `
SELECT id, user_id, name, class, attributes, items, created_at
FROM characters
WHERE id = $1`

const lockCharacterQuery = `
SELECT attributes, items
FROM characters
WHERE id = $1
FOR UPDATE`

const updateCharacterStateQuery = `
UPDATE characters
SET attributes = $2, items = $3
WHERE id = $1`

func (r *pgCharacterRepository) GetByID(ctx context.Context, characterID uuid.UUID) (*models.Character, error) {
	ch := &models.Character{}
	var attrsJSON []byte
	var items pq.StringArray

	err := r.db.Pool.QueryRow(ctx, getCharacterQuery, characterID).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.Name,
		&ch.Class,
		&attrsJSON,
		&items,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCharacterNotFound
		}
		r.logger.Error("Failed to get character", zap.Stringer("characterID", characterID), zap.Error(err))
		return nil, err
	}

	if err := json.Unmarshal(attrsJSON, &ch.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes for character %s: %w", characterID, err)
	}
	ch.Items = []string(items)
	return ch, nil
}

// ApplyDelta adds attribute deltas and appends the granted item inside one
// transaction, locking the character row for the duration.
func (r *pgCharacterRepository) ApplyDelta(ctx context.Context, characterID uuid.UUID, deltas map[string]int, itemID string) error {
	return r.db.ExecuteInTransaction(ctx, func(tx pgx.Tx) error {
		var attrsJSON []byte
		var items pq.StringArray

		err := tx.QueryRow(ctx, lockCharacterQuery, characterID).Scan(&attrsJSON, &items)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrCharacterNotFound
			}
			return err
		}

		attrs := map[string]int{}
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return fmt.Errorf("failed to unmarshal attributes for character %s: %w", characterID, err)
		}
		for name, delta := range deltas {
			attrs[name] += delta
		}

		if itemID != "" {
			items = append(items, itemID)
		}

		updated, err := json.Marshal(attrs)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, updateCharacterStateQuery, characterID, updated, items); err != nil {
			r.logger.Error("Failed to apply character delta",
				zap.Stringer("characterID", characterID),
				zap.String("itemID", itemID),
				zap.Error(err))
			return err
		}
		return nil
	})
}
