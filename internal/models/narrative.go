package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection is the logical partition a stored chunk lives in. The store is
// one physical table with a collection tag, so relocation is a single
// atomic re-tag rather than a cross-store move.
type Collection string

const (
	CollectionCurrent   Collection = "current"
	CollectionArchive   Collection = "archive"
	CollectionWorldLore Collection = "world_lore"
)

// TurnRole distinguishes the two halves of an exchange.
type TurnRole string

const (
	RoleUser     TurnRole = "user"
	RoleNarrator TurnRole = "narrator"
)

// NarrativeTurn is one exchange unit of a play session. Immutable once
// written except for the collection tag, which flips current -> archive
// exactly once during chapter closure.
type NarrativeTurn struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CampaignID  string     `json:"campaign_id" db:"campaign_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Chapter     int        `json:"chapter" db:"chapter"`
	Interaction int        `json:"interaction" db:"interaction"`
	Role        TurnRole   `json:"role" db:"role"`
	Text        string     `json:"text" db:"text"`
	Embedding   []float32  `json:"-" db:"-"`
	Collection  Collection `json:"collection" db:"collection"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// LoreFact is a durable world-state fact extracted at chapter closure.
// It lives permanently in the world_lore collection, independent of any
// single campaign's lifecycle.
type LoreFact struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Chapter    int       `json:"chapter" db:"chapter"`
	Text       string    `json:"text" db:"text"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ScoredNarrative is a retrieval hit: a stored chunk paired with its
// cosine similarity to the query embedding.
type ScoredNarrative struct {
	ID          uuid.UUID  `json:"id"`
	CampaignID  string     `json:"campaign_id"`
	Chapter     int        `json:"chapter"`
	Interaction int        `json:"interaction"`
	Role        TurnRole   `json:"role,omitempty"`
	Text        string     `json:"text"`
	Collection  Collection `json:"collection"`
	Similarity  float64    `json:"similarity"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StoreStats reports per-collection document counts.
type StoreStats struct {
	Current   int64 `json:"current"`
	Archive   int64 `json:"archive"`
	WorldLore int64 `json:"world_lore"`
}
