package models

import (
	"time"

	"github.com/google/uuid"
)

// Character is the record the reward engine mutates. Character CRUD itself
// lives outside this core; only attribute reads and atomic delta/item
// application are exercised here.
type Character struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	UserID     uuid.UUID      `json:"user_id" db:"user_id"`
	Name       string         `json:"name" db:"name"`
	Class      string         `json:"class" db:"class"`
	Attributes map[string]int `json:"attributes" db:"-"`
	Items      []string       `json:"items" db:"-"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
