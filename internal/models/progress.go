package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the narrative stage of a chapter, derived purely from the
// interaction count within that chapter.
type Phase string

const (
	PhaseIntroduction Phase = "introduction"
	PhaseDevelopment  Phase = "development"
	PhaseResolution   Phase = "resolution"
)

// ProgressStatus is the lifecycle state of a ProgressRecord.
type ProgressStatus string

const (
	StatusActive    ProgressStatus = "active"
	StatusCompleted ProgressStatus = "completed"
	StatusCancelled ProgressStatus = "cancelled"
)

// MaxInteractions is the soft ceiling per chapter. The count clamps here
// while the chapter awaits closure; reaching it does not itself force
// closure.
const MaxInteractions = 10

// PhaseForCount maps an interaction count to its phase:
// 1-3 introduction, 4-7 development, 8-10 resolution.
// Count 0 (chapter not yet played) is introduction.
func PhaseForCount(count int) Phase {
	switch {
	case count <= 3:
		return PhaseIntroduction
	case count <= 7:
		return PhaseDevelopment
	default:
		return PhaseResolution
	}
}

// ProgressRecord tracks one user's advancement through one campaign.
// It is owned exclusively by the progression tracker and mutated only
// through its transition operations.
type ProgressRecord struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CampaignID  string    `json:"campaign_id" db:"campaign_id"`
	CharacterID uuid.UUID `json:"character_id" db:"character_id"`

	CurrentChapter   int            `json:"current_chapter" db:"current_chapter"`
	InteractionCount int            `json:"interaction_count" db:"interaction_count"`
	Phase            Phase          `json:"phase" db:"phase"`
	Status           ProgressStatus `json:"status" db:"status"`

	// RewardedChapters holds chapter indices whose reward has been
	// delivered. Guards against double delivery.
	RewardedChapters []int `json:"rewarded_chapters" db:"rewarded_chapters"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ChapterRewarded reports whether the reward for chapter idx was delivered.
func (p *ProgressRecord) ChapterRewarded(idx int) bool {
	for _, c := range p.RewardedChapters {
		if c == idx {
			return true
		}
	}
	return false
}

// Active reports whether the record accepts further turns.
func (p *ProgressRecord) Active() bool {
	return p.Status == StatusActive
}
