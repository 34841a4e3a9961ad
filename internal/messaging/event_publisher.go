package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType tags the progression events other services subscribe to.
type EventType string

const (
	EventCampaignStarted   EventType = "campaign.started"
	EventChapterClosed     EventType = "chapter.closed"
	EventRewardDelivered   EventType = "reward.delivered"
	EventCampaignCompleted EventType = "campaign.completed"
	EventCampaignCancelled EventType = "campaign.cancelled"
)

// GameEvent is the envelope published on every progression milestone.
type GameEvent struct {
	Type       EventType `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	CampaignID string    `json:"campaign_id"`
	Chapter    int       `json:"chapter,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GameEventPublisher announces progression milestones. Publishing is
// fire-and-forget from the orchestrator's point of view: a failed publish
// never fails the turn.
type GameEventPublisher interface {
	PublishGameEvent(ctx context.Context, event GameEvent) error
	Close() error
}
