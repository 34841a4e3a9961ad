package models

// RewardDelivery describes a reward applied during a turn.
type RewardDelivery struct {
	Chapter         int            `json:"chapter"`
	ItemID          string         `json:"item_id"`
	ItemName        string         `json:"item_name"`
	AttributeDeltas map[string]int `json:"attribute_deltas"`
}

// ActionResult is the outcome of one orchestrated turn.
type ActionResult struct {
	Narrative        string          `json:"narrative"`
	SuggestedActions []string        `json:"suggested_actions"`
	Reward           *RewardDelivery `json:"reward,omitempty"`
	Chapter          int             `json:"chapter"`
	InteractionCount int             `json:"interaction_count"`
	Phase            Phase           `json:"phase"`
	ChapterClosed    bool            `json:"chapter_closed"`
	CampaignDone     bool            `json:"campaign_done"`
}

// CampaignWithProgress merges a campaign definition with the requesting
// user's progress, when any exists.
type CampaignWithProgress struct {
	Campaign CampaignDefinition `json:"campaign"`
	Progress *ProgressRecord    `json:"progress,omitempty"`
}
