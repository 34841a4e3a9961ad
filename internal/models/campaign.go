package models

import "time"

// RewardSpec is the declarative completion rule for a chapter. Detection is
// best-effort text matching: the narrator's response must combine an action
// verb with a reward alias, or contain a completion phrase together with an
// alias. New chapters only need new data here, not new code.
type RewardSpec struct {
	ItemID          string         `json:"item_id"`
	ItemName        string         `json:"item_name"`
	AttributeDeltas map[string]int `json:"attribute_deltas"`

	// Aliases are alternative names of the reward as the model may phrase
	// them ("lost relic", "the cube", ...). Matched case-insensitively.
	Aliases []string `json:"aliases"`

	// ActionWords override the engine's default acquisition verbs when set.
	ActionWords []string `json:"action_words,omitempty"`

	// CompletionPhrases signal chapter completion independent of verbs.
	CompletionPhrases []string `json:"completion_phrases,omitempty"`
}

// Chapter is one entry of a campaign's ordered chapter list.
type Chapter struct {
	Index       int        `json:"index"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	SeedPrompt  string     `json:"seed_prompt"`
	Reward      RewardSpec `json:"reward"`
}

// CampaignDefinition is the immutable campaign template. Created at seed
// time, read-only thereafter.
type CampaignDefinition struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Chapters    []Chapter `json:"chapters"`
	CreatedAt   time.Time `json:"created_at"`
}

// LastChapter reports whether idx is the final chapter of the campaign.
func (d *CampaignDefinition) LastChapter(idx int) bool {
	return idx >= len(d.Chapters)-1
}

// ChapterAt returns the chapter at idx, or nil when out of range.
func (d *CampaignDefinition) ChapterAt(idx int) *Chapter {
	if idx < 0 || idx >= len(d.Chapters) {
		return nil
	}
	return &d.Chapters[idx]
}
