package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chromance-server/internal/models"
)

func TestSplitNarration(t *testing.T) {
	t.Run("Separates actions from prose", func(t *testing.T) {
		response := "The market swallows you whole.\n\nVex waits by the stall.\n>> Approach Vex\n>> Watch from the shadows\n>> Leave the market"

		narrative, actions := splitNarration(response)

		assert.Equal(t, "The market swallows you whole.\n\nVex waits by the stall.", narrative)
		assert.Equal(t, []string{"Approach Vex", "Watch from the shadows", "Leave the market"}, actions)
	})

	t.Run("Caps the action count", func(t *testing.T) {
		response := "Prose.\n>> a\n>> b\n>> c\n>> d\n>> e"

		_, actions := splitNarration(response)
		assert.Len(t, actions, maxSuggestedActions)
	})

	t.Run("Missing actions fall back to generic ones", func(t *testing.T) {
		narrative, actions := splitNarration("Just prose, the model ignored the contract.")

		assert.Equal(t, "Just prose, the model ignored the contract.", narrative)
		assert.NotEmpty(t, actions)
	})

	t.Run("Blank action lines are skipped", func(t *testing.T) {
		_, actions := splitNarration("Prose.\n>>\n>> Real action")
		assert.Equal(t, []string{"Real action"}, actions)
	})
}

func TestBuildDirective(t *testing.T) {
	def := &models.CampaignDefinition{Title: "Chromance", Description: "A neon city."}
	chapter := &models.Chapter{Title: "The Shadow Cube", SeedPrompt: "Find the cube."}

	t.Run("Includes phase framing and character sheet", func(t *testing.T) {
		character := &models.Character{
			Name:       "Nyx",
			Class:      "netrunner",
			Attributes: map[string]int{"intelligence": 7, "energy": 4},
			Items:      []string{"deck"},
		}

		directive := buildDirective(def, chapter, models.PhaseResolution, character)

		assert.Contains(t, directive, "Chromance")
		assert.Contains(t, directive, "The Shadow Cube")
		assert.Contains(t, directive, phaseFraming[models.PhaseResolution])
		assert.Contains(t, directive, "Nyx the netrunner")
		// Attributes render in sorted order regardless of map iteration.
		assert.Contains(t, directive, "energy 4, intelligence 7")
		assert.Contains(t, directive, "deck")
	})

	t.Run("Works without a character", func(t *testing.T) {
		directive := buildDirective(def, chapter, models.PhaseIntroduction, nil)

		assert.Contains(t, directive, phaseFraming[models.PhaseIntroduction])
		assert.NotContains(t, directive, "The player character is")
	})
}

func TestParseFactLines(t *testing.T) {
	facts := parseFactLines("- First fact.\n2. Second fact.\n\n* Third fact.")
	assert.Equal(t, []string{"First fact.", "Second fact.", "Third fact."}, facts)

	assert.Empty(t, parseFactLines("  \n\n"))
}
