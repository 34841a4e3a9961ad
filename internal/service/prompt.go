package service

import (
	"fmt"
	"sort"
	"strings"

	"chromance-server/internal/models"
)

// maxSuggestedActions bounds how many model-proposed actions reach the
// client.
const maxSuggestedActions = 3

var phaseFraming = map[models.Phase]string{
	models.PhaseIntroduction: "The chapter is just beginning. Establish the scene, introduce what is at stake and invite exploration. Do not resolve the chapter's goal yet.",
	models.PhaseDevelopment:  "The chapter is in full swing. Raise complications, reveal information and let the player's choices carry weight. The goal should feel closer but still out of reach.",
	models.PhaseResolution:   "The chapter is approaching its climax. Steer events toward the chapter's goal and, if the player acts decisively, let them achieve it.",
}

// buildDirective composes the system directive for one oracle call: world
// and chapter framing, the player character sheet, phase-appropriate pacing
// and the suggested-action output contract.
func buildDirective(def *models.CampaignDefinition, chapter *models.Chapter, phase models.Phase, character *models.Character) string {
	var b strings.Builder

	b.WriteString("You are the narrator of \"")
	b.WriteString(def.Title)
	b.WriteString("\", an interactive story. ")
	b.WriteString(def.Description)
	b.WriteString("\n\nCurrent chapter: \"")
	b.WriteString(chapter.Title)
	b.WriteString("\". ")
	b.WriteString(chapter.SeedPrompt)
	b.WriteString("\n\n")
	b.WriteString(phaseFraming[phase])

	if character != nil {
		b.WriteString("\n\nThe player character is ")
		b.WriteString(character.Name)
		if character.Class != "" {
			b.WriteString(" the ")
			b.WriteString(character.Class)
		}
		b.WriteString(".")
		if len(character.Attributes) > 0 {
			b.WriteString(" Attributes: ")
			b.WriteString(formatAttributes(character.Attributes))
			b.WriteString(".")
		}
		if len(character.Items) > 0 {
			b.WriteString(" Inventory: ")
			b.WriteString(strings.Join(character.Items, ", "))
			b.WriteString(".")
		}
	}

	b.WriteString("\n\nRespond with 2-4 paragraphs of second-person narration. Then, on separate lines, propose up to ")
	fmt.Fprintf(&b, "%d", maxSuggestedActions)
	b.WriteString(" short next actions the player could take, each on its own line prefixed with \">> \".")

	return b.String()
}

// formatAttributes renders a stable, sorted attribute list.
func formatAttributes(attrs map[string]int) string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", name, attrs[name])
	}
	return strings.Join(parts, ", ")
}

// splitNarration separates narrative prose from ">> " suggested-action
// lines. When the model ignored the contract, the full text is narrative
// and generic fallback actions are returned.
func splitNarration(response string) (narrative string, actions []string) {
	var prose []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, ">>"); ok {
			action := strings.TrimSpace(rest)
			if action != "" && len(actions) < maxSuggestedActions {
				actions = append(actions, action)
			}
			continue
		}
		prose = append(prose, line)
	}

	narrative = strings.TrimSpace(strings.Join(prose, "\n"))
	if len(actions) == 0 {
		actions = []string{"Look around", "Press on", "Talk to someone nearby"}
	}
	return narrative, actions
}
