package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	"chromance-server/internal/repository"
)

const loreInstructions = `You are the archivist of an interactive story. From the chapter transcript, extract durable facts about the world, its places, factions and named characters that should be remembered across future chapters and campaigns. Output one fact per line, each a single standalone sentence. Omit moment-to-moment action; keep only what permanently changed or was revealed. At most 5 facts.`

const maxLoreFacts = 5

// LoreExtractor condenses a closing chapter into permanent world-lore facts
// and archives the chapter's turns. Lore is durably written before
// relocation so a crash between the steps never loses narrative data;
// relocation itself is idempotent and safe to re-run.
type LoreExtractor struct {
	store    repository.NarrativeRepository
	oracle   Oracle
	embedder Embedder
	logger   *zap.Logger
}

// NewLoreExtractor creates a new lore extractor.
func NewLoreExtractor(
	store repository.NarrativeRepository,
	oracle Oracle,
	embedder Embedder,
	logger *zap.Logger,
) *LoreExtractor {
	return &LoreExtractor{
		store:    store,
		oracle:   oracle,
		embedder: embedder,
		logger:   logger.Named("LoreExtractor"),
	}
}

// ExtractAndArchive runs the full closure pipeline for one chapter: fetch
// current turns, write extracted lore facts, then relocate the turns to the
// archive.
func (e *LoreExtractor) ExtractAndArchive(ctx context.Context, campaignID string, chapter int) error {
	turns, err := e.store.ListByChapter(ctx, campaignID, chapter, models.CollectionCurrent)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		// Already archived, or the chapter was never played. Relocation
		// of zero rows is a no-op either way.
		_, err := e.store.Relocate(ctx, campaignID, chapter)
		return err
	}

	facts := e.extract(ctx, turns)
	now := time.Now().UTC()
	for _, text := range facts {
		fact := &models.LoreFact{
			ID:         uuid.New(),
			CampaignID: campaignID,
			Chapter:    chapter,
			Text:       text,
			CreatedAt:  now,
		}
		if embedding, err := e.embedder.Embed(ctx, text); err == nil {
			fact.Embedding = embedding
		} else {
			e.logger.Warn("Lore fact stored without embedding",
				zap.String("campaignID", campaignID), zap.Error(err))
		}

		// A failed lore write aborts before relocation: the turns stay
		// current and closure can be re-attempted.
		if err := e.store.InsertLoreFact(ctx, fact); err != nil {
			return fmt.Errorf("failed to persist lore for chapter %d: %w", chapter, err)
		}
	}

	relocated, err := e.store.Relocate(ctx, campaignID, chapter)
	if err != nil {
		return err
	}

	e.logger.Info("Chapter archived",
		zap.String("campaignID", campaignID),
		zap.Int("chapter", chapter),
		zap.Int("loreFacts", len(facts)),
		zap.Int64("turnsRelocated", relocated))
	return nil
}

// extract asks the oracle for a condensed fact list, falling back to a
// deterministic rule when the oracle is unavailable.
func (e *LoreExtractor) extract(ctx context.Context, turns []models.NarrativeTurn) []string {
	var transcript strings.Builder
	for _, t := range turns {
		transcript.WriteString(string(t.Role))
		transcript.WriteString(": ")
		transcript.WriteString(t.Text)
		transcript.WriteString("\n")
	}

	summary, err := e.oracle.Summarize(ctx, loreInstructions, transcript.String())
	if err != nil {
		e.logger.Warn("Lore summarization failed, using deterministic fallback", zap.Error(err))
		return fallbackFacts(turns)
	}

	facts := parseFactLines(summary)
	if len(facts) == 0 {
		return fallbackFacts(turns)
	}
	return facts
}

// parseFactLines splits a summary into individual facts, stripping list
// markers the model tends to emit.
func parseFactLines(summary string) []string {
	var facts []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789. ")
		if line == "" {
			continue
		}
		facts = append(facts, line)
		if len(facts) == maxLoreFacts {
			break
		}
	}
	return facts
}

// fallbackFacts keeps the final narrator turn as a single fact. It is the
// most conclusive text of the chapter and guarantees closure always leaves
// at least one trace in world lore.
func fallbackFacts(turns []models.NarrativeTurn) []string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleNarrator {
			return []string{turns[i].Text}
		}
	}
	return []string{turns[len(turns)-1].Text}
}
