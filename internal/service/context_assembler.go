package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"chromance-server/internal/models"
	"chromance-server/internal/repository"
)

// ContextConfig bounds the assembled prompt context.
type ContextConfig struct {
	// RecentWindow is the number of trailing current-chapter turns always
	// included verbatim.
	RecentWindow int
	// TopK bounds semantic recall from the current collection.
	TopK int
	// ArchiveTopK bounds cross-chapter recall from the archive.
	ArchiveTopK int
	// LoreFloor is the minimum similarity for a world-lore fact to enter
	// the context at all.
	LoreFloor float64
	// TokenBudget caps the total context size.
	TokenBudget int
	// RetrievalTimeout bounds how long semantic recall may hold the turn;
	// on expiry the assembler proceeds with whatever it has.
	RetrievalTimeout time.Duration
}

// AssembledContext is the prompt material for one oracle call: the literal
// recent history plus ranked memory chunks.
type AssembledContext struct {
	// Recent is the trailing window of current-chapter turns, in
	// interaction order. Never truncated by the token budget.
	Recent []models.NarrativeTurn
	// Chunks are retrieved memory fragments, highest priority first.
	Chunks []string
}

// ContextAssembler builds the bounded prompt context for a turn. Priority is
// strict: current-chapter recency, then current-chapter similarity, then
// world lore, then archive. The budget evicts lowest priority first, so
// literal continuity is never displaced by semantic recall.
type ContextAssembler struct {
	store    repository.NarrativeRepository
	embedder Embedder
	cfg      ContextConfig
	encoder  *tiktoken.Tiktoken
	logger   *zap.Logger
}

// NewContextAssembler creates a new context assembler.
func NewContextAssembler(
	store repository.NarrativeRepository,
	embedder Embedder,
	cfg ContextConfig,
	logger *zap.Logger,
) *ContextAssembler {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Token counting falls back to a character heuristic.
		logger.Warn("Failed to load token encoder, using character estimate", zap.Error(err))
		encoder = nil
	}

	return &ContextAssembler{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		encoder:  encoder,
		logger:   logger.Named("ContextAssembler"),
	}
}

// Assemble builds the context for one turn of the given chapter. Retrieval
// failures degrade the context instead of failing the turn: the recent
// window is the only hard requirement.
func (a *ContextAssembler) Assemble(ctx context.Context, campaignID string, chapter int, queryText string) (*AssembledContext, error) {
	turns, err := a.store.ListByChapter(ctx, campaignID, chapter, models.CollectionCurrent)
	if err != nil {
		return nil, err
	}

	recent := turns
	if len(recent) > a.cfg.RecentWindow {
		recent = recent[len(recent)-a.cfg.RecentWindow:]
	}
	assembled := &AssembledContext{Recent: recent}

	budget := a.cfg.TokenBudget
	for _, t := range recent {
		budget -= a.countTokens(t.Text)
	}
	if budget <= 0 {
		// Recency alone fills the budget; semantic recall is skipped.
		return assembled, nil
	}

	retrievalCtx, cancel := context.WithTimeout(ctx, a.cfg.RetrievalTimeout)
	defer cancel()

	embedding, err := a.embedder.Embed(retrievalCtx, queryText)
	if err != nil {
		a.logger.Warn("Query embedding failed, proceeding with recency-only context",
			zap.String("campaignID", campaignID), zap.Error(err))
		return assembled, nil
	}

	excluded := make([]uuid.UUID, len(recent))
	for i, t := range recent {
		excluded[i] = t.ID
	}

	// Priority tiers, highest first. Each tier is appended whole-chunk
	// while budget remains; eviction therefore always hits the lowest
	// priority tail.
	for _, tier := range []func(context.Context, string, int, []float32, []uuid.UUID) []string{
		a.currentSimilar,
		a.loreFacts,
		a.archiveSimilar,
	} {
		for _, chunk := range tier(retrievalCtx, campaignID, chapter, embedding, excluded) {
			cost := a.countTokens(chunk)
			if cost > budget {
				return assembled, nil
			}
			assembled.Chunks = append(assembled.Chunks, chunk)
			budget -= cost
		}
	}

	return assembled, nil
}

func (a *ContextAssembler) currentSimilar(ctx context.Context, campaignID string, chapter int, embedding []float32, excluded []uuid.UUID) []string {
	hits, err := a.store.SearchTurns(ctx, embedding, models.CollectionCurrent, campaignID, chapter, excluded, a.cfg.TopK)
	if err != nil {
		a.logger.Warn("Current-collection recall failed, degrading", zap.Error(err))
		return nil
	}
	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, h.Text)
	}
	return chunks
}

func (a *ContextAssembler) loreFacts(ctx context.Context, _ string, _ int, embedding []float32, _ []uuid.UUID) []string {
	hits, err := a.store.SearchLore(ctx, embedding, a.cfg.TopK)
	if err != nil {
		a.logger.Warn("World-lore recall failed, degrading", zap.Error(err))
		return nil
	}
	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < a.cfg.LoreFloor {
			continue
		}
		chunks = append(chunks, fmt.Sprintf("World lore: %s", h.Text))
	}
	return chunks
}

func (a *ContextAssembler) archiveSimilar(ctx context.Context, campaignID string, _ int, embedding []float32, _ []uuid.UUID) []string {
	hits, err := a.store.SearchTurns(ctx, embedding, models.CollectionArchive, campaignID, -1, nil, a.cfg.ArchiveTopK)
	if err != nil {
		a.logger.Warn("Archive recall failed, degrading", zap.Error(err))
		return nil
	}
	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, fmt.Sprintf("Earlier in this campaign: %s", h.Text))
	}
	return chunks
}

func (a *ContextAssembler) countTokens(text string) int {
	if a.encoder != nil {
		return len(a.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}
