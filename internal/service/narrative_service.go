package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chromance-server/internal/lock"
	"chromance-server/internal/messaging"
	"chromance-server/internal/models"
	"chromance-server/internal/repository"
	"chromance-server/pkg/ai"
)

// NarrativeOrchestrator coordinates one full turn: lock, progress read,
// user-turn append, context assembly, oracle call, narrator-turn append,
// interaction advance, reward evaluation and possible chapter closure.
type NarrativeOrchestrator struct {
	campaignRepo  repository.CampaignRepository
	progressRepo  repository.ProgressRepository
	characterRepo repository.CharacterRepository
	store         repository.NarrativeRepository

	tracker   *ProgressionTracker
	assembler *ContextAssembler
	rewards   *RewardEngine
	lore      *LoreExtractor

	oracle   Oracle
	embedder Embedder
	locker   lock.TurnLocker
	events   messaging.GameEventPublisher

	logger *zap.Logger
}

// NewNarrativeOrchestrator wires the orchestrator.
func NewNarrativeOrchestrator(
	campaignRepo repository.CampaignRepository,
	progressRepo repository.ProgressRepository,
	characterRepo repository.CharacterRepository,
	store repository.NarrativeRepository,
	tracker *ProgressionTracker,
	assembler *ContextAssembler,
	rewards *RewardEngine,
	lore *LoreExtractor,
	oracle Oracle,
	embedder Embedder,
	locker lock.TurnLocker,
	events messaging.GameEventPublisher,
	logger *zap.Logger,
) *NarrativeOrchestrator {
	return &NarrativeOrchestrator{
		campaignRepo:  campaignRepo,
		progressRepo:  progressRepo,
		characterRepo: characterRepo,
		store:         store,
		tracker:       tracker,
		assembler:     assembler,
		rewards:       rewards,
		lore:          lore,
		oracle:        oracle,
		embedder:      embedder,
		locker:        locker,
		events:        events,
		logger:        logger.Named("NarrativeOrchestrator"),
	}
}

// StartCampaign begins a campaign for the user.
func (o *NarrativeOrchestrator) StartCampaign(ctx context.Context, userID uuid.UUID, campaignID string, characterID uuid.UUID) (*models.ProgressRecord, error) {
	if _, err := o.characterRepo.GetByID(ctx, characterID); err != nil {
		return nil, err
	}

	rec, err := o.tracker.Start(ctx, userID, campaignID, characterID)
	if err != nil {
		return nil, err
	}

	o.publish(ctx, messaging.GameEvent{
		Type:       messaging.EventCampaignStarted,
		UserID:     userID,
		CampaignID: campaignID,
	})
	return rec, nil
}

// SubmitAction runs one narrative turn. The per-(user, campaign) lease is
// held for the whole pipeline and released on every exit path. On oracle
// failure the user's turn is retained and the interaction count is not
// advanced, so the caller can retry the same pending state.
func (o *NarrativeOrchestrator) SubmitAction(ctx context.Context, userID uuid.UUID, campaignID, text string) (*models.ActionResult, error) {
	if text == "" {
		return nil, models.ErrInvalidInput
	}

	release, err := o.locker.Acquire(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := o.progressRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoActiveCampaign
		}
		return nil, err
	}
	if rec.CampaignID != campaignID {
		return nil, models.ErrNoActiveCampaign
	}

	def, err := o.campaignRepo.GetDefinition(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	chapter := def.ChapterAt(rec.CurrentChapter)
	if chapter == nil {
		return nil, fmt.Errorf("%w: progress points past chapter list", models.ErrInternalServer)
	}

	interaction := rec.InteractionCount + 1
	if err := o.appendUserTurn(ctx, rec, interaction, text); err != nil {
		return nil, err
	}

	assembled, err := o.assembler.Assemble(ctx, campaignID, rec.CurrentChapter, text)
	if err != nil {
		// Degraded, not blocked: the oracle still gets the user action.
		o.logger.Warn("Context assembly failed, narrating without memory",
			zap.String("campaignID", campaignID), zap.Error(err))
		assembled = &AssembledContext{}
	}

	var character *models.Character
	if ch, err := o.characterRepo.GetByID(ctx, rec.CharacterID); err == nil {
		character = ch
	}

	phase := models.PhaseForCount(interaction)
	response, err := o.oracle.Narrate(ctx, ai.NarrationRequest{
		SystemDirective: buildDirective(def, chapter, phase, character),
		ContextChunks:   assembled.Chunks,
		History:         historyMessages(assembled.Recent, text),
		UserAction:      text,
	})
	if err != nil {
		o.logger.Error("Oracle narration failed, user turn retained",
			zap.Stringer("userID", userID),
			zap.String("campaignID", campaignID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}

	narrative, suggested := splitNarration(response)

	if err := o.appendTurn(ctx, rec, interaction, models.RoleNarrator, narrative); err != nil {
		return nil, err
	}
	if err := o.tracker.AdvanceInteraction(ctx, rec); err != nil {
		return nil, err
	}

	result := &models.ActionResult{
		Narrative:        narrative,
		SuggestedActions: suggested,
		Chapter:          rec.CurrentChapter,
		InteractionCount: rec.InteractionCount,
		Phase:            rec.Phase,
	}

	reward, err := o.rewards.Evaluate(ctx, rec, &chapter.Reward, narrative)
	if err != nil {
		// The turn itself succeeded; reward delivery will be retried when
		// the completion signal recurs.
		o.logger.Error("Reward evaluation failed", zap.Error(err))
		return result, nil
	}
	// A rewarded chapter with no fresh delivery means a previous turn
	// delivered but the close itself failed; finish the closure now instead
	// of leaving the chapter stuck behind the delivered flag.
	if reward == nil && !rec.ChapterRewarded(rec.CurrentChapter) {
		return result, nil
	}

	result.Reward = reward
	result.ChapterClosed = true
	closed := rec.CurrentChapter

	done, err := o.tracker.CloseChapter(ctx, rec, def)
	if err != nil {
		return nil, err
	}
	result.CampaignDone = done
	result.Chapter = rec.CurrentChapter
	result.InteractionCount = rec.InteractionCount
	result.Phase = rec.Phase

	o.archiveThrough(ctx, campaignID, closed)

	if reward != nil {
		o.publish(ctx, messaging.GameEvent{
			Type:       messaging.EventRewardDelivered,
			UserID:     userID,
			CampaignID: campaignID,
			Chapter:    closed,
			ItemID:     reward.ItemID,
		})
	}
	o.publish(ctx, messaging.GameEvent{
		Type:       messaging.EventChapterClosed,
		UserID:     userID,
		CampaignID: campaignID,
		Chapter:    closed,
	})
	if done {
		o.publish(ctx, messaging.GameEvent{
			Type:       messaging.EventCampaignCompleted,
			UserID:     userID,
			CampaignID: campaignID,
		})
	}

	return result, nil
}

// ResetProgression rewinds the interaction count and phase within the
// current chapter. Stored narrative is untouched.
func (o *NarrativeOrchestrator) ResetProgression(ctx context.Context, userID uuid.UUID, campaignID string) (*models.ProgressRecord, error) {
	release, err := o.locker.Acquire(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	defer release()

	return o.tracker.Reset(ctx, userID, campaignID)
}

// CancelCampaign moves the user's campaign to cancelled.
func (o *NarrativeOrchestrator) CancelCampaign(ctx context.Context, userID uuid.UUID, campaignID string) error {
	release, err := o.locker.Acquire(ctx, userID, campaignID)
	if err != nil {
		return err
	}
	defer release()

	if err := o.tracker.Cancel(ctx, userID, campaignID); err != nil {
		return err
	}

	o.publish(ctx, messaging.GameEvent{
		Type:       messaging.EventCampaignCancelled,
		UserID:     userID,
		CampaignID: campaignID,
	})
	return nil
}

// GetFullContext returns every stored turn of the campaign in narrative
// order, for session resumption.
func (o *NarrativeOrchestrator) GetFullContext(ctx context.Context, campaignID string) ([]models.NarrativeTurn, error) {
	return o.store.ListByCampaign(ctx, campaignID)
}

// SearchNarratives ranks stored turns of a campaign against a free-text
// query, across current and archive.
func (o *NarrativeOrchestrator) SearchNarratives(ctx context.Context, campaignID, query string, topK int) ([]models.ScoredNarrative, error) {
	if query == "" || topK <= 0 {
		return nil, models.ErrInvalidInput
	}

	embedding, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}

	current, err := o.store.SearchTurns(ctx, embedding, models.CollectionCurrent, campaignID, -1, nil, topK)
	if err != nil {
		return nil, err
	}
	archive, err := o.store.SearchTurns(ctx, embedding, models.CollectionArchive, campaignID, -1, nil, topK)
	if err != nil {
		return nil, err
	}

	return mergeRanked(current, archive, topK), nil
}

// ListCampaigns returns all campaign definitions with the user's progress
// attached where it exists.
func (o *NarrativeOrchestrator) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]models.CampaignWithProgress, error) {
	defs, err := o.campaignRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.CampaignWithProgress, 0, len(defs))
	for _, def := range defs {
		item := models.CampaignWithProgress{Campaign: def}
		if rec, err := o.progressRepo.GetByUserAndCampaign(ctx, userID, def.ID); err == nil {
			item.Progress = rec
		}
		out = append(out, item)
	}
	return out, nil
}

// PurgeNarratives deletes all current and archive turns of a campaign.
// World lore survives.
func (o *NarrativeOrchestrator) PurgeNarratives(ctx context.Context, campaignID string) error {
	return o.store.Purge(ctx, campaignID)
}

// StoreStats reports per-collection document counts.
func (o *NarrativeOrchestrator) StoreStats(ctx context.Context) (*models.StoreStats, error) {
	return o.store.Stats(ctx)
}

// appendUserTurn persists the user's action, suppressing the duplicate a
// retry after oracle failure would otherwise create: the same text at the
// same pending interaction is reused, not re-appended.
func (o *NarrativeOrchestrator) appendUserTurn(ctx context.Context, rec *models.ProgressRecord, interaction int, text string) error {
	turns, err := o.store.ListByChapter(ctx, rec.CampaignID, rec.CurrentChapter, models.CollectionCurrent)
	if err == nil && len(turns) > 0 {
		last := turns[len(turns)-1]
		if last.Role == models.RoleUser && last.Interaction == interaction && last.Text == text {
			return nil
		}
	}
	return o.appendTurn(ctx, rec, interaction, models.RoleUser, text)
}

func (o *NarrativeOrchestrator) appendTurn(ctx context.Context, rec *models.ProgressRecord, interaction int, role models.TurnRole, text string) error {
	turn := &models.NarrativeTurn{
		ID:          uuid.New(),
		CampaignID:  rec.CampaignID,
		UserID:      rec.UserID,
		Chapter:     rec.CurrentChapter,
		Interaction: interaction,
		Role:        role,
		Text:        text,
		Collection:  models.CollectionCurrent,
		CreatedAt:   time.Now().UTC(),
	}

	// A turn without an embedding is invisible to recall but still part of
	// the literal history; embedding failure must not lose the text.
	if embedding, err := o.embedder.Embed(ctx, text); err == nil {
		turn.Embedding = embedding
	} else {
		o.logger.Warn("Turn stored without embedding",
			zap.String("campaignID", rec.CampaignID),
			zap.String("role", string(role)),
			zap.Error(err))
	}

	return o.store.Append(ctx, turn)
}

// archiveThrough runs the closure pipeline for every chapter up to and
// including the just-closed one. A chapter whose archival failed on an
// earlier closure still holds current turns and is picked up by the sweep;
// already-archived chapters reduce to a no-op relocation.
func (o *NarrativeOrchestrator) archiveThrough(ctx context.Context, campaignID string, closed int) {
	for ch := 0; ch <= closed; ch++ {
		if err := o.lore.ExtractAndArchive(ctx, campaignID, ch); err != nil {
			o.logger.Error("Chapter archival failed",
				zap.String("campaignID", campaignID),
				zap.Int("chapter", ch),
				zap.Error(err))
		}
	}
}

func (o *NarrativeOrchestrator) publish(ctx context.Context, event messaging.GameEvent) {
	if o.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := o.events.PublishGameEvent(ctx, event); err != nil {
		o.logger.Warn("Failed to publish game event",
			zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// historyMessages converts the recent window into oracle history messages.
// The pending user turn is already passed as the oracle's UserAction, so a
// trailing copy of it is dropped from the history.
func historyMessages(recent []models.NarrativeTurn, pendingAction string) []ai.Message {
	if n := len(recent); n > 0 && recent[n-1].Role == models.RoleUser && recent[n-1].Text == pendingAction {
		recent = recent[:n-1]
	}

	msgs := make([]ai.Message, 0, len(recent))
	for _, t := range recent {
		msgs = append(msgs, ai.Message{Role: string(t.Role), Content: t.Text})
	}
	return msgs
}

// mergeRanked merges two ranked hit lists by similarity, keeping topK.
func mergeRanked(a, b []models.ScoredNarrative, topK int) []models.ScoredNarrative {
	merged := make([]models.ScoredNarrative, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Similarity >= b[j].Similarity {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
