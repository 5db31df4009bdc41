package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// DialogueService runs the dialogue-approval instantiation of the deferred
// decision engine: generate an NPC response, hold it for director approval,
// and bound the reject/regenerate cycle. A turn never loops past its attempt
// budget; exhaustion forces the director to accept the last draft or take
// over.
type DialogueService struct {
	store     ports.DecisionStore
	registry  *Registry
	suggester *SuggestionService
	notifier  ports.Notifier
	logger    *slog.Logger
}

// NewDialogueService creates a new dialogue service. notifier may be nil.
func NewDialogueService(store ports.DecisionStore, registry *Registry, suggester *SuggestionService, notifier ports.Notifier, logger *slog.Logger) *DialogueService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DialogueService{
		store:     store,
		registry:  registry,
		suggester: suggester,
		notifier:  notifier,
		logger:    logger,
	}
}

// StartTurn generates the first draft for a dialogue turn and opens its
// approval request. The returned waiter completes when the turn reaches a
// terminal state; the caller selects on it alongside its own context.
// Generation failure still opens the request with an unavailable AI set so
// the director can take over.
func (d *DialogueService) StartTurn(ctx context.Context, snapshot *entities.WorldSnapshot, conversationID, npcID, npcName, playerLine string) (*entities.DialogueTurnRecord, *Waiter, error) {
	now := time.Now()
	turn := &entities.DialogueTurnRecord{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		NPCID:          npcID,
		NPCName:        npcName,
		PlayerLine:     playerLine,
		Attempt:        0,
		MaxAttempts:    snapshot.Settings.MaxAttempts,
		State:          entities.TurnGenerating,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	turn.Scope = entities.Scope{Kind: entities.ScopeDialogue, WorldID: snapshot.WorldID, ID: turn.ID}
	if err := d.store.SaveDialogueTurn(ctx, turn); err != nil {
		return nil, nil, fmt.Errorf("saving dialogue turn: %w", err)
	}

	aiSet := d.generate(ctx, snapshot, turn)

	req := &entities.ApprovalRequest{
		ID:              uuid.New().String(),
		Scope:           turn.Scope,
		DeadlineSeconds: snapshot.Settings.DeadlineSeconds,
		RuleCandidates:  entities.CandidateSet{Source: entities.SourceRules},
		AICandidates:    aiSet,
		GameTime:        snapshot.GameTime,
		Guidance:        snapshot.Guidance,
		AutoApprove:     snapshot.Settings.AutoApprove,
	}
	applier := &dialogueApplier{service: d, turnID: turn.ID}

	// The turn is linked and persisted before the request opens, so no
	// resolution can observe it without its request ID or overwrite a
	// terminal state written by the commit.
	turn.RequestID = req.ID
	turn.State = entities.TurnPendingApproval
	turn.UpdatedAt = time.Now()
	if err := d.store.SaveDialogueTurn(ctx, turn); err != nil {
		return nil, nil, fmt.Errorf("saving dialogue turn: %w", err)
	}

	if err := d.registry.Open(ctx, req, applier); err != nil {
		return nil, nil, fmt.Errorf("opening dialogue approval request: %w", err)
	}
	waiter, err := d.registry.Attach(req.ID)
	if err != nil {
		return nil, nil, err
	}

	if d.notifier != nil {
		d.notifier.Pending(ctx, turn.Scope)
	}
	return turn, waiter, nil
}

// Regenerate applies director feedback to a pending turn: the draft is
// regenerated with the feedback and the request re-armed under a fresh
// deadline. Fails with ErrRegenerationExhausted once the attempt budget is
// spent; the request then stays pending for an accept-last or take-over
// decision.
func (d *DialogueService) Regenerate(ctx context.Context, snapshot *entities.WorldSnapshot, requestID, feedback string) (*entities.DialogueTurnRecord, error) {
	turn, err := d.store.FindDialogueTurnByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("finding dialogue turn: %w", err)
	}
	if turn == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, entities.ErrNotFound)
	}
	if turn.State.Terminal() {
		return nil, fmt.Errorf("request %s: %w", requestID, entities.ErrAlreadyResolved)
	}
	if turn.Exhausted() {
		return nil, fmt.Errorf("turn %s after %d attempts: %w", turn.ID, turn.MaxAttempts, entities.ErrRegenerationExhausted)
	}

	turn.State = entities.TurnGenerating
	turn.Feedback = feedback
	turn.Attempt++

	aiSet := d.generate(ctx, snapshot, turn)

	turn.State = entities.TurnPendingApproval
	turn.UpdatedAt = time.Now()

	// The turn write happens under the request's lock together with the
	// re-arm: a request that resolved mid-generation keeps its terminal
	// turn state and this call fails with ErrAlreadyResolved.
	err = d.registry.Rearm(ctx, requestID, aiSet, feedback, func(ctx context.Context) error {
		return d.store.SaveDialogueTurn(ctx, turn)
	})
	if err != nil {
		return nil, err
	}
	if err := d.store.LogDecision(ctx, "dialogue_regenerate", requestID, map[string]any{
		"turn": turn.ID, "attempt": turn.Attempt, "feedback": feedback,
	}); err != nil {
		d.logger.Warn("audit log write failed", "error", err)
	}
	return turn, nil
}

// Turn returns a dialogue turn record by ID.
func (d *DialogueService) Turn(ctx context.Context, id string) (*entities.DialogueTurnRecord, error) {
	return d.store.FindDialogueTurn(ctx, id)
}

// generate produces a draft for the turn and returns the AI candidate set
// presented to the director. Failures degrade to an unavailable set.
func (d *DialogueService) generate(ctx context.Context, snapshot *entities.WorldSnapshot, turn *entities.DialogueTurnRecord) entities.CandidateSet {
	draft, err := d.suggester.GenerateDialogue(ctx, snapshot, turn)
	if err != nil {
		d.logger.Warn("dialogue generation failed",
			"turn", turn.ID, "attempt", turn.Attempt, "error", err)
		turn.Draft = ""
		turn.Reasoning = ""
		return entities.UnavailableSet(entities.SourceAI, unavailabilityReason(err))
	}

	turn.Draft = draft.Text
	turn.Reasoning = draft.Reasoning
	return entities.CandidateSet{
		Source: entities.SourceAI,
		Entries: []entities.Candidate{{
			SubjectID:     turn.NPCID,
			Name:          turn.NPCName,
			Included:      true,
			Justification: draft.Reasoning,
		}},
	}
}

// dialogueApplier commits terminal resolutions for one dialogue turn.
type dialogueApplier struct {
	service *DialogueService
	turnID  string
}

// Commit durably persists the resolution, then moves the turn to its
// terminal state: AI-suggested or rule-based approval accepts the last
// draft, human override is a take-over, timeout and cancel close the turn
// with no content.
func (a *dialogueApplier) Commit(ctx context.Context, res *entities.Resolution) error {
	d := a.service
	turn, err := d.store.FindDialogueTurn(ctx, a.turnID)
	if err != nil {
		return fmt.Errorf("finding dialogue turn: %w", err)
	}
	if turn == nil {
		return fmt.Errorf("dialogue turn %s: %w", a.turnID, entities.ErrNotFound)
	}

	// The clock may have advanced while the request was pending; the
	// decision is stamped with the live game time when readable.
	if now, err := d.store.GameTime(ctx, res.Scope.WorldID); err == nil {
		res.DecidedAt = now
	}

	switch res.Source {
	case entities.ResolutionAISuggested, entities.ResolutionRuleBased:
		turn.State = entities.TurnAccepted
		if res.Content == "" {
			res.Content = turn.Draft
		}
	case entities.ResolutionHumanOverride:
		turn.State = entities.TurnTakenOver
		if res.Content != "" {
			turn.Draft = res.Content
		}
	default: // timeout, cancel
		turn.State = entities.TurnTimedOut
	}

	if err := d.store.SaveResolution(ctx, res); err != nil {
		return fmt.Errorf("saving resolution: %w", err)
	}

	turn.ResolutionID = res.ID
	turn.UpdatedAt = time.Now()
	if err := d.store.SaveDialogueTurn(ctx, turn); err != nil {
		return fmt.Errorf("saving dialogue turn: %w", err)
	}

	if err := d.store.LogDecision(ctx, "dialogue_"+string(res.Source), res.RequestID, map[string]any{
		"turn": turn.ID, "state": string(turn.State), "by": res.DecidedBy,
	}); err != nil {
		d.logger.Warn("audit log write failed", "error", err)
	}
	return nil
}
