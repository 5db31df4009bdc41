package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
	"github.com/ersonp/gm-core/internal/domain/services"
)

// DialogueHandler handles dialogue turns held for approval.
type DialogueHandler struct {
	dialogue *services.DialogueService
	world    ports.WorldStore
}

// NewDialogueHandler creates a new dialogue handler.
func NewDialogueHandler(dialogue *services.DialogueService, world ports.WorldStore) *DialogueHandler {
	return &DialogueHandler{
		dialogue: dialogue,
		world:    world,
	}
}

// TurnResult contains a terminal dialogue turn and its resolution.
type TurnResult struct {
	Turn       *entities.DialogueTurnRecord
	Resolution *entities.Resolution
}

// StartTurn generates a draft NPC response and blocks until the director
// approves, takes over, or the deadline sweep closes the turn. Cancelling ctx
// releases this caller; the turn stays pending for the director.
func (h *DialogueHandler) StartTurn(ctx context.Context, worldID, regionID, conversationID, npcID, playerLine string) (*TurnResult, error) {
	snapshot, err := h.world.Snapshot(ctx, worldID, regionID)
	if err != nil {
		return nil, fmt.Errorf("loading world snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("region %s/%s: %w", worldID, regionID, entities.ErrNotFound)
	}

	npcName := npcID
	for _, entry := range snapshot.Roster {
		if entry.CharacterID == npcID {
			npcName = entry.Name
			break
		}
	}

	turn, waiter, err := h.dialogue.StartTurn(ctx, snapshot, conversationID, npcID, npcName, playerLine)
	if err != nil {
		return nil, fmt.Errorf("starting dialogue turn: %w", err)
	}
	defer waiter.Cancel()

	select {
	case res := <-waiter.C:
		final, err := h.dialogue.Turn(ctx, turn.ID)
		if err != nil {
			return nil, fmt.Errorf("reading resolved turn: %w", err)
		}
		return &TurnResult{Turn: final, Resolution: res}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Regenerate rejects the pending draft with feedback and produces a new one
// under a fresh deadline. Fails with ErrRegenerationExhausted once the turn's
// attempt budget is spent.
func (h *DialogueHandler) Regenerate(ctx context.Context, worldID, regionID, requestID, feedback string) (*entities.DialogueTurnRecord, error) {
	snapshot, err := h.world.Snapshot(ctx, worldID, regionID)
	if err != nil {
		return nil, fmt.Errorf("loading world snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("region %s/%s: %w", worldID, regionID, entities.ErrNotFound)
	}
	return h.dialogue.Regenerate(ctx, snapshot, requestID, feedback)
}

// Turn returns a dialogue turn record by ID.
func (h *DialogueHandler) Turn(ctx context.Context, id string) (*entities.DialogueTurnRecord, error) {
	return h.dialogue.Turn(ctx, id)
}
