package entities

import "time"

// TurnState is a dialogue turn's position in the regeneration loop.
type TurnState string

const (
	TurnGenerating      TurnState = "generating"
	TurnPendingApproval TurnState = "pending_approval"
	TurnAccepted        TurnState = "accepted"
	TurnRejected        TurnState = "rejected"
	TurnTakenOver       TurnState = "taken_over"
	TurnTimedOut        TurnState = "timed_out"
)

// Terminal reports whether the state ends the turn's loop.
func (s TurnState) Terminal() bool {
	switch s {
	case TurnAccepted, TurnTakenOver, TurnTimedOut:
		return true
	}
	return false
}

// DialogueTurnRecord tracks one conversational turn through the bounded
// regeneration loop. Single-use: no TTL, no cache reuse across turns.
type DialogueTurnRecord struct {
	ID    string `json:"id"`
	Scope Scope  `json:"scope"`

	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id"`
	NPCID          string `json:"npc_id"`
	NPCName        string `json:"npc_name,omitempty"`

	// PlayerLine is what the player said to the NPC this turn.
	PlayerLine string `json:"player_line"`
	// Draft is the latest generated NPC response awaiting approval.
	Draft string `json:"draft,omitempty"`
	// Reasoning is the generator's justification for the draft.
	Reasoning string `json:"reasoning,omitempty"`

	// Attempt counts completed generations, starting at 0. Feedback is the
	// latest rejection guidance, consumed by the next generation.
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	Feedback    string `json:"feedback,omitempty"`

	State        TurnState `json:"state"`
	ResolutionID string    `json:"resolution_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exhausted reports whether the turn has no regeneration attempts left. Once
// exhausted, the director must accept the last draft or take over.
func (r *DialogueTurnRecord) Exhausted() bool {
	return r.Attempt+1 >= r.MaxAttempts
}
