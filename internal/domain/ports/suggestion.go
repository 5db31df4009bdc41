// Package ports defines interfaces for external service communication.
package ports

import (
	"context"
	"errors"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// Suggestion service failure modes. All three degrade to "no AI suggestion";
// none may propagate as a fatal error into the approval flow.
var (
	ErrSuggestionTimeout  = errors.New("suggestion request timed out")
	ErrServiceUnavailable = errors.New("suggestion service unavailable")
	ErrMalformedResponse  = errors.New("suggestion response malformed")
)

// PresenceRequest asks the reasoning service which NPCs should be present in
// a region scope. The rule evaluator's output is included so the service can
// agree with or override it, along with any Custom rules it must judge.
type PresenceRequest struct {
	Snapshot       *entities.WorldSnapshot
	RuleCandidates entities.CandidateSet
	// CustomRules are the free-text conditions the rule evaluator skipped,
	// keyed by subject ID.
	CustomRules map[string][]string
	// Context is retrieved memory fragments relevant to the scope.
	Context []entities.MemoryFragment
	// Guidance is director free-text guidance.
	Guidance string
}

// DialogueRequest asks the reasoning service for an NPC's response to a
// player line.
type DialogueRequest struct {
	Snapshot   *entities.WorldSnapshot
	NPCID      string
	NPCName    string
	NPCMood    string
	PlayerLine string
	Context    []entities.MemoryFragment
	Guidance   string
	// Feedback is the director's rejection guidance from the previous
	// attempt, empty on the first generation.
	Feedback string
	Attempt  int
}

// DialogueDraft is a generated NPC response with its justification and an
// optional proposed in-world time cost.
type DialogueDraft struct {
	Text            string
	Reasoning       string
	TimeCostMinutes int64
}

// SuggestionClient defines the interface for the external reasoning service.
type SuggestionClient interface {
	// SuggestPresence returns an AI candidate set for a presence query,
	// with a reasoning string per entry.
	SuggestPresence(ctx context.Context, req PresenceRequest) (entities.CandidateSet, error)

	// GenerateDialogue returns a draft NPC response for a dialogue turn.
	GenerateDialogue(ctx context.Context, req DialogueRequest) (DialogueDraft, error)
}
