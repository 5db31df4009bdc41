package services

import (
	"context"
	"errors"
	"time"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// DefaultSuggestionTimeout bounds every call to the reasoning service. A
// hang becomes "no AI suggestion available"; it never blocks an approval
// request from opening.
const DefaultSuggestionTimeout = 20 * time.Second

// DefaultContextLimit is how many memory fragments are retrieved for the
// suggestion context bundle.
const DefaultContextLimit = 8

// SuggestionService wraps the external reasoning service. It runs
// independently of the rule evaluator and returns a second,
// differently-justified candidate set for the same query. All failure modes
// degrade to an unavailable set with a reason; the flow proceeds rule-only.
type SuggestionService struct {
	client  ports.SuggestionClient
	context *ContextBuilder
	timeout time.Duration
}

// NewSuggestionService creates a new suggestion service. contextBuilder may
// be nil when no memory store is configured.
func NewSuggestionService(client ports.SuggestionClient, contextBuilder *ContextBuilder, timeout time.Duration) *SuggestionService {
	if timeout <= 0 {
		timeout = DefaultSuggestionTimeout
	}
	return &SuggestionService{
		client:  client,
		context: contextBuilder,
		timeout: timeout,
	}
}

// SuggestPresence asks the reasoning service for a presence candidate set.
// Never returns an error: degraded results carry Unavailable plus a reason.
func (s *SuggestionService) SuggestPresence(ctx context.Context, snapshot *entities.WorldSnapshot, rules EvaluationResult) entities.CandidateSet {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := ports.PresenceRequest{
		Snapshot:       snapshot,
		RuleCandidates: rules.Candidates,
		CustomRules:    rules.CustomRules,
		Guidance:       snapshot.Guidance,
		Context:        s.buildContext(ctx, snapshot.WorldID, "npc presence in region "+snapshot.RegionID),
	}

	set, err := s.client.SuggestPresence(ctx, req)
	if err != nil {
		return entities.UnavailableSet(entities.SourceAI, unavailabilityReason(err))
	}
	set.Source = entities.SourceAI
	return set
}

// GenerateDialogue asks the reasoning service for an NPC response draft.
// Unlike presence suggestions the draft text is the payload, so the error is
// returned; callers still open the approval request with an unavailable AI
// set so the director can take over.
func (s *SuggestionService) GenerateDialogue(ctx context.Context, snapshot *entities.WorldSnapshot, turn *entities.DialogueTurnRecord) (ports.DialogueDraft, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := ports.DialogueRequest{
		Snapshot:   snapshot,
		NPCID:      turn.NPCID,
		NPCName:    turn.NPCName,
		PlayerLine: turn.PlayerLine,
		Guidance:   snapshot.Guidance,
		Feedback:   turn.Feedback,
		Attempt:    turn.Attempt,
		Context:    s.buildContext(ctx, snapshot.WorldID, turn.PlayerLine),
	}

	draft, err := s.client.GenerateDialogue(ctx, req)
	if err != nil {
		return ports.DialogueDraft{}, err
	}
	return draft, nil
}

// buildContext retrieves memory fragments for the prompt bundle. Retrieval
// failure degrades to an empty bundle.
func (s *SuggestionService) buildContext(ctx context.Context, worldID, query string) []entities.MemoryFragment {
	if s.context == nil {
		return nil
	}
	fragments, err := s.context.Build(ctx, worldID, query)
	if err != nil {
		return nil
	}
	return fragments
}

// unavailabilityReason maps a suggestion failure to the director-facing
// partial-set reason.
func unavailabilityReason(err error) string {
	switch {
	case errors.Is(err, ports.ErrSuggestionTimeout), errors.Is(err, context.DeadlineExceeded):
		return "AI suggestion timed out"
	case errors.Is(err, ports.ErrMalformedResponse):
		return "AI suggestion malformed"
	default:
		return "AI suggestion unavailable"
	}
}

// ContextBuilder assembles the suggestion context bundle by semantic search
// over stored memory fragments.
type ContextBuilder struct {
	embedder ports.Embedder
	memory   ports.MemoryStore
	limit    int
}

// NewContextBuilder creates a new context builder.
func NewContextBuilder(embedder ports.Embedder, memory ports.MemoryStore, limit int) *ContextBuilder {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	return &ContextBuilder{
		embedder: embedder,
		memory:   memory,
		limit:    limit,
	}
}

// Build retrieves the fragments most relevant to the query.
func (b *ContextBuilder) Build(ctx context.Context, worldID, query string) ([]entities.MemoryFragment, error) {
	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	fragments, err := b.memory.Search(ctx, embedding, b.limit)
	if err != nil {
		return nil, err
	}

	// The memory store may hold several worlds; keep only this one's.
	out := fragments[:0]
	for _, f := range fragments {
		if f.WorldID == worldID {
			out = append(out, f)
		}
	}
	return out, nil
}
