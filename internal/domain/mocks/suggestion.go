// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"time"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// SuggestionClient is a mock implementation of ports.SuggestionClient.
type SuggestionClient struct {
	// SuggestPresence return values
	PresenceSet entities.CandidateSet
	PresenceErr error

	// GenerateDialogue return values
	Draft       ports.DialogueDraft
	DialogueErr error

	// Delay simulates a slow reasoning service; the call honors ctx
	// cancellation while sleeping.
	Delay time.Duration

	// Call records
	PresenceCalls []ports.PresenceRequest
	DialogueCalls []ports.DialogueRequest
}

// SuggestPresence returns the configured set or error.
func (m *SuggestionClient) SuggestPresence(ctx context.Context, req ports.PresenceRequest) (entities.CandidateSet, error) {
	m.PresenceCalls = append(m.PresenceCalls, req)
	if err := m.sleep(ctx); err != nil {
		return entities.CandidateSet{}, err
	}
	if m.PresenceErr != nil {
		return entities.CandidateSet{}, m.PresenceErr
	}
	return m.PresenceSet, nil
}

// GenerateDialogue returns the configured draft or error.
func (m *SuggestionClient) GenerateDialogue(ctx context.Context, req ports.DialogueRequest) (ports.DialogueDraft, error) {
	m.DialogueCalls = append(m.DialogueCalls, req)
	if err := m.sleep(ctx); err != nil {
		return ports.DialogueDraft{}, err
	}
	if m.DialogueErr != nil {
		return ports.DialogueDraft{}, m.DialogueErr
	}
	return m.Draft, nil
}

func (m *SuggestionClient) sleep(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
