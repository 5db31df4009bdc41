package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagingRecord_Expired(t *testing.T) {
	record := &StagingRecord{
		GameTime:   100,
		ValidUntil: 280,
	}

	assert.False(t, record.Expired(100))
	assert.False(t, record.Expired(279))
	// Expiry is inclusive of the valid-until minute.
	assert.True(t, record.Expired(280))
	assert.True(t, record.Expired(1000))
}

func TestStagingRecord_VisibleNPCs(t *testing.T) {
	record := &StagingRecord{
		NPCs: []StagedNPC{
			{CharacterID: "a", Present: true},
			{CharacterID: "b", Present: true, Hidden: true},
			{CharacterID: "c", Present: false},
		},
	}

	visible := record.VisibleNPCs()
	assert.Len(t, visible, 1)
	assert.Equal(t, "a", visible[0].CharacterID)

	present := record.PresentNPCs()
	assert.Len(t, present, 2)
}

func TestStagedNPCsFromCandidates(t *testing.T) {
	set := CandidateSet{
		Source: SourceDirector,
		Entries: []Candidate{
			{SubjectID: "npc-1", Name: "Mira", Included: true, Mood: "wary", Justification: "market day"},
			{SubjectID: "npc-2", Name: "Tolen", Included: false},
		},
	}

	npcs := StagedNPCsFromCandidates(set)
	assert.Len(t, npcs, 2)
	assert.Equal(t, "npc-1", npcs[0].CharacterID)
	assert.Equal(t, "Mira", npcs[0].Name)
	assert.True(t, npcs[0].Present)
	assert.Equal(t, "wary", npcs[0].Mood)
	assert.False(t, npcs[1].Present)
}

func TestStagingSourceForResolution(t *testing.T) {
	tests := []struct {
		name     string
		source   ResolutionSource
		expected StagingSource
	}{
		{name: "rule based", source: ResolutionRuleBased, expected: StagingRuleBased},
		{name: "ai suggested", source: ResolutionAISuggested, expected: StagingAIBased},
		{name: "timeout", source: ResolutionTimeoutAuto, expected: StagingAutoApproved},
		{name: "human override", source: ResolutionHumanOverride, expected: StagingDirector},
		{name: "cancelled", source: ResolutionCancelled, expected: StagingDirector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StagingSourceForResolution(tt.source))
		})
	}
}

func TestDialogueTurnRecord_Exhausted(t *testing.T) {
	turn := &DialogueTurnRecord{Attempt: 0, MaxAttempts: 3}
	assert.False(t, turn.Exhausted())

	turn.Attempt = 1
	assert.False(t, turn.Exhausted())

	// The third generation is the last one allowed.
	turn.Attempt = 2
	assert.True(t, turn.Exhausted())
}

func TestTurnState_Terminal(t *testing.T) {
	assert.True(t, TurnAccepted.Terminal())
	assert.True(t, TurnTakenOver.Terminal())
	assert.True(t, TurnTimedOut.Terminal())
	assert.False(t, TurnGenerating.Terminal())
	assert.False(t, TurnPendingApproval.Terminal())
	assert.False(t, TurnRejected.Terminal())
}
