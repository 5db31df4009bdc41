package entities

import "time"

// StagingSource records how a staging record was created.
type StagingSource string

const (
	StagingRuleBased StagingSource = "rule_based"
	StagingAIBased   StagingSource = "ai_based"
	// StagingDirector marks a director-customized or authored staging.
	StagingDirector StagingSource = "director"
	// StagingPreStaged marks a staging prepared before any player arrived,
	// which skips the approval round-trip.
	StagingPreStaged StagingSource = "prestaged"
	// StagingAutoApproved marks a timeout auto-approval.
	StagingAutoApproved StagingSource = "auto_approved"
)

// StagedNPC is an NPC's approved presence in a region staging.
type StagedNPC struct {
	CharacterID string `json:"character_id"`
	// Name is denormalized for display.
	Name    string `json:"name"`
	Present bool   `json:"present"`
	// Hidden means present but not visible to players.
	Hidden    bool   `json:"hidden"`
	Reasoning string `json:"reasoning,omitempty"`
	Mood      string `json:"mood,omitempty"`
}

// VisibleToPlayers reports whether players should see this NPC.
func (n StagedNPC) VisibleToPlayers() bool {
	return n.Present && !n.Hidden
}

// StagingRecord is a resolved NPC-presence configuration for a region scope.
// One record per scope is current at a time; superseded records are kept as
// history, never deleted.
type StagingRecord struct {
	ID    string `json:"id"`
	Scope Scope  `json:"scope"`

	ResolutionID string      `json:"resolution_id"`
	NPCs         []StagedNPC `json:"npcs"`

	// GameTime is the in-world time the staging was decided at; ValidUntil
	// is GameTime plus the scope's TTL, also in game minutes. Advancing
	// the game clock, not the passage of real time, expires the record.
	GameTime   GameTime `json:"game_time"`
	ValidUntil GameTime `json:"valid_until"`

	ApprovedAt time.Time     `json:"approved_at"`
	ApprovedBy string        `json:"approved_by"`
	Source     StagingSource `json:"source"`

	// Guidance is optional director guidance retained for regeneration.
	Guidance string `json:"guidance,omitempty"`

	// Active marks the current record for its scope.
	Active bool `json:"active"`
}

// Expired reports whether the record is stale at the given game time.
func (r *StagingRecord) Expired(now GameTime) bool {
	return !now.Before(r.ValidUntil)
}

// PresentNPCs returns the NPCs marked present.
func (r *StagingRecord) PresentNPCs() []StagedNPC {
	var out []StagedNPC
	for _, n := range r.NPCs {
		if n.Present {
			out = append(out, n)
		}
	}
	return out
}

// VisibleNPCs returns the NPCs players should see.
func (r *StagingRecord) VisibleNPCs() []StagedNPC {
	var out []StagedNPC
	for _, n := range r.NPCs {
		if n.VisibleToPlayers() {
			out = append(out, n)
		}
	}
	return out
}

// StagedNPCsFromCandidates converts a final candidate set into staged NPCs.
func StagedNPCsFromCandidates(set CandidateSet) []StagedNPC {
	npcs := make([]StagedNPC, 0, len(set.Entries))
	for _, c := range set.Entries {
		npcs = append(npcs, StagedNPC{
			CharacterID: c.SubjectID,
			Name:        c.Name,
			Present:     c.Included,
			Hidden:      c.Hidden,
			Reasoning:   c.Justification,
			Mood:        c.Mood,
		})
	}
	return npcs
}

// StagingSourceForResolution maps a resolution source to a staging source.
func StagingSourceForResolution(src ResolutionSource) StagingSource {
	switch src {
	case ResolutionRuleBased:
		return StagingRuleBased
	case ResolutionAISuggested:
		return StagingAIBased
	case ResolutionTimeoutAuto:
		return StagingAutoApproved
	default:
		return StagingDirector
	}
}
