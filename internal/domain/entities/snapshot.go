package entities

// RosterEntry is an NPC eligible for staging in a region, with the
// activation rule sets that govern its presence.
type RosterEntry struct {
	CharacterID string    `json:"character_id"`
	Name        string    `json:"name"`
	DefaultMood string    `json:"default_mood,omitempty"`
	RuleSets    []RuleSet `json:"rule_sets,omitempty"`
}

// ScopeSettings are the per-scope knobs loaded from world settings. Staging
// TTL is expressed in game minutes; everything else is wall-time or counts.
type ScopeSettings struct {
	StagingTTLMinutes int64 `json:"staging_ttl_minutes" yaml:"staging_ttl_minutes"`
	DeadlineSeconds   int   `json:"deadline_seconds" yaml:"deadline_seconds"`
	AutoApprove       bool  `json:"auto_approve" yaml:"auto_approve"`
	MaxAttempts       int   `json:"max_attempts" yaml:"max_attempts"`
}

// DefaultScopeSettings returns the fallback settings used when world
// settings are missing or fail to load. Staging never fails on settings
// unavailability.
func DefaultScopeSettings() ScopeSettings {
	return ScopeSettings{
		StagingTTLMinutes: 180,
		DeadlineSeconds:   30,
		AutoApprove:       true,
		MaxAttempts:       3,
	}
}

// WorldSnapshot is a read-only view of world state sufficient to evaluate
// activation rules and assemble suggestion context for one scope. The world
// data store assembles it; this core never mutates it.
type WorldSnapshot struct {
	WorldID  string `json:"world_id"`
	RegionID string `json:"region_id"`

	GameTime GameTime `json:"game_time"`
	Calendar Calendar `json:"calendar"`

	// Flags are world/location flags keyed by name.
	Flags map[string]string `json:"flags,omitempty"`
	// PresentEntities marks entities currently in the scope.
	PresentEntities map[string]bool `json:"present_entities,omitempty"`
	// TriggeredEvents marks narrative events that have fired.
	TriggeredEvents map[string]bool `json:"triggered_events,omitempty"`

	Roster []RosterEntry `json:"roster,omitempty"`

	Settings ScopeSettings `json:"settings"`

	// Guidance is director free-text guidance active for this scope.
	Guidance string `json:"guidance,omitempty"`
}

// Scope returns the region scope this snapshot describes.
func (s *WorldSnapshot) Scope() Scope {
	return Scope{Kind: ScopeRegion, WorldID: s.WorldID, ID: s.RegionID}
}
