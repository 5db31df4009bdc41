package entities

import "time"

// ScopeKind identifies what an approval request governs.
type ScopeKind string

const (
	ScopeRegion   ScopeKind = "region"
	ScopeDialogue ScopeKind = "dialogue_turn"
	ScopeTrigger  ScopeKind = "narrative_trigger"
)

// Scope is the unit an approval request governs: a location subdivision, a
// single dialogue turn, or a narrative trigger.
type Scope struct {
	Kind    ScopeKind `json:"kind"`
	WorldID string    `json:"world_id"`
	ID      string    `json:"id"`
}

// Key returns the scope's unique map key.
func (s Scope) Key() string {
	return string(s.Kind) + "/" + s.WorldID + "/" + s.ID
}

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusResolved RequestStatus = "resolved"
)

// ApprovalRequest is an open deferred decision awaiting the director. At most
// one pending request exists per scope; later triggers for the same scope
// attach to the existing request.
type ApprovalRequest struct {
	ID    string `json:"id"`
	Scope Scope  `json:"scope"`

	// CreatedAt and Deadline are wall times, used only for timeout math.
	CreatedAt       time.Time `json:"created_at"`
	Deadline        time.Time `json:"deadline"`
	DeadlineSeconds int       `json:"deadline_seconds"`

	RuleCandidates CandidateSet `json:"rule_candidates"`
	AICandidates   CandidateSet `json:"ai_candidates"`

	// GameTime is the in-world time when the request opened; resolutions
	// are stamped with it.
	GameTime GameTime `json:"game_time"`

	// Guidance is free-text director guidance carried into regeneration.
	Guidance string `json:"guidance,omitempty"`

	// Attempt counts regeneration rounds for dialogue requests.
	Attempt int `json:"attempt,omitempty"`

	// AutoApprove selects whether the timeout sweep resolves this request
	// with the rule-based set or leaves an empty resolution.
	AutoApprove bool `json:"auto_approve"`

	Status RequestStatus `json:"status"`
}

// Expired reports whether the request's deadline has passed.
func (r *ApprovalRequest) Expired(now time.Time) bool {
	return now.After(r.Deadline)
}

// ResolutionSource records how a resolution was produced.
type ResolutionSource string

const (
	ResolutionRuleBased     ResolutionSource = "rule_based"
	ResolutionAISuggested   ResolutionSource = "ai_suggested"
	ResolutionHumanOverride ResolutionSource = "human_override"
	ResolutionTimeoutAuto   ResolutionSource = "timeout_auto_approve"
	ResolutionCancelled     ResolutionSource = "cancelled"
)

// Resolution is the canonical outcome of an approval request. It is persisted
// before any attached caller observes it; crash recovery re-derives effects
// from the stored record.
type Resolution struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Scope     Scope  `json:"scope"`

	Final  CandidateSet     `json:"final"`
	Source ResolutionSource `json:"source"`

	// DecidedBy is a director identity, or "system" for sweeps and cancels.
	DecidedBy string `json:"decided_by"`
	// DecidedAt is the in-world time the decision applies to; cache expiry
	// is computed against it, never against wall time.
	DecidedAt GameTime `json:"decided_at"`
	// ResolvedAt is the wall time of the decision, kept for audit only.
	ResolvedAt time.Time `json:"resolved_at"`

	// Content carries authored or approved text for dialogue resolutions.
	Content string `json:"content,omitempty"`
	// TimeCostMinutes is an approved in-world time advance to apply with
	// this resolution's effects.
	TimeCostMinutes int64 `json:"time_cost_minutes,omitempty"`
}

// DecisionKind is the shape of a director decision.
type DecisionKind string

const (
	DecisionUseRules DecisionKind = "use_rules"
	DecisionUseAI    DecisionKind = "use_ai"
	DecisionEdited   DecisionKind = "edited"
	DecisionTakeOver DecisionKind = "take_over"
	// DecisionReject does not produce a terminal resolution; it feeds the
	// regeneration loop and re-arms the request.
	DecisionReject DecisionKind = "reject"
)

// Decision is a director's answer to an approval request, before
// normalization into a Resolution.
type Decision struct {
	Kind      DecisionKind `json:"kind"`
	DecidedBy string       `json:"decided_by"`

	// Chosen is the edited candidate set for DecisionEdited.
	Chosen []Candidate `json:"chosen,omitempty"`
	// Content is director-authored text for DecisionTakeOver.
	Content string `json:"content,omitempty"`
	// Feedback is rejection guidance for DecisionReject.
	Feedback string `json:"feedback,omitempty"`
	// TimeCostMinutes optionally approves an in-world time advance.
	TimeCostMinutes int64 `json:"time_cost_minutes,omitempty"`
}
