package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// Resolver normalizes the decision shapes (use rule set, use AI set, edited
// set, take-over, timeout, cancel) into one canonical Resolution.
type Resolver struct{}

// NewResolver creates a new decision resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve normalizes a director decision into a resolution. The resolution
// is stamped with the request's in-world time, not wall time; wall time is
// kept only for audit.
func (r *Resolver) Resolve(req *entities.ApprovalRequest, decision entities.Decision, now time.Time) (*entities.Resolution, error) {
	res := r.base(req, now)
	res.DecidedBy = decision.DecidedBy
	res.TimeCostMinutes = decision.TimeCostMinutes

	switch decision.Kind {
	case entities.DecisionUseRules:
		res.Final = req.RuleCandidates
		res.Source = entities.ResolutionRuleBased

	case entities.DecisionUseAI:
		if req.AICandidates.Unavailable {
			return nil, fmt.Errorf("ai candidate set unavailable: %s", req.AICandidates.Reason)
		}
		res.Final = req.AICandidates
		res.Source = entities.ResolutionAISuggested

	case entities.DecisionEdited:
		res.Final = entities.CandidateSet{
			Source:  entities.SourceDirector,
			Entries: decision.Chosen,
		}
		res.Source = entities.ResolutionHumanOverride

	case entities.DecisionTakeOver:
		res.Final = entities.CandidateSet{
			Source:  entities.SourceDirector,
			Entries: decision.Chosen,
		}
		res.Source = entities.ResolutionHumanOverride
		res.Content = decision.Content

	default:
		return nil, fmt.Errorf("unsupported decision kind %q", decision.Kind)
	}

	return res, nil
}

// ResolveTimeout builds the auto-approval resolution for an expired request:
// the rule-based candidate set, never the AI set (which may be slow or
// absent). Scopes with auto-approval disabled get an empty set so attached
// callers still unblock.
func (r *Resolver) ResolveTimeout(req *entities.ApprovalRequest, now time.Time) *entities.Resolution {
	res := r.base(req, now)
	res.DecidedBy = "system"
	res.Source = entities.ResolutionTimeoutAuto
	if req.AutoApprove {
		res.Final = req.RuleCandidates
	} else {
		res.Final = entities.CandidateSet{Source: entities.SourceRules}
	}
	return res
}

// ResolveCancel builds the degenerate resolution for an explicitly cancelled
// request: an empty candidate set.
func (r *Resolver) ResolveCancel(req *entities.ApprovalRequest, cancelledBy string, now time.Time) *entities.Resolution {
	res := r.base(req, now)
	if cancelledBy == "" {
		cancelledBy = "system"
	}
	res.DecidedBy = cancelledBy
	res.Source = entities.ResolutionCancelled
	res.Final = entities.CandidateSet{Source: entities.SourceDirector}
	return res
}

func (r *Resolver) base(req *entities.ApprovalRequest, now time.Time) *entities.Resolution {
	return &entities.Resolution{
		ID:         uuid.New().String(),
		RequestID:  req.ID,
		Scope:      req.Scope,
		DecidedAt:  req.GameTime,
		ResolvedAt: now,
	}
}
