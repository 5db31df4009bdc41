// Package notify provides a Notifier implementation that writes structured
// log events. It stands in for a session transport in CLI runs; a server
// embedding this core replaces it with its own push channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// LogNotifier implements ports.Notifier on a slog logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// ApprovalRequested logs a newly opened or re-armed request.
func (n *LogNotifier) ApprovalRequested(ctx context.Context, req *entities.ApprovalRequest) {
	n.logger.Info("approval requested",
		"request_id", req.ID,
		"scope", req.Scope.Key(),
		"deadline", req.Deadline,
		"attempt", req.Attempt,
		"rule_candidates", len(req.RuleCandidates.Entries),
		"ai_available", !req.AICandidates.Unavailable)
}

// Pending logs that callers are blocked on a scope.
func (n *LogNotifier) Pending(ctx context.Context, scope entities.Scope) {
	n.logger.Info("decision pending", "scope", scope.Key())
}

// ResolutionApplied logs a committed resolution.
func (n *LogNotifier) ResolutionApplied(ctx context.Context, scope entities.Scope, res *entities.Resolution) {
	n.logger.Info("resolution applied",
		"resolution_id", res.ID,
		"request_id", res.RequestID,
		"scope", scope.Key(),
		"source", string(res.Source),
		"decided_by", res.DecidedBy)
}
