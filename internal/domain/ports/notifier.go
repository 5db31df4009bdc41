package ports

import (
	"context"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// Notifier defines the push boundary to the presentation/transport layer.
// The transport serializes these into its own wire format and routes
// director-only messages to the director role. Implementations must not
// block the approval flow.
type Notifier interface {
	// ApprovalRequested announces a newly opened (or re-armed) request to
	// the director, with both candidate sets and the deadline.
	ApprovalRequested(ctx context.Context, req *entities.ApprovalRequest)

	// Pending tells players blocked on a scope that a decision is open.
	Pending(ctx context.Context, scope entities.Scope)

	// ResolutionApplied announces a resolution to everyone in the scope.
	ResolutionApplied(ctx context.Context, scope entities.Scope, res *entities.Resolution)
}
