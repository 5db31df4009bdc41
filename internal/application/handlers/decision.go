package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
	"github.com/ersonp/gm-core/internal/domain/services"
)

// DecisionHandler handles the director's side of pending approvals.
type DecisionHandler struct {
	registry *services.Registry
	store    ports.DecisionStore
}

// NewDecisionHandler creates a new decision handler.
func NewDecisionHandler(registry *services.Registry, store ports.DecisionStore) *DecisionHandler {
	return &DecisionHandler{
		registry: registry,
		store:    store,
	}
}

// Decide resolves a pending request with the director's decision and returns
// the committed resolution. Deciding a request the sweep already resolved
// returns that resolution with no error.
func (h *DecisionHandler) Decide(ctx context.Context, requestID string, decision entities.Decision) (*entities.Resolution, error) {
	res, err := h.registry.Decide(ctx, requestID, decision)
	if err != nil {
		return nil, fmt.Errorf("deciding request: %w", err)
	}
	return res, nil
}

// Cancel closes a pending request with an empty resolution.
func (h *DecisionHandler) Cancel(ctx context.Context, requestID, cancelledBy string) (*entities.Resolution, error) {
	res, err := h.registry.Cancel(ctx, requestID, cancelledBy)
	if err != nil {
		return nil, fmt.Errorf("cancelling request: %w", err)
	}
	return res, nil
}

// Pending returns the requests currently awaiting a decision.
func (h *DecisionHandler) Pending() []*entities.ApprovalRequest {
	return h.registry.Pending()
}

// Request returns a tracked request by ID.
func (h *DecisionHandler) Request(requestID string) (*entities.ApprovalRequest, error) {
	return h.registry.Request(requestID)
}

// Resolution returns the persisted resolution for a request, or nil if the
// request has not resolved.
func (h *DecisionHandler) Resolution(ctx context.Context, requestID string) (*entities.Resolution, error) {
	return h.store.FindResolutionByRequest(ctx, requestID)
}

// AuditLog returns the decision audit trail for a request.
func (h *DecisionHandler) AuditLog(ctx context.Context, requestID string) ([]entities.AuditEntry, error) {
	return h.store.FindAuditLog(ctx, requestID)
}
