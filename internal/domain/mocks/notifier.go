package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// Notifier is a mock implementation of ports.Notifier that records pushes.
type Notifier struct {
	mu sync.Mutex

	Requested []*entities.ApprovalRequest
	Pendings  []entities.Scope
	Applied   []*entities.Resolution
}

// ApprovalRequested records the request.
func (m *Notifier) ApprovalRequested(ctx context.Context, req *entities.ApprovalRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.Requested = append(m.Requested, &copied)
}

// Pending records the scope.
func (m *Notifier) Pending(ctx context.Context, scope entities.Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pendings = append(m.Pendings, scope)
}

// ResolutionApplied records the resolution.
func (m *Notifier) ResolutionApplied(ctx context.Context, scope entities.Scope, res *entities.Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Applied = append(m.Applied, res)
}

// RequestedCount returns how many approval announcements were recorded.
func (m *Notifier) RequestedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requested)
}
