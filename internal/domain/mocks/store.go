package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// DecisionStore is an in-memory mock of ports.DecisionStore. It is safe for
// concurrent use so registry race tests can run against it.
type DecisionStore struct {
	mu sync.Mutex

	// Err, when set, is returned by every operation.
	Err error
	// SaveResolutionErr, when set, fails only resolution writes; used to
	// exercise commit-failure paths.
	SaveResolutionErr error

	Resolutions map[string]*entities.Resolution
	Stagings    map[string][]entities.StagingRecord // scope key -> newest first
	Turns       map[string]*entities.DialogueTurnRecord
	Clocks      map[string]entities.GameTime
	Audit       []entities.AuditEntry
}

// NewDecisionStore creates an empty in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		Resolutions: make(map[string]*entities.Resolution),
		Stagings:    make(map[string][]entities.StagingRecord),
		Turns:       make(map[string]*entities.DialogueTurnRecord),
		Clocks:      make(map[string]entities.GameTime),
	}
}

// EnsureSchema is a no-op.
func (m *DecisionStore) EnsureSchema(ctx context.Context) error { return m.Err }

// Close is a no-op.
func (m *DecisionStore) Close() error { return nil }

// SaveResolution stores a copy of the resolution.
func (m *DecisionStore) SaveResolution(ctx context.Context, res *entities.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.SaveResolutionErr != nil {
		return m.SaveResolutionErr
	}
	copied := *res
	m.Resolutions[res.ID] = &copied
	return nil
}

// FindResolution returns a stored resolution or nil.
func (m *DecisionStore) FindResolution(ctx context.Context, id string) (*entities.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	res, ok := m.Resolutions[id]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

// FindResolutionByRequest returns the resolution for a request ID or nil.
func (m *DecisionStore) FindResolutionByRequest(ctx context.Context, requestID string) (*entities.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, res := range m.Resolutions {
		if res.RequestID == requestID {
			copied := *res
			return &copied, nil
		}
	}
	return nil, nil
}

// SaveStagingRecord prepends the record and demotes the prior current one.
func (m *DecisionStore) SaveStagingRecord(ctx context.Context, record *entities.StagingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := record.Scope.Key()
	if record.Active {
		history := m.Stagings[key]
		for i := range history {
			history[i].Active = false
		}
	}
	m.Stagings[key] = append([]entities.StagingRecord{*record}, m.Stagings[key]...)
	return nil
}

// CurrentStaging returns the active record for a scope, or nil.
func (m *DecisionStore) CurrentStaging(ctx context.Context, scope entities.Scope) (*entities.StagingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, rec := range m.Stagings[scope.Key()] {
		if rec.Active {
			copied := rec
			return &copied, nil
		}
	}
	return nil, nil
}

// StagingHistory returns records for a scope, newest first.
func (m *DecisionStore) StagingHistory(ctx context.Context, scope entities.Scope, limit int) ([]entities.StagingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	history := m.Stagings[scope.Key()]
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	out := make([]entities.StagingRecord, len(history))
	copy(out, history)
	return out, nil
}

// SaveDialogueTurn stores a copy of the turn record.
func (m *DecisionStore) SaveDialogueTurn(ctx context.Context, turn *entities.DialogueTurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	copied := *turn
	m.Turns[turn.ID] = &copied
	return nil
}

// FindDialogueTurn returns a stored turn or nil.
func (m *DecisionStore) FindDialogueTurn(ctx context.Context, id string) (*entities.DialogueTurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	turn, ok := m.Turns[id]
	if !ok {
		return nil, nil
	}
	copied := *turn
	return &copied, nil
}

// FindDialogueTurnByRequest returns the turn attached to a request or nil.
func (m *DecisionStore) FindDialogueTurnByRequest(ctx context.Context, requestID string) (*entities.DialogueTurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, turn := range m.Turns {
		if turn.RequestID == requestID {
			copied := *turn
			return &copied, nil
		}
	}
	return nil, nil
}

// GameTime returns the stored clock value, or the epoch.
func (m *DecisionStore) GameTime(ctx context.Context, worldID string) (entities.GameTime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Clocks[worldID], nil
}

// SetGameTime stores an absolute clock value.
func (m *DecisionStore) SetGameTime(ctx context.Context, worldID string, t entities.GameTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Clocks[worldID] = t
	return nil
}

// AdvanceGameTime advances the clock and returns the new value.
func (m *DecisionStore) AdvanceGameTime(ctx context.Context, worldID string, minutes int64, reason string) (entities.GameTime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Clocks[worldID] = m.Clocks[worldID].Add(minutes)
	return m.Clocks[worldID], nil
}

// LogDecision appends an audit entry.
func (m *DecisionStore) LogDecision(ctx context.Context, action string, requestID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		RequestID: requestID,
		Details:   details,
	})
	return nil
}

// FindAuditLog returns audit entries for a request.
func (m *DecisionStore) FindAuditLog(ctx context.Context, requestID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for _, e := range m.Audit {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}
