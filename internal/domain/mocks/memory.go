package mocks

import (
	"context"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// MemoryStore is a mock implementation of ports.MemoryStore.
type MemoryStore struct {
	Fragments []entities.MemoryFragment
	Err       error
}

// Save stores the fragment in memory.
func (m *MemoryStore) Save(ctx context.Context, fragment entities.MemoryFragment) error {
	if m.Err != nil {
		return m.Err
	}
	m.Fragments = append(m.Fragments, fragment)
	return nil
}

// SaveBatch stores multiple fragments.
func (m *MemoryStore) SaveBatch(ctx context.Context, fragments []entities.MemoryFragment) error {
	if m.Err != nil {
		return m.Err
	}
	m.Fragments = append(m.Fragments, fragments...)
	return nil
}

// Search returns the configured fragments up to limit.
func (m *MemoryStore) Search(ctx context.Context, embedding []float32, limit int) ([]entities.MemoryFragment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > len(m.Fragments) {
		limit = len(m.Fragments)
	}
	return m.Fragments[:limit], nil
}

// SearchByKind returns fragments filtered by kind.
func (m *MemoryStore) SearchByKind(ctx context.Context, embedding []float32, kind entities.MemoryKind, limit int) ([]entities.MemoryFragment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.MemoryFragment
	for _, f := range m.Fragments {
		if f.Kind == kind {
			out = append(out, f)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Delete removes a fragment by ID.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	for i, f := range m.Fragments {
		if f.ID == id {
			m.Fragments = append(m.Fragments[:i], m.Fragments[i+1:]...)
			return nil
		}
	}
	return nil
}
