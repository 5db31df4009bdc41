package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// WorldStore is a mock implementation of ports.WorldStore.
type WorldStore struct {
	mu sync.Mutex

	Snapshots map[string]*entities.WorldSnapshot // key worldID/regionID
	Err       error

	// ApplyErr fails ApplyResolutionEffects. When ApplyFailures is
	// positive only that many calls fail, for retry tests; zero means
	// every call fails while ApplyErr is set.
	ApplyErr      error
	ApplyFailures int

	Applied []*entities.Resolution
}

// NewWorldStore creates an empty mock world store.
func NewWorldStore() *WorldStore {
	return &WorldStore{Snapshots: make(map[string]*entities.WorldSnapshot)}
}

// SetSnapshot registers the snapshot served for its world/region.
func (m *WorldStore) SetSnapshot(snap *entities.WorldSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots[snap.WorldID+"/"+snap.RegionID] = snap
}

// Snapshot returns the configured snapshot for the region.
func (m *WorldStore) Snapshot(ctx context.Context, worldID, regionID string) (*entities.WorldSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	snap, ok := m.Snapshots[worldID+"/"+regionID]
	if !ok {
		return nil, nil
	}
	copied := *snap
	return &copied, nil
}

// ApplyResolutionEffects records the resolution, honoring configured
// failures first.
func (m *WorldStore) ApplyResolutionEffects(ctx context.Context, res *entities.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyErr != nil {
		err := m.ApplyErr
		if m.ApplyFailures > 0 {
			m.ApplyFailures--
			if m.ApplyFailures == 0 {
				m.ApplyErr = nil
			}
		}
		return err
	}
	m.Applied = append(m.Applied, res)
	return nil
}
