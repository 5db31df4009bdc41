// Package worldfile provides a WorldStore implementation backed by YAML
// snapshot files on disk. It serves CLI runs and tests; a game server
// embedding this core supplies its own world data store instead.
package worldfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// Store implements ports.WorldStore on a directory of snapshot files, one
// per world/region pair, named <world>__<region>.yaml.
type Store struct {
	mu sync.Mutex

	dir      string
	clock    ports.DecisionStore
	calendar entities.Calendar
	settings entities.ScopeSettings
}

// snapshotFile is the on-disk snapshot shape. Clock and settings come from
// elsewhere; the file holds the authored world state.
type snapshotFile struct {
	Flags           map[string]string      `yaml:"flags,omitempty"`
	PresentEntities map[string]bool        `yaml:"present_entities,omitempty"`
	TriggeredEvents map[string]bool        `yaml:"triggered_events,omitempty"`
	Roster          []entities.RosterEntry `yaml:"roster,omitempty"`
	Guidance        string                 `yaml:"guidance,omitempty"`
}

// NewStore creates a file-backed world store. The game clock is read from
// the decision store so snapshots always carry the live in-world time.
func NewStore(dir string, clock ports.DecisionStore, calendar entities.Calendar, settings entities.ScopeSettings) *Store {
	return &Store{
		dir:      dir,
		clock:    clock,
		calendar: calendar,
		settings: settings,
	}
}

// Snapshot assembles the region's world snapshot from its file plus the
// live game clock.
func (s *Store) Snapshot(ctx context.Context, worldID, regionID string) (*entities.WorldSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readFile(worldID, regionID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	now, err := s.clock.GameTime(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("reading game clock: %w", err)
	}

	return &entities.WorldSnapshot{
		WorldID:         worldID,
		RegionID:        regionID,
		GameTime:        now,
		Calendar:        s.calendar,
		Flags:           file.Flags,
		PresentEntities: file.PresentEntities,
		TriggeredEvents: file.TriggeredEvents,
		Roster:          file.Roster,
		Settings:        s.settings,
		Guidance:        file.Guidance,
	}, nil
}

// ApplyResolutionEffects writes the resolution's presence outcome back to
// the region's snapshot file and applies any approved time cost to the
// world clock. Re-applying the same resolution is a no-op write, so
// delivery is idempotent.
func (s *Store) ApplyResolutionEffects(ctx context.Context, res *entities.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Scope.Kind == entities.ScopeRegion {
		file, err := s.readFile(res.Scope.WorldID, res.Scope.ID)
		if err != nil {
			return err
		}
		if file == nil {
			file = &snapshotFile{}
		}
		if file.PresentEntities == nil {
			file.PresentEntities = make(map[string]bool)
		}
		for _, c := range res.Final.Entries {
			file.PresentEntities[c.SubjectID] = c.Included
		}
		if err := s.writeFile(res.Scope.WorldID, res.Scope.ID, file); err != nil {
			return err
		}
	}

	if res.TimeCostMinutes > 0 {
		reason := "resolution " + res.ID
		if _, err := s.clock.AdvanceGameTime(ctx, res.Scope.WorldID, res.TimeCostMinutes, reason); err != nil {
			return fmt.Errorf("applying time cost: %w", err)
		}
	}
	return nil
}

// WriteSnapshot authors or replaces a region's snapshot file.
func (s *Store) WriteSnapshot(worldID, regionID string, flags map[string]string, roster []entities.RosterEntry, guidance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(worldID, regionID, &snapshotFile{
		Flags:    flags,
		Roster:   roster,
		Guidance: guidance,
	})
}

func (s *Store) path(worldID, regionID string) string {
	return filepath.Join(s.dir, worldID+"__"+regionID+".yaml")
}

func (s *Store) readFile(worldID, regionID string) (*snapshotFile, error) {
	data, err := os.ReadFile(s.path(worldID, regionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}
	return &file, nil
}

func (s *Store) writeFile(worldID, regionID string, file *snapshotFile) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(s.path(worldID, regionID), data, 0644); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	return nil
}
