package ports

import (
	"context"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// WorldStore defines the boundary to the external world data store. The
// store owns durability and querying of world state; this core treats it as
// a capability, not a schema.
type WorldStore interface {
	// Snapshot assembles a read-only view of world state for one region
	// scope: clock, calendar, flags, present entities, triggered events,
	// NPC roster with activation rules, and per-scope settings.
	Snapshot(ctx context.Context, worldID, regionID string) (*entities.WorldSnapshot, error)

	// ApplyResolutionEffects applies an approved resolution's effects to
	// world state (presence changes, approved time cost). A failure here is
	// retried by the caller using the persisted resolution; the resolution
	// itself already stands.
	ApplyResolutionEffects(ctx context.Context, res *entities.Resolution) error
}
