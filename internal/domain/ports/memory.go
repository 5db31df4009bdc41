package ports

import (
	"context"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// MemoryStore defines the interface for the semantic memory index holding
// conversation history, lore, and event fragments.
type MemoryStore interface {
	// Save stores a fragment with its embedding.
	Save(ctx context.Context, fragment entities.MemoryFragment) error

	// SaveBatch stores multiple fragments.
	SaveBatch(ctx context.Context, fragments []entities.MemoryFragment) error

	// Search returns the fragments most similar to the embedding.
	Search(ctx context.Context, embedding []float32, limit int) ([]entities.MemoryFragment, error)

	// SearchByKind returns similar fragments filtered by kind.
	SearchByKind(ctx context.Context, embedding []float32, kind entities.MemoryKind, limit int) ([]entities.MemoryFragment, error)

	// Delete removes a fragment by ID.
	Delete(ctx context.Context, id string) error
}
