package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// MemoryHandler handles recording and recalling memory fragments.
type MemoryHandler struct {
	embedder ports.Embedder
	memory   ports.MemoryStore
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(embedder ports.Embedder, memory ports.MemoryStore) *MemoryHandler {
	return &MemoryHandler{
		embedder: embedder,
		memory:   memory,
	}
}

// Record embeds and stores a memory fragment, returning its ID.
func (h *MemoryHandler) Record(ctx context.Context, fragment entities.MemoryFragment) (string, error) {
	if fragment.Text == "" {
		return "", fmt.Errorf("memory fragment text is empty")
	}
	if fragment.ID == "" {
		fragment.ID = uuid.New().String()
	}
	if fragment.CreatedAt.IsZero() {
		fragment.CreatedAt = time.Now()
	}

	embedding, err := h.embedder.Embed(ctx, fragment.Text)
	if err != nil {
		return "", fmt.Errorf("embedding fragment: %w", err)
	}
	fragment.Embedding = embedding

	if err := h.memory.Save(ctx, fragment); err != nil {
		return "", fmt.Errorf("saving fragment: %w", err)
	}
	return fragment.ID, nil
}

// Search returns fragments semantically similar to the query, restricted to
// one world.
func (h *MemoryHandler) Search(ctx context.Context, worldID, query string, limit int) ([]entities.MemoryFragment, error) {
	embedding, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Over-fetch so the world filter still fills the limit.
	fragments, err := h.memory.Search(ctx, embedding, limit*2)
	if err != nil {
		return nil, fmt.Errorf("searching memory: %w", err)
	}

	out := make([]entities.MemoryFragment, 0, limit)
	for _, f := range fragments {
		if f.WorldID != worldID {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SearchByKind returns world-scoped fragments of one kind.
func (h *MemoryHandler) SearchByKind(ctx context.Context, worldID, query string, kind entities.MemoryKind, limit int) ([]entities.MemoryFragment, error) {
	embedding, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	fragments, err := h.memory.SearchByKind(ctx, embedding, kind, limit*2)
	if err != nil {
		return nil, fmt.Errorf("searching memory: %w", err)
	}

	out := make([]entities.MemoryFragment, 0, limit)
	for _, f := range fragments {
		if f.WorldID != worldID {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Forget removes a fragment by ID.
func (h *MemoryHandler) Forget(ctx context.Context, id string) error {
	if err := h.memory.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting fragment: %w", err)
	}
	return nil
}
