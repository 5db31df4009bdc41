package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
	"github.com/ersonp/gm-core/internal/domain/services"
)

// applyRetries bounds how often effect application is retried before the
// failure is reported to the caller.
const applyRetries = 3

// retryBackoff is swappable so tests do not sleep.
var retryBackoff = 100 * time.Millisecond

// StagingHandler handles region entry and staging queries.
type StagingHandler struct {
	staging *services.StagingService
	world   ports.WorldStore
	logger  *slog.Logger
}

// NewStagingHandler creates a new staging handler.
func NewStagingHandler(staging *services.StagingService, world ports.WorldStore, logger *slog.Logger) *StagingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StagingHandler{
		staging: staging,
		world:   world,
		logger:  logger,
	}
}

// EnterResult contains the outcome of a region entry.
type EnterResult struct {
	Record *entities.StagingRecord
	// ApplyErr is set when the staging resolved but its effects could not
	// be delivered to the world after retries. The record is still valid;
	// the caller decides whether to retry delivery.
	ApplyErr error
}

// EnterRegion resolves NPC presence for a player entering a region. A live
// staging record answers immediately; otherwise the call blocks on director
// approval. The resulting resolution's effects are delivered to the world
// store, which treats delivery as idempotent per resolution ID, so a repeat
// entry against a cached record is harmless.
func (h *StagingHandler) EnterRegion(ctx context.Context, worldID, regionID string, rng *rand.Rand) (*EnterResult, error) {
	snapshot, err := h.world.Snapshot(ctx, worldID, regionID)
	if err != nil {
		return nil, fmt.Errorf("loading world snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("region %s/%s: %w", worldID, regionID, entities.ErrNotFound)
	}

	record, err := h.staging.ResolvePresence(ctx, snapshot, rng)
	if err != nil {
		return nil, fmt.Errorf("resolving presence: %w", err)
	}

	result := &EnterResult{Record: record}
	if err := h.applyEffects(ctx, record); err != nil {
		h.logger.Warn("staging effects not delivered",
			"resolution_id", record.ResolutionID, "error", err)
		result.ApplyErr = err
	}
	return result, nil
}

// PreStage stages a region ahead of any player arrival.
func (h *StagingHandler) PreStage(ctx context.Context, worldID, regionID string, npcs []entities.StagedNPC, stagedBy string) (*entities.StagingRecord, error) {
	snapshot, err := h.world.Snapshot(ctx, worldID, regionID)
	if err != nil {
		return nil, fmt.Errorf("loading world snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("region %s/%s: %w", worldID, regionID, entities.ErrNotFound)
	}
	record, err := h.staging.PreStage(ctx, snapshot.Scope(), npcs, stagedBy, snapshot.GameTime, snapshot.Settings)
	if err != nil {
		return nil, fmt.Errorf("prestaging region: %w", err)
	}
	return record, nil
}

// Current returns the active staging record for a region, or nil.
func (h *StagingHandler) Current(ctx context.Context, worldID, regionID string) (*entities.StagingRecord, error) {
	scope := entities.Scope{Kind: entities.ScopeRegion, WorldID: worldID, ID: regionID}
	return h.staging.Current(ctx, scope)
}

// History returns a region's staging records, newest first.
func (h *StagingHandler) History(ctx context.Context, worldID, regionID string, limit int) ([]entities.StagingRecord, error) {
	scope := entities.Scope{Kind: entities.ScopeRegion, WorldID: worldID, ID: regionID}
	return h.staging.History(ctx, scope, limit)
}

// applyEffects delivers a resolution's effects to the world store with
// bounded retries. A persistent failure is wrapped in ApplyEffectsError so
// callers can distinguish it from a failed resolution.
func (h *StagingHandler) applyEffects(ctx context.Context, record *entities.StagingRecord) error {
	res := &entities.Resolution{
		ID:        record.ResolutionID,
		Scope:     record.Scope,
		DecidedAt: record.GameTime,
		DecidedBy: record.ApprovedBy,
		Final: entities.CandidateSet{
			Source:  entities.SourceDirector,
			Entries: candidatesFromNPCs(record.NPCs),
		},
	}

	var err error
	for attempt := 0; attempt < applyRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return &entities.ApplyEffectsError{ResolutionID: res.ID, Err: ctx.Err()}
			}
		}
		if err = h.world.ApplyResolutionEffects(ctx, res); err == nil {
			return nil
		}
	}
	return &entities.ApplyEffectsError{ResolutionID: res.ID, Err: err}
}

func candidatesFromNPCs(npcs []entities.StagedNPC) []entities.Candidate {
	out := make([]entities.Candidate, 0, len(npcs))
	for _, n := range npcs {
		out = append(out, entities.Candidate{
			SubjectID:     n.CharacterID,
			Name:          n.Name,
			Included:      n.Present,
			Hidden:        n.Hidden,
			Justification: n.Reasoning,
			Mood:          n.Mood,
		})
	}
	return out
}
