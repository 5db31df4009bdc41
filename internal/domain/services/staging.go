package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// StagingService resolves NPC presence for region scopes through the
// time-scoped cache: a live staging record is served with no side effects;
// a miss or expiry runs the rule evaluator and suggestion generator,
// opens an approval request, and blocks the caller until the
// director decides or the timeout sweep fires. Records expire against the
// game clock, never wall time.
type StagingService struct {
	store     ports.DecisionStore
	registry  *Registry
	evaluator *RuleEvaluator
	suggester *SuggestionService
	notifier  ports.Notifier
	logger    *slog.Logger
}

// NewStagingService creates a new staging service. notifier may be nil.
func NewStagingService(store ports.DecisionStore, registry *Registry, evaluator *RuleEvaluator, suggester *SuggestionService, notifier ports.Notifier, logger *slog.Logger) *StagingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StagingService{
		store:     store,
		registry:  registry,
		evaluator: evaluator,
		suggester: suggester,
		notifier:  notifier,
		logger:    logger,
	}
}

// ResolvePresence returns the staging record governing the snapshot's region
// scope. Cache hit: the current record while the game clock is before its
// valid-until. Otherwise both candidate pipelines run, an approval request
// opens (or the caller attaches to one already pending for the scope), and
// the call blocks until resolution. Cancelling ctx releases this caller's
// attachment without affecting the request or other callers.
//
// rng seeds any probabilistic activation rules; pass a fixed seed to make
// evaluation reproducible.
func (s *StagingService) ResolvePresence(ctx context.Context, snapshot *entities.WorldSnapshot, rng *rand.Rand) (*entities.StagingRecord, error) {
	scope := snapshot.Scope()

	current, err := s.store.CurrentStaging(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("reading current staging: %w", err)
	}
	if current != nil && !current.Expired(snapshot.GameTime) {
		return current, nil
	}

	// The rule set feeds the suggester, so rules evaluate first. The
	// suggestion call is internally bounded and degrades to an unavailable
	// set rather than blocking the open.
	ruleResult := s.evaluator.Evaluate(snapshot, rng)
	aiSet := s.suggester.SuggestPresence(ctx, snapshot, ruleResult)

	req := &entities.ApprovalRequest{
		Scope:           scope,
		DeadlineSeconds: snapshot.Settings.DeadlineSeconds,
		RuleCandidates:  ruleResult.Candidates,
		AICandidates:    aiSet,
		GameTime:        snapshot.GameTime,
		Guidance:        snapshot.Guidance,
		AutoApprove:     snapshot.Settings.AutoApprove,
	}
	applier := &stagingApplier{service: s, settings: snapshot.Settings, guidance: snapshot.Guidance}

	requestID, waiter, opened, err := s.registry.OpenOrAttach(ctx, req, applier)
	if err != nil {
		return nil, fmt.Errorf("opening approval request: %w", err)
	}
	defer waiter.Cancel()

	if opened {
		s.logger.Info("staging approval requested",
			"request_id", requestID, "scope", scope.Key(),
			"ai_available", !aiSet.Unavailable)
	}
	if s.notifier != nil {
		s.notifier.Pending(ctx, scope)
	}

	select {
	case res := <-waiter.C:
		return s.recordFor(ctx, scope, res, snapshot.Settings)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recordFor returns the staging record produced by a resolution. The commit
// already wrote it; cancelled resolutions never become current, so those are
// rebuilt in memory.
func (s *StagingService) recordFor(ctx context.Context, scope entities.Scope, res *entities.Resolution, settings entities.ScopeSettings) (*entities.StagingRecord, error) {
	current, err := s.store.CurrentStaging(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("reading resolved staging: %w", err)
	}
	if current != nil && current.ResolutionID == res.ID {
		return current, nil
	}
	return stagingRecordFromResolution(res, settings, ""), nil
}

// PreStage lets the director stage a region before any player arrives,
// skipping the approval round-trip. The record becomes current immediately;
// a synthetic resolution is persisted first so crash recovery and audit see
// the same shape as approved stagings.
func (s *StagingService) PreStage(ctx context.Context, scope entities.Scope, npcs []entities.StagedNPC, stagedBy string, at entities.GameTime, settings entities.ScopeSettings) (*entities.StagingRecord, error) {
	entries := make([]entities.Candidate, 0, len(npcs))
	for _, n := range npcs {
		entries = append(entries, entities.Candidate{
			SubjectID:     n.CharacterID,
			Name:          n.Name,
			Included:      n.Present,
			Hidden:        n.Hidden,
			Justification: n.Reasoning,
			Mood:          n.Mood,
		})
	}
	res := &entities.Resolution{
		ID:         uuid.New().String(),
		Scope:      scope,
		Final:      entities.CandidateSet{Source: entities.SourceDirector, Entries: entries},
		Source:     entities.ResolutionHumanOverride,
		DecidedBy:  stagedBy,
		DecidedAt:  at,
		ResolvedAt: time.Now(),
	}
	if err := s.store.SaveResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("saving prestage resolution: %w", err)
	}

	record := stagingRecordFromResolution(res, settings, "")
	record.Source = entities.StagingPreStaged
	if err := s.store.SaveStagingRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("saving prestaged record: %w", err)
	}
	if err := s.store.LogDecision(ctx, "prestage", res.RequestID, map[string]any{
		"scope": scope.Key(), "by": stagedBy, "npcs": len(npcs),
	}); err != nil {
		s.logger.Warn("audit log write failed", "error", err)
	}
	if s.notifier != nil {
		s.notifier.ResolutionApplied(ctx, scope, res)
	}
	return record, nil
}

// Current returns the active staging record for a scope, expired or not.
func (s *StagingService) Current(ctx context.Context, scope entities.Scope) (*entities.StagingRecord, error) {
	return s.store.CurrentStaging(ctx, scope)
}

// History returns a scope's staging records, newest first.
func (s *StagingService) History(ctx context.Context, scope entities.Scope, limit int) ([]entities.StagingRecord, error) {
	return s.store.StagingHistory(ctx, scope, limit)
}

// stagingApplier commits presence resolutions for one staging query.
type stagingApplier struct {
	service  *StagingService
	settings entities.ScopeSettings
	guidance string
}

// Commit durably persists the resolution, then appends the staging record
// and promotes it to current. Cancelled resolutions are persisted for audit
// but never become the current record.
func (a *stagingApplier) Commit(ctx context.Context, res *entities.Resolution) error {
	s := a.service

	// The clock may have advanced while the request was pending; the
	// decision is stamped with the live game time when readable, so the
	// record's valid-until starts from the actual decision moment.
	if now, err := s.store.GameTime(ctx, res.Scope.WorldID); err == nil {
		res.DecidedAt = now
	}

	if err := s.store.SaveResolution(ctx, res); err != nil {
		return fmt.Errorf("saving resolution: %w", err)
	}

	if res.Source != entities.ResolutionCancelled {
		record := stagingRecordFromResolution(res, a.settings, a.guidance)
		if err := s.store.SaveStagingRecord(ctx, record); err != nil {
			return fmt.Errorf("saving staging record: %w", err)
		}
	}

	if err := s.store.LogDecision(ctx, "staging_"+string(res.Source), res.RequestID, map[string]any{
		"scope": res.Scope.Key(), "by": res.DecidedBy,
	}); err != nil {
		s.logger.Warn("audit log write failed", "error", err)
	}
	return nil
}

// stagingRecordFromResolution maps a resolution onto a staging record.
// Valid-until is the decision's game time plus the scope's TTL, both in game
// minutes; cancelled resolutions expire immediately.
func stagingRecordFromResolution(res *entities.Resolution, settings entities.ScopeSettings, guidance string) *entities.StagingRecord {
	validUntil := res.DecidedAt.Add(settings.StagingTTLMinutes)
	active := res.Source != entities.ResolutionCancelled
	if !active {
		validUntil = res.DecidedAt
	}
	return &entities.StagingRecord{
		ID:           uuid.New().String(),
		Scope:        res.Scope,
		ResolutionID: res.ID,
		NPCs:         entities.StagedNPCsFromCandidates(res.Final),
		GameTime:     res.DecidedAt,
		ValidUntil:   validUntil,
		ApprovedAt:   res.ResolvedAt,
		ApprovedBy:   res.DecidedBy,
		Source:       entities.StagingSourceForResolution(res.Source),
		Guidance:     guidance,
		Active:       active,
	}
}
