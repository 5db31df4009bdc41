package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/mocks"
)

// testApplier records committed resolutions and optionally fails.
type testApplier struct {
	mu      sync.Mutex
	commits []*entities.Resolution
	err     error
}

func (a *testApplier) Commit(ctx context.Context, res *entities.Resolution) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.commits = append(a.commits, res)
	return nil
}

func (a *testApplier) committed() []*entities.Resolution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*entities.Resolution(nil), a.commits...)
}

func newTestRegistry() *Registry {
	return NewRegistry(NewResolver(), &mocks.Notifier{}, nil)
}

func pendingRequestFor(scopeID string) *entities.ApprovalRequest {
	return &entities.ApprovalRequest{
		Scope:           entities.Scope{Kind: entities.ScopeRegion, WorldID: "world-1", ID: scopeID},
		DeadlineSeconds: 30,
		RuleCandidates: entities.CandidateSet{
			Source:  entities.SourceRules,
			Entries: []entities.Candidate{{SubjectID: "npc-1", Included: true}},
		},
		AutoApprove: true,
	}
}

func TestRegistry_OpenAndDecide(t *testing.T) {
	registry := newTestRegistry()
	applier := &testApplier{}
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, applier))
	assert.NotEmpty(t, req.ID)

	waiter, err := registry.Attach(req.ID)
	require.NoError(t, err)
	defer waiter.Cancel()

	res, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ResolutionRuleBased, res.Source)

	// Commit ran before the waiter was released.
	require.Len(t, applier.committed(), 1)
	assert.Equal(t, res.ID, applier.committed()[0].ID)

	select {
	case got := <-waiter.C:
		assert.Equal(t, res.ID, got.ID)
	default:
		t.Fatal("waiter was not released")
	}
}

func TestRegistry_ScopeExclusivity(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	first := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, first, &testApplier{}))

	second := pendingRequestFor("market")
	err := registry.Open(ctx, second, &testApplier{})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrAlreadyPending)

	// A different scope opens fine.
	other := pendingRequestFor("tavern")
	require.NoError(t, registry.Open(ctx, other, &testApplier{}))
}

func TestRegistry_OpenOrAttachJoinsPending(t *testing.T) {
	registry := newTestRegistry()
	applier := &testApplier{}
	ctx := context.Background()

	first := pendingRequestFor("market")
	id1, w1, opened, err := registry.OpenOrAttach(ctx, first, applier)
	require.NoError(t, err)
	assert.True(t, opened)
	defer w1.Cancel()

	second := pendingRequestFor("market")
	id2, w2, opened, err := registry.OpenOrAttach(ctx, second, applier)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, id1, id2)
	defer w2.Cancel()

	res, err := registry.Decide(ctx, id1, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)

	// Both callers observe the same resolution.
	assert.Equal(t, res.ID, (<-w1.C).ID)
	assert.Equal(t, res.ID, (<-w2.C).ID)

	// One commit for the pair.
	assert.Len(t, applier.committed(), 1)
}

func TestRegistry_WaiterCancelIsolation(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	w1, err := registry.Attach(req.ID)
	require.NoError(t, err)
	w2, err := registry.Attach(req.ID)
	require.NoError(t, err)
	defer w2.Cancel()

	w1.Cancel()
	w1.Cancel() // safe to repeat

	res, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)

	select {
	case got := <-w2.C:
		assert.Equal(t, res.ID, got.ID)
	default:
		t.Fatal("remaining waiter was not released")
	}
}

func TestRegistry_AttachAfterResolved(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	res, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)

	// Late attachment yields the resolution immediately.
	waiter, err := registry.Attach(req.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, (<-waiter.C).ID)
}

func TestRegistry_DecideIdempotentUnderSweepRace(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	// Move the clock past the deadline and let the sweep win.
	registry.now = func() time.Time { return time.Now().Add(time.Hour) }
	resolved := registry.Sweep(ctx)
	assert.Equal(t, 1, resolved)

	// The losing director decision gets the sweep's resolution, no error.
	res, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ResolutionTimeoutAuto, res.Source)
	assert.Equal(t, "system", res.DecidedBy)
}

func TestRegistry_SweepSkipsUnexpired(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	assert.Equal(t, 0, registry.Sweep(ctx))
	assert.Len(t, registry.Pending(), 1)
}

func TestRegistry_SweepAutoApproveDisabled(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	req.AutoApprove = false
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	waiter, err := registry.Attach(req.ID)
	require.NoError(t, err)
	defer waiter.Cancel()

	registry.now = func() time.Time { return time.Now().Add(time.Hour) }
	registry.Sweep(ctx)

	// The caller still unblocks, with an empty final set.
	res := <-waiter.C
	assert.Equal(t, entities.ResolutionTimeoutAuto, res.Source)
	assert.Empty(t, res.Final.Entries)
}

func TestRegistry_CommitFailureLeavesPending(t *testing.T) {
	registry := newTestRegistry()
	applier := &testApplier{err: errors.New("db unavailable")}
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, applier))

	_, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.Error(t, err)

	// Still pending; a later decide succeeds once the store recovers.
	assert.Len(t, registry.Pending(), 1)

	applier.err = nil
	res, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, registry.Pending())
}

func TestRegistry_Cancel(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	res, err := registry.Cancel(ctx, req.ID, "director")
	require.NoError(t, err)
	assert.Equal(t, entities.ResolutionCancelled, res.Source)
	assert.Empty(t, registry.Pending())
}

func TestRegistry_ScopeFreedAfterResolution(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))
	_, err := registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseRules,
		DecidedBy: "director",
	})
	require.NoError(t, err)

	// The scope is free for the next request.
	next := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, next, &testApplier{}))
}

func TestRegistry_RejectMustUseRegeneration(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	_, err := registry.Decide(ctx, req.ID, entities.Decision{Kind: entities.DecisionReject})
	require.Error(t, err)
}

func TestRegistry_Rearm(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	req := pendingRequestFor("turn-1")
	req.Scope.Kind = entities.ScopeDialogue
	require.NoError(t, registry.Open(ctx, req, &testApplier{}))

	newSet := entities.CandidateSet{
		Source:  entities.SourceAI,
		Entries: []entities.Candidate{{SubjectID: "npc-1", Included: true}},
	}
	require.NoError(t, registry.Rearm(ctx, req.ID, newSet, "more hostile", nil))

	got, err := registry.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, "more hostile", got.Guidance)
	assert.Equal(t, newSet.Entries, got.AICandidates.Entries)

	// A commit callback runs under the request's lock before the re-arm.
	var committed bool
	require.NoError(t, registry.Rearm(ctx, req.ID, newSet, "colder", func(context.Context) error {
		committed = true
		return nil
	}))
	assert.True(t, committed)

	// A commit failure leaves the request untouched.
	err = registry.Rearm(ctx, req.ID, newSet, "bad", func(context.Context) error {
		return errors.New("db unavailable")
	})
	require.Error(t, err)
	got, err = registry.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "colder", got.Guidance)

	// Rearming a resolved request fails without running the commit.
	_, err = registry.Decide(ctx, req.ID, entities.Decision{
		Kind:      entities.DecisionUseAI,
		DecidedBy: "director",
	})
	require.NoError(t, err)
	committed = false
	err = registry.Rearm(ctx, req.ID, newSet, "again", func(context.Context) error {
		committed = true
		return nil
	})
	assert.ErrorIs(t, err, entities.ErrAlreadyResolved)
	assert.False(t, committed)
}

func TestRegistry_OpenRacesWithResolve(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		req := pendingRequestFor("market")
		require.NoError(t, registry.Open(ctx, req, &testApplier{}))

		next := pendingRequestFor("market")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := registry.Decide(ctx, req.ID, entities.Decision{
				Kind:      entities.DecisionUseRules,
				DecidedBy: "director",
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			// While the scope's request resolves, an open either reports
			// the scope busy or succeeds once the resolution lands.
			for {
				err := registry.Open(ctx, next, &testApplier{})
				if err == nil {
					return
				}
				if !errors.Is(err, entities.ErrAlreadyPending) {
					assert.NoError(t, err)
					return
				}
			}
		}()
		wg.Wait()

		_, err := registry.Cancel(ctx, next.ID, "director")
		require.NoError(t, err)
	}
}

func TestRegistry_ConcurrentDecides(t *testing.T) {
	registry := newTestRegistry()
	applier := &testApplier{}
	ctx := context.Background()

	req := pendingRequestFor("market")
	require.NoError(t, registry.Open(ctx, req, applier))

	const callers = 8
	results := make([]*entities.Resolution, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := registry.Decide(ctx, req.ID, entities.Decision{
				Kind:      entities.DecisionUseRules,
				DecidedBy: "director",
			})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	// Exactly one commit; every caller sees the winner's resolution.
	require.Len(t, applier.committed(), 1)
	winner := applier.committed()[0].ID
	for _, res := range results {
		assert.Equal(t, winner, res.ID)
	}
}

func TestRegistry_UnknownRequest(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Attach("no-such-id")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = registry.Decide(context.Background(), "no-such-id", entities.Decision{
		Kind: entities.DecisionUseRules,
	})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
