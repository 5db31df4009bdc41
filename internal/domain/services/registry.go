package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// DefaultSweepInterval is how often the background sweep scans pending
// requests for expired deadlines.
const DefaultSweepInterval = 5 * time.Second

// resolvedRetention is how long a resolved request stays addressable by ID
// so that race losers receive the existing resolution instead of NotFound.
const resolvedRetention = time.Minute

// ResolutionApplier is the capability for applying a resolution to its
// domain: it must durably persist the resolution and its domain record
// before returning. The registry reports a resolution to attached callers
// only after Commit succeeds.
type ResolutionApplier interface {
	Commit(ctx context.Context, res *entities.Resolution) error
}

// Waiter is one caller's attachment to a pending request. The channel
// receives the resolution exactly once; Cancel releases the attachment
// without affecting the request or other waiters.
type Waiter struct {
	C      <-chan *entities.Resolution
	cancel func()
}

// Cancel releases the attachment. Safe to call more than once.
func (w *Waiter) Cancel() {
	if w.cancel != nil {
		w.cancel()
	}
}

// pendingRequest is the registry's tracking state for one request. Each
// request has its own lock so scopes resolve independently; the commit runs
// under it, serializing decisions within a scope.
type pendingRequest struct {
	mu         sync.Mutex
	req        *entities.ApprovalRequest
	applier    ResolutionApplier
	waiters    map[int]chan *entities.Resolution
	nextWaiter int
	resolution *entities.Resolution
	resolvedAt time.Time
}

func (p *pendingRequest) isResolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolution != nil
}

// Registry tracks open deferred decisions. At most one pending request
// exists per scope; resolving is idempotent under a decide/sweep race.
type Registry struct {
	mu      sync.Mutex
	byScope map[string]*pendingRequest
	byID    map[string]*pendingRequest

	resolver *Resolver
	notifier ports.Notifier
	logger   *slog.Logger

	// now is swappable for deadline tests.
	now func() time.Time
}

// NewRegistry creates a new approval request registry. notifier may be nil.
func NewRegistry(resolver *Resolver, notifier ports.Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byScope:  make(map[string]*pendingRequest),
		byID:     make(map[string]*pendingRequest),
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Open registers a new approval request for a scope. Fails with
// ErrAlreadyPending if an unresolved request exists for the scope; callers
// should attach to the existing request instead.
func (r *Registry) Open(ctx context.Context, req *entities.ApprovalRequest, applier ResolutionApplier) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := r.now()
	req.CreatedAt = now
	req.Deadline = now.Add(time.Duration(req.DeadlineSeconds) * time.Second)
	req.Status = entities.StatusPending

	key := req.Scope.Key()

	r.mu.Lock()
	if existing, ok := r.byScope[key]; ok && !existing.isResolved() {
		r.mu.Unlock()
		return fmt.Errorf("scope %s: %w", key, entities.ErrAlreadyPending)
	}
	p := &pendingRequest{
		req:     req,
		applier: applier,
		waiters: make(map[int]chan *entities.Resolution),
	}
	r.byScope[key] = p
	r.byID[req.ID] = p
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.ApprovalRequested(ctx, req)
	}
	return nil
}

// OpenOrAttach opens a request for the scope, or attaches to the pending one
// if a concurrent trigger already opened it. Returns the request ID, the
// caller's waiter, and whether this call opened the request.
func (r *Registry) OpenOrAttach(ctx context.Context, req *entities.ApprovalRequest, applier ResolutionApplier) (string, *Waiter, bool, error) {
	err := r.Open(ctx, req, applier)
	if err == nil {
		w, attachErr := r.Attach(req.ID)
		if attachErr != nil {
			return "", nil, false, attachErr
		}
		return req.ID, w, true, nil
	}

	// Lost the open race: attach to whoever won.
	r.mu.Lock()
	p, ok := r.byScope[req.Scope.Key()]
	r.mu.Unlock()
	if !ok {
		return "", nil, false, err
	}
	w, attachErr := r.attachTo(p)
	if attachErr != nil {
		return "", nil, false, attachErr
	}
	return p.req.ID, w, false, nil
}

// Attach registers a caller on a request. Multiple callers may attach to one
// request; all are released with the same resolution. Attaching to an
// already-resolved request yields the resolution immediately.
func (r *Registry) Attach(requestID string) (*Waiter, error) {
	p, err := r.lookup(requestID)
	if err != nil {
		return nil, err
	}
	return r.attachTo(p)
}

func (r *Registry) attachTo(p *pendingRequest) (*Waiter, error) {
	ch := make(chan *entities.Resolution, 1)

	p.mu.Lock()
	if p.resolution != nil {
		ch <- p.resolution
		p.mu.Unlock()
		return &Waiter{C: ch}, nil
	}
	id := p.nextWaiter
	p.nextWaiter++
	p.waiters[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}
	return &Waiter{C: ch, cancel: cancel}, nil
}

// Decide resolves a request with a director decision. Idempotent under a
// race with the timeout sweep: the loser receives the already-produced
// resolution with no error. DecisionReject must go through the regeneration
// flow, not Decide.
func (r *Registry) Decide(ctx context.Context, requestID string, decision entities.Decision) (*entities.Resolution, error) {
	if decision.Kind == entities.DecisionReject {
		return nil, fmt.Errorf("reject decisions re-arm the request via regeneration, not decide")
	}
	p, err := r.lookup(requestID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, p, func(req *entities.ApprovalRequest) (*entities.Resolution, error) {
		return r.resolver.Resolve(req, decision, r.now())
	})
}

// Cancel resolves a pending request immediately as a degenerate resolution
// with an empty candidate set.
func (r *Registry) Cancel(ctx context.Context, requestID, cancelledBy string) (*entities.Resolution, error) {
	p, err := r.lookup(requestID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, p, func(req *entities.ApprovalRequest) (*entities.Resolution, error) {
		return r.resolver.ResolveCancel(req, cancelledBy, r.now()), nil
	})
}

// Rearm resets a pending request for another regeneration round: new AI
// candidate set, incremented attempt, fresh deadline. Waiters stay attached.
// Fails with ErrAlreadyResolved if the request resolved in the meantime.
// commit, when non-nil, runs under the request's lock before the re-arm
// takes effect, so its domain writes serialize against a racing resolution;
// a commit error leaves the request untouched.
func (r *Registry) Rearm(ctx context.Context, requestID string, aiSet entities.CandidateSet, feedback string, commit func(context.Context) error) error {
	p, err := r.lookup(requestID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.resolution != nil {
		p.mu.Unlock()
		return fmt.Errorf("request %s: %w", requestID, entities.ErrAlreadyResolved)
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("committing rearm: %w", err)
		}
	}
	p.req.AICandidates = aiSet
	p.req.Attempt++
	p.req.Guidance = feedback
	p.req.Deadline = r.now().Add(time.Duration(p.req.DeadlineSeconds) * time.Second)
	req := p.req
	p.mu.Unlock()

	if r.notifier != nil {
		r.notifier.ApprovalRequested(ctx, req)
	}
	return nil
}

// Request returns a snapshot of a tracked request.
func (r *Registry) Request(requestID string) (*entities.ApprovalRequest, error) {
	p, err := r.lookup(requestID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *p.req
	return &copied, nil
}

// Pending returns the currently pending requests.
func (r *Registry) Pending() []*entities.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entities.ApprovalRequest
	for _, p := range r.byScope {
		p.mu.Lock()
		if p.resolution == nil {
			copied := *p.req
			out = append(out, &copied)
		}
		p.mu.Unlock()
	}
	return out
}

// Sweep scans pending requests and auto-resolves any past its deadline using
// the rule evaluator's candidate set (never the AI set), tagged
// TimeoutAutoApprove. Scopes with auto-approve disabled resolve to an empty
// set instead of staying pending forever. Also garbage-collects resolved
// requests past their retention window. Returns how many requests it
// resolved.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	candidates := make([]*pendingRequest, 0, len(r.byID))
	for id, p := range r.byID {
		p.mu.Lock()
		if p.resolution != nil {
			if now.Sub(p.resolvedAt) > resolvedRetention {
				delete(r.byID, id)
			}
			p.mu.Unlock()
			continue
		}
		if p.req.Expired(now) {
			candidates = append(candidates, p)
		}
		p.mu.Unlock()
	}
	r.mu.Unlock()

	resolved := 0
	for _, p := range candidates {
		res, err := r.resolve(ctx, p, func(req *entities.ApprovalRequest) (*entities.Resolution, error) {
			return r.resolver.ResolveTimeout(req, r.now()), nil
		})
		if err != nil {
			r.logger.Warn("timeout sweep failed to resolve request",
				"request_id", p.req.ID, "error", err)
			continue
		}
		if res.Source == entities.ResolutionTimeoutAuto {
			resolved++
			r.logger.Info("auto-resolved expired approval request",
				"request_id", res.RequestID, "scope", res.Scope.Key())
		}
	}
	return resolved
}

// Run executes the sweep loop until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) lookup(requestID string) (*pendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, entities.ErrNotFound)
	}
	return p, nil
}

// resolve produces the request's single resolution. The first caller wins;
// everyone else gets the winner's resolution. Commit runs before any waiter
// is released, so callers only ever observe durable resolutions. A commit
// failure leaves the request pending.
func (r *Registry) resolve(ctx context.Context, p *pendingRequest, build func(*entities.ApprovalRequest) (*entities.Resolution, error)) (*entities.Resolution, error) {
	p.mu.Lock()
	if p.resolution != nil {
		res := p.resolution
		p.mu.Unlock()
		return res, nil
	}

	res, err := build(p.req)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	if err := p.applier.Commit(ctx, res); err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("committing resolution: %w", err)
	}

	p.resolution = res
	p.resolvedAt = r.now()
	p.req.Status = entities.StatusResolved
	for _, ch := range p.waiters {
		ch <- res
	}
	p.waiters = make(map[int]chan *entities.Resolution)
	scope := p.req.Scope
	p.mu.Unlock()

	// Free the scope for the next request; the ID stays addressable for a
	// retention window so race losers find the resolution.
	r.mu.Lock()
	if cur, ok := r.byScope[scope.Key()]; ok && cur == p {
		delete(r.byScope, scope.Key())
	}
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.ResolutionApplied(ctx, scope, res)
	}
	return res, nil
}
