// Package request implements the incremental request tracker (spec §4.1):
// the scheduler and memoization layer that drives every other layer of the
// build. A running request queues a sub-request with QueueRequest, which
// starts it on its own goroutine and delivers the result on a reply
// channel; there is no shared inbox channel. Execution is bounded by a
// semaphore sized to the number of logical CPUs and admission is throttled
// by a token-bucket rate limiter.
package request

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/apex-build/corebuild/internal/metrics"
	"github.com/apex-build/corebuild/internal/tracing"
	"github.com/apex-build/corebuild/pkg/model"
)

// State is a request entry's position in the NotStarted -> Running ->
// {Valid, Invalid} state machine (spec §4.1).
type State int

const (
	NotStarted State = iota
	Running
	Valid
	Invalid
)

// Request is a hashable unit of work whose output the tracker memoizes
// (spec §3, §4.1). Run receives a TrackerContext so it can queue
// sub-requests; it returns its result, the invalidations that should
// invalidate it, or an error (never cached, per spec §4.1/§7).
type Request interface {
	// ID is the request's content-addressed id (spec §3: "hashes of the
	// request's input fields").
	ID() string
	// Kind names the request type for metrics/tracing (e.g.
	// "AssetRequest", "PathRequest").
	Kind() string
	Run(ctx context.Context, tc *TrackerContext) (any, []model.Invalidation, error)
}

type entry struct {
	mu            sync.Mutex
	state         State
	result        any
	invalidations []model.Invalidation
	done          chan struct{}
}

// Tracker is the process-wide request memoization and scheduling state. It
// owns no global singleton; callers construct and thread one explicitly
// (Design Notes: "avoid process-wide singletons entirely").
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*entry
	changeSet model.ChangeSet

	sem     chan struct{}
	limiter *rate.Limiter
}

// NewTracker creates a Tracker with a worker pool sized to workers (0 means
// runtime.NumCPU(), matching spec §5: "Worker count defaults to the number
// of logical CPUs").
func NewTracker(workers int) *Tracker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Tracker{
		entries: make(map[string]*entry),
		sem:     make(chan struct{}, workers),
		// Admission is throttled, not capacity-limited by the limiter
		// itself; the channel above enforces the hard concurrency cap.
		limiter: rate.NewLimiter(rate.Limit(workers*20), workers*4),
	}
}

// SetChangeSet installs the change set the current build checks recorded
// invalidations against (spec §4.1). Call once per build before driving
// any requests.
func (t *Tracker) SetChangeSet(cs model.ChangeSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.changeSet = cs
}

func (t *Tracker) getOrCreateEntry(id string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		e = &entry{state: NotStarted}
		t.entries[id] = e
	}
	return e
}

func (t *Tracker) currentChangeSet() model.ChangeSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changeSet
}

func anyFires(invs []model.Invalidation, cs model.ChangeSet) bool {
	for _, inv := range invs {
		if cs.Fires(inv) {
			return true
		}
	}
	return false
}

// Run executes req, returning its memoized result if one is cached and
// still valid, otherwise running req.Run and caching the result. Concurrent
// callers for the same id join a single in-flight execution (spec §4.1:
// "concurrent callers for the same id join a single in-flight future").
func (t *Tracker) Run(ctx context.Context, req Request) (any, error) {
	id := req.ID()
	e := t.getOrCreateEntry(id)
	m := metrics.Get()

	for {
		e.mu.Lock()
		switch e.state {
		case Valid:
			if anyFires(e.invalidations, t.currentChangeSet()) {
				e.state = Invalid
				e.mu.Unlock()
				continue
			}
			result := e.result
			e.mu.Unlock()
			m.RequestCacheHits.WithLabelValues(req.Kind()).Inc()
			return result, nil

		case Running:
			done := e.done
			e.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case NotStarted, Invalid:
			e.state = Running
			e.done = make(chan struct{})
			e.mu.Unlock()
			m.RequestCacheMisses.WithLabelValues(req.Kind()).Inc()
			return t.execute(ctx, req, e)
		}
	}
}

func (t *Tracker) execute(ctx context.Context, req Request, e *entry) (any, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		e.mu.Lock()
		e.state = NotStarted
		close(e.done)
		e.mu.Unlock()
		return nil, ctx.Err()
	}
	defer func() { <-t.sem }()

	if err := t.limiter.Wait(ctx); err != nil {
		e.mu.Lock()
		e.state = NotStarted
		close(e.done)
		e.mu.Unlock()
		return nil, err
	}

	m := metrics.Get()
	m.RequestsInFlight.Inc()
	defer m.RequestsInFlight.Dec()

	start := time.Now()
	spanCtx, span := tracing.StartSpan(ctx, req.Kind(), req.ID())
	tc := &TrackerContext{tracker: t, ctx: spanCtx}

	result, invs, err := req.Run(spanCtx, tc)
	span.End()
	m.RequestDuration.WithLabelValues(req.Kind()).Observe(time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Spec §4.1/§7: "Failures are not cached — a request that fails is
		// retried next build." Reset to NotStarted rather than caching.
		e.state = NotStarted
		close(e.done)
		m.RequestsTotal.WithLabelValues(req.Kind(), "error").Inc()
		return nil, err
	}
	e.result = result
	e.invalidations = invs
	e.state = Valid
	close(e.done)
	m.RequestsTotal.WithLabelValues(req.Kind(), "success").Inc()
	return result, nil
}

// Run executes req and type-asserts its result to R, for call sites that
// know their request kind's concrete result type.
func Run[R any](ctx context.Context, t *Tracker, req Request) (R, error) {
	var zero R
	raw, err := t.Run(ctx, req)
	if err != nil {
		return zero, err
	}
	result, ok := raw.(R)
	if !ok {
		return zero, fmt.Errorf("request %s: unexpected result type %T", req.ID(), raw)
	}
	return result, nil
}

// SubResult is the reply a queued sub-request delivers on its channel.
type SubResult struct {
	Result any
	Err    error
}

// TrackerContext is handed to a running Request so it can queue
// sub-requests onto the tracker's worker pool (spec §4.1: "the request may
// call ctx.queue_request(sub_req, reply_channel)").
type TrackerContext struct {
	tracker *Tracker
	ctx     context.Context
}

// QueueRequest schedules sub on the worker pool and returns a channel that
// receives its single reply. Queued sub-requests execute concurrently;
// callers that need several should use QueueAll rather than serializing
// channel receives.
func (tc *TrackerContext) QueueRequest(sub Request) <-chan SubResult {
	reply := make(chan SubResult, 1)
	go func() {
		result, err := tc.tracker.Run(tc.ctx, sub)
		reply <- SubResult{Result: result, Err: err}
	}()
	return reply
}

// QueueAll queues every sub-request and waits for all replies. The parent
// must tolerate any interleaving of completions (spec §5): this helper
// only provides a convenient barrier, not an ordering guarantee — indices
// in the result correspond to indices in subs regardless of completion
// order.
func (tc *TrackerContext) QueueAll(subs []Request) []SubResult {
	replies := make([]<-chan SubResult, len(subs))
	for i, s := range subs {
		replies[i] = tc.QueueRequest(s)
	}
	results := make([]SubResult, len(subs))
	for i, r := range replies {
		results[i] = <-r
	}
	return results
}

// Context returns the (possibly span-wrapped) context the sub-request
// should use for further suspension points.
func (tc *TrackerContext) Context() context.Context {
	return tc.ctx
}
