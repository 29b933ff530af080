package request

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/pkg/model"
)

type fakeRequest struct {
	id      string
	calls   *int32
	err     error
	invs    []model.Invalidation
	subs    []Request
}

func (f *fakeRequest) ID() string   { return f.id }
func (f *fakeRequest) Kind() string { return "FakeRequest" }
func (f *fakeRequest) Run(ctx context.Context, tc *TrackerContext) (any, []model.Invalidation, error) {
	atomic.AddInt32(f.calls, 1)
	if f.err != nil {
		return nil, nil, f.err
	}
	if len(f.subs) > 0 {
		tc.QueueAll(f.subs)
	}
	return f.id + "-result", f.invs, nil
}

func TestRunMemoizesByID(t *testing.T) {
	tr := NewTracker(2)
	var calls int32
	req := &fakeRequest{id: "a", calls: &calls}

	r1, err := Run[string](context.Background(), tr, req)
	require.NoError(t, err)
	r2, err := Run[string](context.Background(), tr, req)
	require.NoError(t, err)

	assert.Equal(t, "a-result", r1)
	assert.Equal(t, r1, r2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must be served from cache")
}

func TestRunDoesNotCacheFailures(t *testing.T) {
	tr := NewTracker(2)
	var calls int32
	req := &fakeRequest{id: "b", calls: &calls, err: errors.New("boom")}

	_, err1 := tr.Run(context.Background(), req)
	_, err2 := tr.Run(context.Background(), req)

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "failed requests must re-run, not be memoized")
}

func TestRunReExecutesOnInvalidation(t *testing.T) {
	tr := NewTracker(2)
	var calls int32
	req := &fakeRequest{
		id:    "c",
		calls: &calls,
		invs:  []model.Invalidation{{Kind: model.InvalidationFileChange, Key: "/a.js"}},
	}

	_, err := tr.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	tr.SetChangeSet(model.ChangeSet{ChangedFiles: map[string]struct{}{"/a.js": {}}})
	_, err = tr.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "invalidated entries must re-run")
}

func TestQueueAllRunsSubRequestsConcurrently(t *testing.T) {
	tr := NewTracker(4)
	var childCalls int32
	child1 := &fakeRequest{id: "child1", calls: &childCalls}
	child2 := &fakeRequest{id: "child2", calls: &childCalls}
	var parentCalls int32
	parent := &fakeRequest{id: "parent", calls: &parentCalls, subs: []Request{child1, child2}}

	_, err := tr.Run(context.Background(), parent)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&childCalls))
}

func TestConcurrentCallersJoinSingleInFlightExecution(t *testing.T) {
	tr := NewTracker(4)
	var calls int32
	req := &fakeRequest{id: "shared", calls: &calls}

	const n = 20
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			r, err := Run[string](context.Background(), tr, req)
			require.NoError(t, err)
			results <- r
		}()
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, "shared-result", <-results)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2), "concurrent callers should not each re-run the request")
}
