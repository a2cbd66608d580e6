package crossencoder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/eventrank/internal/ranking"
)

// countingScorer scores each candidate by its title length and records calls.
type countingScorer struct {
	calls   atomic.Int32
	scored  atomic.Int32
	err     error
	short   bool
	release chan struct{}
}

func (s *countingScorer) Name() string                         { return "counting" }
func (s *countingScorer) IsAvailable(ctx context.Context) bool { return true }

func (s *countingScorer) Rank(ctx context.Context, query string, candidates []ranking.Candidate) ([]ranking.ScoredCandidate, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ranking.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		s.scored.Add(1)
		out = append(out, ranking.ScoredCandidate{Candidate: c, Score: float64(len(c.Title)) / 100})
	}
	if s.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

// failingStore always errors.
type failingStore struct{}

func (failingStore) GetScores(ctx context.Context, keys []string) (map[string]float64, error) {
	return nil, errors.New("store down")
}

func (failingStore) SetScores(ctx context.Context, scores map[string]float64, ttl time.Duration) error {
	return errors.New("store down")
}

func TestCache_HitsSkipUpstream(t *testing.T) {
	inner := &countingScorer{}
	cache := NewCache(inner, NewInMemoryScoreStore())
	ctx := context.Background()

	first, err := cache.Rank(ctx, "legal tech", testCandidates())
	if err != nil {
		t.Fatalf("first Rank: %v", err)
	}
	second, err := cache.Rank(ctx, "legal tech", testCandidates())
	if err != nil {
		t.Fatalf("second Rank: %v", err)
	}

	if inner.calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls.Load())
	}
	for i := range first {
		if first[i].Score != second[i].Score {
			t.Errorf("score[%d] changed: %v != %v", i, first[i].Score, second[i].Score)
		}
	}
	if first[0].Score != float64(len("Legal Tech Summit"))/100 {
		t.Errorf("unexpected score %v", first[0].Score)
	}
}

func TestCache_OnlyMissesSent(t *testing.T) {
	inner := &countingScorer{}
	cache := NewCache(inner, NewInMemoryScoreStore())
	ctx := context.Background()
	cands := testCandidates()

	if _, err := cache.Rank(ctx, "q", cands[:1]); err != nil {
		t.Fatalf("warm: %v", err)
	}
	scored, err := cache.Rank(ctx, "q", cands)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if inner.scored.Load() != 3 {
		t.Errorf("expected 3 candidates scored upstream in total, got %d", inner.scored.Load())
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 results, got %d", len(scored))
	}
	for i, sc := range scored {
		if sc.Candidate.URL != cands[i].URL {
			t.Errorf("result %d out of order", i)
		}
	}
}

func TestCache_KeyIncludesQuery(t *testing.T) {
	inner := &countingScorer{}
	cache := NewCache(inner, NewInMemoryScoreStore())

	_, _ = cache.Rank(context.Background(), "one", testCandidates())
	_, _ = cache.Rank(context.Background(), "two", testCandidates())

	if inner.calls.Load() != 2 {
		t.Errorf("expected separate upstream calls per query, got %d", inner.calls.Load())
	}
}

func TestCache_Errors(t *testing.T) {
	tests := []struct {
		name    string
		inner   *countingScorer
		wantErr error
	}{
		{"upstream error propagates", &countingScorer{err: errors.New("boom")}, nil},
		{"short result", &countingScorer{short: true}, ranking.ErrScoreCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache(tt.inner, NewInMemoryScoreStore())
			_, err := cache.Rank(context.Background(), "q", testCandidates())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCache_StoreFailureFailsOpen(t *testing.T) {
	inner := &countingScorer{}
	cache := NewCache(inner, failingStore{})

	scored, err := cache.Rank(context.Background(), "q", testCandidates())
	if err != nil {
		t.Fatalf("expected store failures to be ignored, got %v", err)
	}
	if len(scored) != 3 || inner.calls.Load() != 1 {
		t.Errorf("expected upstream scoring of all candidates, got %d results / %d calls", len(scored), inner.calls.Load())
	}
}

func TestCache_CollapsesConcurrentMisses(t *testing.T) {
	inner := &countingScorer{release: make(chan struct{})}
	cache := NewCache(inner, NewInMemoryScoreStore())

	const callers = 8
	var wg, started sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := cache.Rank(context.Background(), "q", testCandidates())
			errs <- err
		}()
	}

	// Wait until every caller is running and the first upstream call is in
	// flight, then let it finish.
	started.Wait()
	deadline := time.After(2 * time.Second)
	for inner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("upstream never called")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

// contextScorer blocks until released, then fails if its own context is done.
type contextScorer struct {
	calls   atomic.Int32
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (s *contextScorer) Name() string                         { return "context" }
func (s *contextScorer) IsAvailable(ctx context.Context) bool { return true }

func (s *contextScorer) Rank(ctx context.Context, query string, candidates []ranking.Candidate) ([]ranking.ScoredCandidate, error) {
	s.calls.Add(1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]ranking.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = ranking.ScoredCandidate{Candidate: c, Score: 0.5}
	}
	return out, nil
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &contextScorer{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(inner, NewInMemoryScoreStore())

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Rank(first, "q", testCandidates())
		firstErr <- err
	}()

	select {
	case <-inner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream never called")
	}

	type result struct {
		scored []ranking.ScoredCandidate
		err    error
	}
	second := make(chan result, 1)
	go func() {
		scored, err := cache.Rank(context.Background(), "q", testCandidates())
		second <- result{scored, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// The cancelled caller returns at once, before the shared call finishes.
	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled for cancelled caller, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared call")
	}

	close(inner.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("live caller failed: %v", res.err)
		}
		for i, sc := range res.scored {
			if sc.Score != 0.5 {
				t.Errorf("score[%d] = %v, want 0.5", i, sc.Score)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never returned")
	}

	// The shared result was stored even though its first caller left.
	if _, err := cache.Rank(context.Background(), "q", testCandidates()); err != nil {
		t.Fatalf("cached Rank: %v", err)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestCache_FetchTimeout(t *testing.T) {
	inner := &contextScorer{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(inner, NewInMemoryScoreStore(), WithFetchTimeout(20*time.Millisecond))

	_, err := cache.Rank(context.Background(), "q", testCandidates())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if cache.fetchTimeout != 20*time.Millisecond {
		t.Errorf("expected fetch timeout option applied, got %v", cache.fetchTimeout)
	}
}

func TestCache_Delegates(t *testing.T) {
	cache := NewCache(New("http://x", "k", WithName("jina")), NewInMemoryScoreStore(), WithTTL(time.Minute))
	if cache.Name() != "jina" {
		t.Errorf("expected wrapped name, got %q", cache.Name())
	}
	if !cache.IsAvailable(context.Background()) {
		t.Error("expected wrapped availability")
	}
	if cache.ttl != time.Minute {
		t.Errorf("expected ttl option applied, got %v", cache.ttl)
	}
}
