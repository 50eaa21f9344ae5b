package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func (s *countingSweeper) record(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	if s.fail {
		return 0, errors.New("store down")
	}
	return 1, nil
}

func (s *countingSweeper) SweepExpired(context.Context, int) (int, error) {
	return s.record("expired")
}

func (s *countingSweeper) SweepAbandoned(context.Context, int) (int, error) {
	return s.record("abandoned")
}

func (s *countingSweeper) RecoverSubmitted(context.Context, int) (int, error) {
	return s.record("recover")
}

func (s *countingSweeper) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func TestDeadlineWorkerRunsEverySweep(t *testing.T) {
	for _, fail := range []bool{false, true} {
		sweeper := &countingSweeper{calls: make(map[string]int), fail: fail}
		w := NewDeadlineWorker(sweeper, 10*time.Millisecond, zerolog.Nop())

		ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
		done := make(chan struct{})
		go func() {
			w.Start(ctx)
			close(done)
		}()
		<-done
		cancel()

		for _, name := range []string{"expired", "abandoned", "recover"} {
			if sweeper.count(name) < 2 {
				t.Errorf("fail=%v: sweep %q ran %d times, want >= 2", fail, name, sweeper.count(name))
			}
		}
	}
}

type batchRelayer struct {
	mu      sync.Mutex
	backlog int
	passes  int
}

func (r *batchRelayer) RelayPending(_ context.Context, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes++
	n := min(limit, r.backlog)
	r.backlog -= n
	return n, nil
}

func TestAwardRelayWorkerDrainsBacklog(t *testing.T) {
	relayer := &batchRelayer{backlog: RelayBatchSize*2 + 3}
	w := NewAwardRelayWorker(relayer, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	relayer.mu.Lock()
	defer relayer.mu.Unlock()
	if relayer.backlog != 0 {
		t.Fatalf("backlog = %d, want 0", relayer.backlog)
	}
}
