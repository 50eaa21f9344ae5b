package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "attempt:1:lock")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
	if len(l.locks) != 0 {
		t.Errorf("locks map not cleaned up: %d entries", len(l.locks))
	}
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) blocked by a: %v", err)
	}
	releaseB()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); err == nil {
		t.Fatal("expected context error while key is held")
	}

	release()
	release() // second call is a no-op

	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}
