package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsJobs(t *testing.T) {
	p := New(4)
	var n atomic.Int64
	for i := 0; i < 10; i++ {
		if err := p.Submit(context.Background(), func() { n.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Wait()
	if got := n.Load(); got != 10 {
		t.Fatalf("expected 10 completed jobs, got %d", got)
	}
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := New(2)
	var cur, max atomic.Int64
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		if err := p.Submit(context.Background(), func() {
			c := cur.Add(1)
			for {
				m := max.Load()
				if c <= m || max.CompareAndSwap(m, c) {
					break
				}
			}
			<-release
			cur.Add(-1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	p.Wait()

	if got := max.Load(); got > 2 {
		t.Fatalf("expected concurrency bounded at 2, saw %d", got)
	}
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	p := New(1)
	block := make(chan struct{})
	if err := p.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Submit(ctx, func() {}); err == nil {
		t.Fatal("expected context deadline error while pool is saturated")
	}
	close(block)
	p.Wait()
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := New(1)
	if err := p.Submit(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Wait() // must not propagate the panic to the test goroutine
}

func TestStatsReportsCapacity(t *testing.T) {
	p := New(3)
	if got := p.Stats().Capacity; got != 3 {
		t.Fatalf("expected capacity 3, got %d", got)
	}
}
