// Package workerpool provides a bounded-concurrency job runner used by the
// matrix reuse cache's background cacher (spec.md §4.4): each power a
// matrix worker computes on its way to the target is pushed here as soon
// as it is computed, to be appended to the spill file by a background
// goroutine. Submitting blocks the worker only while every slot is busy.
package workerpool

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted jobs with bounded concurrency. Unlike the teacher's
// ghostpool, there is no pre-warmed resource to acquire — the thing being
// bounded is concurrency slots, not recyclable containers — so Submit
// acquires a semaphore weight, runs the job in its own goroutine, and
// always releases the weight on every exit path, mirroring ghostpool's
// acquire/use/release discipline without its container lifecycle.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
	active   atomic.Int64
	wg       sync.WaitGroup
}

// New creates a pool that runs at most capacity jobs concurrently.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// NewDefault sizes the pool at runtime.NumCPU(), the cacher pool size
// spec.md §4.4 calls for.
func NewDefault() *Pool {
	return New(runtime.NumCPU())
}

// Submit blocks until a concurrency slot is free (or ctx is done), then
// runs fn in its own goroutine and returns immediately. The slot is
// released when fn returns, regardless of panic or error: a panic in fn is
// recovered and logged here, and any error fn meets is fn's own to log,
// since this pool has no notion of job success beyond slot accounting.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.active.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer p.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("workerpool: job panicked", "recover", r)
			}
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every submitted job has finished running. Useful in
// tests and at shutdown; the cacher itself is fire-and-forget in steady
// state.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats mirrors ghostpool's PoolManager.Stats shape, reporting current
// pool occupancy.
type Stats struct {
	Active   int64
	Capacity int64
}

func (p *Pool) Stats() Stats {
	return Stats{Active: p.active.Load(), Capacity: p.capacity}
}
