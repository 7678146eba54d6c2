package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Close idempotently shuts the cache down (spec §4.9): it stops accepting
// new work, lets in-flight prefetches run for up to ShutdownGracePeriod
// (mainLoop's drainGraceWindow enforces that bound from the inside), then
// force-completes anything still outstanding with ErrClosed so every
// waiter unblocks (spec S6: "every get call either completes with a
// value or fails with Closed"). Safe to call more than once and safe to
// call concurrently with Get, mirroring triePrefetcher.terminate's
// atomic-guarded single-shot teardown.
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)

		// Bound the worker join itself as a safety net on top of
		// mainLoop's own grace-period timer, the way FeeMarketCache races
		// its loop's completion against closeCh rather than trusting it
		// to exit promptly unconditionally.
		ctx, cancel := context.WithTimeout(context.Background(), c.joinBound())
		defer cancel()

		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			c.workerWG.Wait()
			return nil
		})
		done := make(chan error, 1)
		go func() { done <- g.Wait() }()
		select {
		case <-done:
		case <-ctx.Done():
		}

		c.forceCompletePending()

		if c.pool != nil {
			c.pool.release()
		}
	})
	return nil
}

// joinBound returns how long Close will wait on the worker before giving
// up regardless of its own state, a modest margin over
// ShutdownGracePeriod so the worker's internal timer fires first in the
// common case.
func (c *Cache[K, V]) joinBound() time.Duration {
	if c.cfg.ShutdownGracePeriod > 0 {
		return c.cfg.ShutdownGracePeriod + 200*time.Millisecond
	}
	return 200 * time.Millisecond
}

// forceCompletePending resolves every load still tracked in the in-flight
// table with ErrClosed. Anything that legitimately finished during the
// grace period was already committed and removed by handlePrefetchResult;
// whatever remains here either never reached resultCh before mainLoop gave
// up, or is a synchronous load whose provider call is still running.
func (c *Cache[K, V]) forceCompletePending() {
	c.mu.Lock()
	pending := c.inflight.drainAll()
	c.mu.Unlock()

	var zero V
	for _, p := range pending {
		p.complete(zero, ErrClosed)
	}
}

// Closed reports whether Close has been called.
func (c *Cache[K, V]) Closed() bool {
	return c.closed.Load()
}
