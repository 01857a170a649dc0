// Package driftq provides a bounded, self-expiring queue of in-flight tasks.
//
// Each submitted element is handed to a worker function immediately; the
// queue tracks the running task as a "drift" until it either completes
// naturally (decay) or outlives the configured task timeout and is evicted.
// Callers pace themselves against the queue's capacity:
//
//	q, err := driftq.New(30*time.Second, worker,
//		driftq.WithConcurrency[string](8),
//		driftq.WithErrorHandler[string](onError),
//		driftq.WithTimeoutHandler[string](onTimeout),
//	)
//	...
//	for batch := range source {
//		// Submit blocks until capacity is available again.
//		if _, err := q.Submit(ctx, batch...); err != nil {
//			return err
//		}
//	}
//	_ = q.Idle(ctx) // wait for all in-flight tasks to drain
//
// Semantics
//   - Tasks start at submission, never lazily; the concurrency limit gates
//     admission, not execution.
//   - A single deadline timer tracks the oldest drift. When it fires, every
//     leading drift sharing that arrival instant is evicted in submission
//     order and reported through the timeout handler.
//   - Eviction does not cancel the worker. A worker that fails after its
//     drift was already evicted is not reported to the error handler; the
//     failure is logged through the configured logger instead.
//   - Capacity and Idle are broadcast conditions: every blocked caller is
//     released at once when the condition holds.
//
// The zero value of Queue is not usable; construct via New.
package driftq
