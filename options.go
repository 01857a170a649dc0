package driftq

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/driftq/metrics"
)

// Worker turns a submitted element into a running task. It is invoked once
// per element, immediately at submission, on its own goroutine. The context
// is the one passed to Submit; the queue never cancels it.
type Worker[E any] func(ctx context.Context, elem E) error

// ErrorHandler receives failures of tasks whose drift is still queued.
type ErrorHandler[E any] func(err error, elem E)

// TimeoutHandler receives each element evicted after outliving the task
// timeout, together with a handle observing the still-running task.
type TimeoutHandler[E any] func(elem E, task *Handle)

// config holds Queue configuration.
type config[E any] struct {
	// taskTimeout is the maximum time a drift may remain queued.
	// Must be positive; set positionally via New.
	taskTimeout time.Duration

	// concurrency is the admission limit. One by default; math.MaxInt
	// when unbounded.
	concurrency int

	// onError handles natural failures of still-queued drifts.
	// Default: nil (failures of linked drifts are dropped silently).
	onError ErrorHandler[E]

	// onTimeout handles evicted elements. Default: nil.
	onTimeout TimeoutHandler[E]

	// logger receives diagnostics, notably failures of already-evicted
	// tasks, which are never delivered to onError.
	// Default: zap.NewNop().
	logger *zap.Logger

	// clock supplies time and timers; swappable for tests.
	// Default: clockwork.NewRealClock().
	clock clockwork.Clock

	// provider constructs metric instruments. Default: metrics.NewNoopProvider().
	provider metrics.Provider
}

// defaultConfig centralizes default values for config.
func defaultConfig[E any]() config[E] {
	return config[E]{
		concurrency: 1, // throttling disabled: one drift at a time
		logger:      zap.NewNop(),
		clock:       clockwork.NewRealClock(),
		provider:    metrics.NewNoopProvider(),
	}
}

// validateConfig performs construction-time invariants checks.
func validateConfig[E any](cfg *config[E]) error {
	if cfg.taskTimeout <= 0 {
		return errorc.With(
			ErrInvalidConfig,
			errorc.String("taskTimeout", cfg.taskTimeout.String()),
		)
	}
	return nil
}

// Option configures a Queue. Options returning an error abort construction.
type Option[E any] func(*config[E]) error

// WithConcurrency caps the number of simultaneously queued drifts at n.
// Values below one are clamped to one.
func WithConcurrency[E any](n int) Option[E] {
	return func(cfg *config[E]) error {
		if n < 1 {
			n = 1
		}
		cfg.concurrency = n
		return nil
	}
}

// WithUnboundedConcurrency removes the admission limit entirely; Submit and
// Capacity always report free capacity.
func WithUnboundedConcurrency[E any]() Option[E] {
	return func(cfg *config[E]) error {
		cfg.concurrency = math.MaxInt
		return nil
	}
}

// WithErrorHandler registers a handler for failures of still-queued drifts.
func WithErrorHandler[E any](h ErrorHandler[E]) Option[E] {
	return func(cfg *config[E]) error {
		if h == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("option", "WithErrorHandler requires a non-nil handler"))
		}
		cfg.onError = h
		return nil
	}
}

// WithTimeoutHandler registers a handler invoked once per evicted drift.
func WithTimeoutHandler[E any](h TimeoutHandler[E]) Option[E] {
	return func(cfg *config[E]) error {
		if h == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("option", "WithTimeoutHandler requires a non-nil handler"))
		}
		cfg.onTimeout = h
		return nil
	}
}

// WithLogger sets the logger used for diagnostics. The queue never logs on
// the happy path; see the package documentation for what is reported.
func WithLogger[E any](l *zap.Logger) Option[E] {
	return func(cfg *config[E]) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("option", "WithLogger requires a non-nil logger"))
		}
		cfg.logger = l
		return nil
	}
}

// WithClock replaces the wall clock driving arrival timestamps and the
// eviction timer. Intended for tests using clockwork.NewFakeClock.
func WithClock[E any](c clockwork.Clock) Option[E] {
	return func(cfg *config[E]) error {
		if c == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("option", "WithClock requires a non-nil clock"))
		}
		cfg.clock = c
		return nil
	}
}

// WithMetrics sets the provider used to build the queue's instruments.
func WithMetrics[E any](p metrics.Provider) Option[E] {
	return func(cfg *config[E]) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("option", "WithMetrics requires a non-nil provider"))
		}
		cfg.provider = p
		return nil
	}
}
