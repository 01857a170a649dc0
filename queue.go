package driftq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ygrebnov/driftq/metrics"
)

// Queue is a bounded, self-expiring queue of in-flight tasks ("drifts").
// Methods are safe for concurrent use. Construct via New; the zero value is
// not usable.
//
// All list, counter, and timer state is owned by the queue and mutated under
// a single mutex; each discrete event (submission, task settlement, timer
// fire) is processed in one critical section. Handlers run after the
// critical section, in event order, so they may call back into the queue.
type Queue[E any] struct {
	cfg    config[E]
	worker Worker[E]

	mu      sync.Mutex
	head    *drift[E]
	tail    *drift[E]
	pending int

	// single deadline timer, always targeting head.at + taskTimeout.
	// timerGen invalidates callbacks that lost the race to a rearm.
	timer    clockwork.Timer
	timerGen uint64

	// broadcast waiter lists: resolve all, clear list.
	capWaiters  []chan int
	idleWaiters []chan struct{}

	submitted    metrics.Counter
	decayed      metrics.Counter
	timedOut     metrics.Counter
	failures     metrics.Counter
	lateFailures metrics.Counter
	inFlight     metrics.UpDownCounter
	residence    metrics.Histogram
}

// New creates a Queue evicting drifts older than taskTimeout. The worker is
// invoked once per submitted element, immediately, on its own goroutine.
func New[E any](taskTimeout time.Duration, worker Worker[E], opts ...Option[E]) (*Queue[E], error) {
	cfg := defaultConfig[E]()
	cfg.taskTimeout = taskTimeout
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, ErrNilWorker
	}

	q := &Queue[E]{cfg: cfg, worker: worker}
	q.initInstruments(cfg.provider)
	return q, nil
}

func (q *Queue[E]) initInstruments(p metrics.Provider) {
	q.submitted = p.Counter("driftq_submitted_total",
		metrics.WithDescription("elements admitted to the queue"))
	q.decayed = p.Counter("driftq_decayed_total",
		metrics.WithDescription("drifts removed on natural completion"))
	q.timedOut = p.Counter("driftq_timed_out_total",
		metrics.WithDescription("drifts evicted after outliving the task timeout"))
	q.failures = p.Counter("driftq_worker_failures_total",
		metrics.WithDescription("worker failures delivered to the error handler"))
	q.lateFailures = p.Counter("driftq_late_failures_total",
		metrics.WithDescription("worker failures observed after timeout eviction"))
	q.inFlight = p.UpDownCounter("driftq_pending",
		metrics.WithDescription("currently queued drifts"))
	q.residence = p.Histogram("driftq_residence_seconds",
		metrics.WithDescription("time from submission to removal"),
		metrics.WithUnit("seconds"))
}

// Submit appends one drift per element, in input order, each starting its
// worker immediately, then blocks until the queue has free capacity again.
// It returns the capacity at the moment of release, or ctx.Err() if the
// caller gives up waiting; the submitted tasks keep running either way.
//
// ctx is also the context handed to the workers started by this call.
func (q *Queue[E]) Submit(ctx context.Context, elems ...E) (int, error) {
	q.mu.Lock()
	now := q.cfg.clock.Now()
	wasEmpty := q.head == nil
	for _, e := range elems {
		d := &drift[E]{elem: e, task: newHandle(), at: now}
		q.append(d)
		go q.run(ctx, d)
	}
	if len(elems) > 0 {
		q.submitted.Add(int64(len(elems)))
		q.inFlight.Add(int64(len(elems)))
		if wasEmpty {
			q.armTimer()
		}
	}
	return q.awaitCapacityLocked(ctx)
}

// Capacity returns limit - pending once that value is positive: immediately
// if it already is, otherwise after enough drifts have been removed. Every
// caller blocked at the same time is released by the same removal, with the
// identical value.
func (q *Queue[E]) Capacity(ctx context.Context) (int, error) {
	q.mu.Lock()
	return q.awaitCapacityLocked(ctx)
}

// awaitCapacityLocked resolves or enqueues a capacity waiter. It takes
// ownership of the locked mutex and releases it before blocking.
func (q *Queue[E]) awaitCapacityLocked(ctx context.Context) (int, error) {
	if c := q.cfg.concurrency - q.pending; c > 0 {
		q.mu.Unlock()
		return c, nil
	}
	ch := make(chan int, 1)
	q.capWaiters = append(q.capWaiters, ch)
	q.mu.Unlock()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		q.dropCapWaiter(ch)
		// a broadcast may have raced the cancellation; prefer the value.
		select {
		case c := <-ch:
			return c, nil
		default:
		}
		return 0, ctx.Err()
	}
}

// Idle blocks until the queue is empty; it returns immediately if it
// already is.
func (q *Queue[E]) Idle(ctx context.Context) error {
	q.mu.Lock()
	if q.pending == 0 {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.idleWaiters = append(q.idleWaiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.dropIdleWaiter(ch)
		select {
		case <-ch:
			return nil
		default:
		}
		return ctx.Err()
	}
}

// Len returns the current number of queued drifts.
func (q *Queue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Snapshot returns the currently queued elements, oldest first. The result
// is a copy; taking it does not mutate queue state.
func (q *Queue[E]) Snapshot() []E {
	q.mu.Lock()
	defer q.mu.Unlock()
	elems := make([]E, 0, q.pending)
	for d := q.head; d != nil; d = d.next {
		elems = append(elems, d.elem)
	}
	return elems
}

// run executes the worker for one drift and settles it.
func (q *Queue[E]) run(ctx context.Context, d *drift[E]) {
	err := q.exec(ctx, d.elem)
	d.task.settle(err)
	q.settle(d, err)
}

// exec invokes the worker, converting a panic into an error so a misbehaving
// task cannot take the process down.
func (q *Queue[E]) exec(ctx context.Context, elem E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return q.worker(ctx, elem)
}

// settle handles natural completion of a drift's task. If the drift was
// already evicted by timeout, a success is a no-op and a failure is only
// logged: the timeout handler has accounted for the drift, so the error
// handler stays silent.
func (q *Queue[E]) settle(d *drift[E], err error) {
	q.mu.Lock()
	if !d.linked() {
		q.mu.Unlock()
		if err != nil {
			q.lateFailures.Add(1)
			q.cfg.logger.Warn("task failed after timeout eviction", zap.Error(err))
		}
		return
	}

	q.residence.Record(q.cfg.clock.Since(d.at).Seconds())
	q.decayed.Add(1)
	q.inFlight.Add(-1)
	if err != nil {
		q.failures.Add(1)
	}
	q.decay(d)
	q.mu.Unlock()

	if err != nil && q.cfg.onError != nil {
		q.cfg.onError(err, d.elem)
	}
}

// decay unlinks a drift, maintains the deadline timer, and releases any
// waiters the removal unblocked. Caller holds the mutex.
//
// Removing the head normally forces a rearm for the new head; when the next
// drift carries the exact same arrival timestamp the armed timer already
// fires at the right instant, so the rearm is skipped.
func (q *Queue[E]) decay(d *drift[E]) {
	wasHead := d == q.head
	sameBatch := wasHead && d.next != nil && d.next.at.Equal(d.at)
	q.unlink(d)
	if wasHead && !sameBatch {
		q.armTimer()
	}
	q.notify()
}

// armTimer retargets the single deadline timer at the current head, or
// clears it when the queue is empty. Bumping timerGen first makes any
// in-flight callback from the previous arm a no-op even if Stop lost the
// race to it. Caller holds the mutex.
func (q *Queue[E]) armTimer() {
	q.timerGen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if q.head == nil {
		return
	}
	gen := q.timerGen
	delay := q.head.at.Add(q.cfg.taskTimeout).Sub(q.cfg.clock.Now())
	if delay < 0 {
		delay = 0
	}
	q.timer = q.cfg.clock.AfterFunc(delay, func() { q.expire(gen) })
}

// expire evicts the leading run of drifts sharing the head's arrival
// timestamp. Drifts submitted in one batch expire together, in submission
// order, with a single rearm at the end; a fire that raced a concurrent
// decay (stale generation or empty queue) is a no-op.
func (q *Queue[E]) expire(gen uint64) {
	q.mu.Lock()
	if gen != q.timerGen || q.head == nil {
		q.mu.Unlock()
		return
	}

	at := q.head.at
	var evicted []*drift[E]
	for q.head != nil && q.head.at.Equal(at) {
		d := q.head
		q.unlink(d)
		evicted = append(evicted, d)
	}
	q.timedOut.Add(int64(len(evicted)))
	q.inFlight.Add(-int64(len(evicted)))
	for range evicted {
		q.residence.Record(q.cfg.taskTimeout.Seconds())
	}
	q.armTimer()
	q.notify()
	q.mu.Unlock()

	q.cfg.logger.Debug("evicted expired drifts", zap.Int("count", len(evicted)))
	if q.cfg.onTimeout != nil {
		for _, d := range evicted {
			q.cfg.onTimeout(d.elem, d.task)
		}
	}
}

// notify recomputes capacity after a removal and broadcasts to the waiter
// lists: all capacity waiters get the identical value, all idle waiters are
// released when pending reaches zero. Caller holds the mutex.
func (q *Queue[E]) notify() {
	if c := q.cfg.concurrency - q.pending; c > 0 && len(q.capWaiters) > 0 {
		for _, ch := range q.capWaiters {
			ch <- c
		}
		q.capWaiters = nil
	}
	if q.pending == 0 && len(q.idleWaiters) > 0 {
		for _, ch := range q.idleWaiters {
			close(ch)
		}
		q.idleWaiters = nil
	}
}

func (q *Queue[E]) dropCapWaiter(ch chan int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.capWaiters {
		if w == ch {
			q.capWaiters = append(q.capWaiters[:i], q.capWaiters[i+1:]...)
			return
		}
	}
}

func (q *Queue[E]) dropIdleWaiter(ch chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.idleWaiters {
		if w == ch {
			q.idleWaiters = append(q.idleWaiters[:i], q.idleWaiters[i+1:]...)
			return
		}
	}
}
