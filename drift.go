package driftq

import "time"

// drift is one queued in-flight task: the element it was built from, the
// running task's handle, and the arrival timestamp. The queue exclusively
// owns the links; a drift never escapes the package.
//
// A zero `at` is the removed sentinel: the drift has been unlinked, by decay
// or by timeout eviction, and must not be unlinked again.
type drift[E any] struct {
	prev, next *drift[E]
	elem       E
	task       *Handle
	at         time.Time
}

// linked reports whether the drift is currently part of the list.
func (d *drift[E]) linked() bool { return !d.at.IsZero() }

// append links d at the tail. Caller holds the queue mutex.
func (q *Queue[E]) append(d *drift[E]) {
	if q.tail == nil {
		q.head, q.tail = d, d
	} else {
		d.prev = q.tail
		q.tail.next = d
		q.tail = d
	}
	q.pending++
}

// unlink removes d from the list and marks it with the removed sentinel.
// It is the single place a drift leaves the list; callers guard it with
// d.linked(). Caller holds the queue mutex.
func (q *Queue[E]) unlink(d *drift[E]) {
	if d.prev != nil {
		d.prev.next = d.next
	} else {
		q.head = d.next
	}
	if d.next != nil {
		d.next.prev = d.prev
	} else {
		q.tail = d.prev
	}
	d.prev, d.next = nil, nil
	d.at = time.Time{}
	q.pending--
}
