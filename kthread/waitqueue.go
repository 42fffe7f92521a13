package kthread

import "golang.org/x/exp/slices"

// WaitQueue is a family of wait queues implementing priority
// inheritance across chains of held and waited-for resources. The
// donation bookkeeping is delegated to the scheduler's installed
// policy.
type WaitQueue struct {
	transfer bool
	sched    *Scheduler

	holder  *Thread
	waiters []*Thread // FIFO order; insertion order is the tie-break

	// cached donation aggregates, maintained per-policy:
	// sumOwn/sumEffective for the lottery policy, cachedBest/cacheValid
	// for the priority policy's selection-cache optimization.
	sumOwn, sumEffective int64
	cachedBest           *Thread
	cacheValid           bool
}

// TransfersDonation reports whether waiters on this queue donate to its
// holder.
func (q *WaitQueue) TransfersDonation() bool { return q.transfer }

// Holder returns the current resource holder, or nil.
func (q *WaitQueue) Holder() *Thread { return q.holder }

// Waiters returns the current waiter list in FIFO order. Callers must not
// mutate the returned slice.
func (q *WaitQueue) Waiters() []*Thread { return q.waiters }

// WaitForAccess enqueues t as a waiter on q and updates donation
// bookkeeping. Precondition: interrupts disabled, t is the current
// thread, t is not already waiting on any queue.
func (q *WaitQueue) WaitForAccess(t *Thread) {
	if t.waitingOn != nil {
		fail("WaitForAccess", "thread is already waiting on a queue")
	}
	q.waiters = append(q.waiters, t)
	t.waitingOn = q
	q.invalidateCache()
	q.sched.policy.onEnqueue(q, t)
}

// Acquire marks t as the resource holder. Precondition: q has no current
// holder and an empty waiter list.
func (q *WaitQueue) Acquire(t *Thread) {
	if q.holder != nil || len(q.waiters) != 0 {
		fail("Acquire", "queue is not empty")
	}
	q.holder = t
	if q.transfer {
		t.held[q] = struct{}{}
	}
	q.sched.policy.onAcquire(q, t)
}

// NextThread releases the current holder (if any), recomputing its
// donation-adjusted priority now that it no longer holds q, then selects
// and installs the next holder per the scheduler's policy. Returns nil if
// no waiter exists.
func (q *WaitQueue) NextThread() *Thread {
	if outgoing := q.holder; outgoing != nil {
		q.holder = nil
		if q.transfer {
			delete(outgoing.held, q)
		}
		q.sched.policy.onRelease(q, outgoing)
	}

	if len(q.waiters) == 0 {
		q.invalidateCache()
		return nil
	}

	next := q.sched.policy.pick(q)
	q.removeWaiter(next)
	next.waitingOn = nil

	q.holder = next
	if q.transfer {
		next.held[q] = struct{}{}
	}
	q.sched.policy.onAcquire(q, next)
	q.invalidateCache()
	return next
}

// releaseAll is used only by Scheduler.Finish: a finished thread's own
// join queue has no next holder (there is nobody left to join), so
// every waiter is simply moved to the ready queue rather than installed
// as the new holder.
func (q *WaitQueue) releaseAll() []*Thread {
	woken := q.waiters
	q.waiters = nil
	for _, w := range woken {
		w.waitingOn = nil
	}
	q.holder = nil
	q.invalidateCache()
	return woken
}

// Remove pulls t out of q's waiter list out of band, without installing
// any new holder. Used by the alarm service, where the clock rather
// than the donation policy decides which specific thread wakes. Reports
// whether t was found.
func (q *WaitQueue) Remove(t *Thread) bool {
	i := slices.Index(q.waiters, t)
	if i < 0 {
		return false
	}
	q.waiters = slices.Delete(q.waiters, i, i+1)
	t.waitingOn = nil
	q.invalidateCache()
	return true
}

func (q *WaitQueue) removeWaiter(t *Thread) {
	i := slices.Index(q.waiters, t)
	if i < 0 {
		fail("removeWaiter", "thread not found in waiter list")
	}
	q.waiters = slices.Delete(q.waiters, i, i+1)
}

func (q *WaitQueue) invalidateCache() {
	q.cachedBest = nil
	q.cacheValid = false
}

// recomputeSums rebuilds the cached lottery aggregates from the current
// waiter list. Incremental delta maintenance would observe the same
// values; rebuilding on every donation-relevant mutation rules out
// drift between the sums and the list.
func (q *WaitQueue) recomputeSums() {
	var own, eff int64
	for _, w := range q.waiters {
		own += w.p
		eff += w.e
	}
	q.sumOwn, q.sumEffective = own, eff
}
