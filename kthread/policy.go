package kthread

// policy is the donation strategy installed on a Scheduler: priority
// (max-based) or lottery (additive, weighted-random). It owns both the
// selection rule (pick) and the propagation rule that keeps every
// thread's effective value consistent with what it currently holds and
// who is waiting on it.
type policy interface {
	// initial returns the default own-priority/ticket value for a newly
	// forked thread.
	initial() int64

	// validSet reports whether v is an acceptable own value for
	// SetPriority/IncreasePriority/DecreasePriority.
	validSet(v int64) bool

	// onEnqueue is invoked after t has been appended to q.waiters.
	onEnqueue(q *WaitQueue, t *Thread)

	// onAcquire is invoked after t has been installed as q's holder.
	onAcquire(q *WaitQueue, t *Thread)

	// onRelease is invoked after outgoing has been cleared as q's
	// holder, before a replacement is picked.
	onRelease(q *WaitQueue, outgoing *Thread)

	// pick selects which waiter in q.waiters should become the next
	// holder. q.waiters is guaranteed non-empty.
	pick(q *WaitQueue) *Thread

	// recomputeEffective recomputes t.e from t.p and the queues t holds,
	// returning whether the value changed.
	recomputeEffective(t *Thread) bool

	// propagate recomputes t's effective value and, if it changed,
	// follows t.waitingOn to the holder of that queue and recurses,
	// stopping at any thread already present in path (breaking cycles
	// formed by mutual Join). path is mutated in place.
	propagate(t *Thread, path map[*Thread]bool)
}

// setPriority validates and applies a new own priority/ticket value for
// t, then propagates the resulting donation change. Shared by the
// Scheduler's SetPriority/IncreasePriority/DecreasePriority entry points
// under both policies.
func setPriority(t *Thread, v int64) {
	p := t.sched.policy
	if !p.validSet(v) {
		fail("SetPriority", "value out of range for installed policy")
	}
	t.p = v
	p.propagate(t, map[*Thread]bool{})
}
