package kthread

const (
	priorityMinimum = 0
	priorityMaximum = 7
	priorityDefault = 1
)

// priorityPolicy implements donation by maximum: a thread's effective
// priority is the max of its own priority and the
// highest effective priority among waiters on any transferring queue it
// holds.
type priorityPolicy struct{}

func (priorityPolicy) initial() int64 { return priorityDefault }

func (priorityPolicy) validSet(v int64) bool {
	return v >= priorityMinimum && v <= priorityMaximum
}

func (priorityPolicy) onEnqueue(q *WaitQueue, t *Thread) {
	q.invalidateCache()
	if q.transfer && q.holder != nil {
		priorityPolicy{}.propagate(q.holder, map[*Thread]bool{})
	}
}

func (priorityPolicy) onAcquire(q *WaitQueue, t *Thread) {
	priorityPolicy{}.propagate(t, map[*Thread]bool{})
}

func (priorityPolicy) onRelease(q *WaitQueue, outgoing *Thread) {
	priorityPolicy{}.propagate(outgoing, map[*Thread]bool{})
}

// pick chooses the waiter with the highest effective priority, breaking
// ties by FIFO (insertion order). The selection cache is an
// accelerator only; a cold pick recomputes the same answer.
func (priorityPolicy) pick(q *WaitQueue) *Thread {
	if q.cacheValid && q.cachedBest != nil {
		return q.cachedBest
	}
	best := q.waiters[0]
	for _, w := range q.waiters[1:] {
		if w.e > best.e {
			best = w
		}
	}
	q.cachedBest = best
	q.cacheValid = true
	return best
}

// recomputeEffective recomputes t.e as max(t.p, donations from every
// transferring queue t holds).
func (priorityPolicy) recomputeEffective(t *Thread) bool {
	old := t.e
	best := t.p
	for q := range t.held {
		if !q.transfer {
			continue
		}
		for _, w := range q.waiters {
			if w.e > best {
				best = w.e
			}
		}
	}
	t.e = best
	return t.e != old
}

// propagate recomputes t's effective priority and, on change, follows
// t.waitingOn to the queue's holder and recurses. path tracks visited
// threads so a mutual-join cycle (T1.join(T2), T2.join(T1)) terminates
// instead of looping forever.
func (priorityPolicy) propagate(t *Thread, path map[*Thread]bool) {
	if path[t] {
		return
	}
	path[t] = true

	changed := priorityPolicy{}.recomputeEffective(t)

	if q := t.waitingOn; q != nil {
		q.invalidateCache()
	}

	if !changed {
		return
	}
	if q := t.waitingOn; q != nil && q.transfer && q.holder != nil {
		priorityPolicy{}.propagate(q.holder, path)
	}
}
