package kthread

import "math/rand/v2"

const ticketsDefault = 1

// lotteryPolicy implements donation by addition: a thread's effective
// tickets equal its own tickets plus the sum of
// effective tickets of every waiter on a transferring queue it holds.
// Selection is a weighted random draw over the waiter list.
type lotteryPolicy struct {
	rng *rand.Rand
}

func (lotteryPolicy) initial() int64 { return ticketsDefault }

func (lotteryPolicy) validSet(v int64) bool { return v > 0 }

func (p lotteryPolicy) onEnqueue(q *WaitQueue, t *Thread) {
	q.recomputeSums()
	q.invalidateCache()
	if q.transfer && q.holder != nil {
		p.propagate(q.holder, map[*Thread]bool{})
	}
}

func (p lotteryPolicy) onAcquire(q *WaitQueue, t *Thread) {
	p.propagate(t, map[*Thread]bool{})
}

func (p lotteryPolicy) onRelease(q *WaitQueue, outgoing *Thread) {
	p.propagate(outgoing, map[*Thread]bool{})
}

// pick draws a uniform integer in [0, total) over sumEffective (when
// the queue transfers donation) or sumOwn (otherwise), then scans
// insertion order accumulating contributions until the running sum
// exceeds the draw. Totals may reach the full positive range of int32,
// so there is no per-ticket storage; the running-sum scan needs O(1)
// additional space.
func (p lotteryPolicy) pick(q *WaitQueue) *Thread {
	q.recomputeSums()

	total := q.sumOwn
	useEffective := q.transfer
	if useEffective {
		total = q.sumEffective
	}
	if total <= 0 {
		return q.waiters[0]
	}

	r := p.rng
	if r == nil {
		r = rand.New(rand.NewPCG(1, 1))
	}
	draw := r.Int64N(total)

	var running int64
	for _, w := range q.waiters {
		v := w.p
		if useEffective {
			v = w.e
		}
		running += v
		if draw < running {
			return w
		}
	}
	return q.waiters[len(q.waiters)-1]
}

// recomputeEffective recomputes t.e as t.p plus the sum of effective
// tickets donated by waiters on every transferring queue t holds.
func (lotteryPolicy) recomputeEffective(t *Thread) bool {
	old := t.e
	sum := t.p
	for q := range t.held {
		if !q.transfer {
			continue
		}
		q.recomputeSums()
		sum += q.sumEffective
	}
	t.e = sum
	return t.e != old
}

func (p lotteryPolicy) propagate(t *Thread, path map[*Thread]bool) {
	if path[t] {
		return
	}
	path[t] = true

	changed := p.recomputeEffective(t)

	if q := t.waitingOn; q != nil {
		q.recomputeSums()
		q.invalidateCache()
	}

	if !changed {
		return
	}
	if q := t.waitingOn; q != nil && q.transfer && q.holder != nil {
		p.propagate(q.holder, path)
	}
}
