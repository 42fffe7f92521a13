// Package ksync provides the synchronization primitives layered on the
// scheduler's wait queues: a binary Lock and a Cond condition variable.
package ksync

import (
	"github.com/joeycumines/nachos-go/intr"
	"github.com/joeycumines/nachos-go/kthread"
)

// Lock is a binary mutex backed by a transferring wait queue, so a
// thread blocked on Acquire donates its priority/tickets to whichever
// thread currently holds the lock.
type Lock struct {
	sched  *kthread.Scheduler
	queue  *kthread.WaitQueue
	heldBy *kthread.Thread
}

// NewLock creates an unheld Lock bound to sched.
func NewLock(sched *kthread.Scheduler) *Lock {
	return &Lock{sched: sched, queue: sched.NewWaitQueue(true)}
}

// Acquire blocks until the calling thread holds the lock. If the lock is
// free, the caller becomes holder immediately; otherwise it enqueues and
// sleeps, donating to the current holder, and becomes holder only once a
// release's nextThread installs it.
func (l *Lock) Acquire() {
	defer intr.Guard(l.sched.Gate())()
	cur := l.sched.Current()
	if l.heldBy == nil {
		l.queue.Acquire(cur)
		l.heldBy = cur
		return
	}
	l.sched.Sleep(l.queue)
	// On wake, the releaser's nextThread has already installed us as
	// the queue's holder.
	l.heldBy = l.queue.Holder()
}

// Release gives up the lock and, if a waiter exists, hands it the lock
// and marks it READY so it actually runs again.
func (l *Lock) Release() {
	defer intr.Guard(l.sched.Gate())()
	if l.heldBy != l.sched.Current() {
		panic("ksync: Release called by thread that does not hold the lock")
	}
	l.heldBy = nil
	if next := l.queue.NextThread(); next != nil {
		l.heldBy = next
		l.sched.Ready(next)
	}
}

// IsHeldByCurrentThread reports whether the calling thread holds the
// lock, used by Cond's sleep/wake assertions.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.heldBy == l.sched.Current()
}
