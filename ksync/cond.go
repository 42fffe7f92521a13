package ksync

import (
	"github.com/joeycumines/nachos-go/intr"
	"github.com/joeycumines/nachos-go/kthread"
)

// Cond is a condition variable layered on a non-transferring wait
// queue: blocked waiters donate to nobody, since the condition itself
// holds no resource.
type Cond struct {
	sched *kthread.Scheduler
	lock  *Lock
	queue *kthread.WaitQueue
}

// NewCond creates a Cond associated with lock. lock must be held by the
// caller around every Sleep/Wake/WakeAll call.
func NewCond(lock *Lock) *Cond {
	return &Cond{sched: lock.sched, lock: lock, queue: lock.sched.NewWaitQueue(false)}
}

// Sleep releases the associated lock and blocks the caller, atomically
// with respect to interrupts, then reacquires the lock before returning.
func (c *Cond) Sleep() {
	if !c.lock.IsHeldByCurrentThread() {
		panic("ksync: Cond.Sleep called without holding the associated lock")
	}
	restore := intr.Guard(c.sched.Gate())
	c.lock.Release()
	c.sched.Sleep(c.queue)
	restore()
	c.lock.Acquire()
}

// Wake moves the next waiter (if any) onto the CPU ready queue.
func (c *Cond) Wake() {
	defer intr.Guard(c.sched.Gate())()
	if next := c.queue.NextThread(); next != nil {
		c.sched.Ready(next)
	}
}

// WakeAll wakes every current waiter.
func (c *Cond) WakeAll() {
	defer intr.Guard(c.sched.Gate())()
	for next := c.queue.NextThread(); next != nil; next = c.queue.NextThread() {
		c.sched.Ready(next)
	}
}
