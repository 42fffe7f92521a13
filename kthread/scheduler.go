// Package kthread implements the donation-aware thread scheduling
// substrate: wait queues with pluggable priority/lottery donation
// policies, unified across the CPU ready queue and resource queues
// (locks, joins), atop cooperatively-scheduled goroutines.
package kthread

import (
	"math/rand/v2"

	"github.com/joeycumines/nachos-go/intr"
	"github.com/joeycumines/nachos-go/klog"
	"github.com/joeycumines/nachos-go/machine"
)

// Kind selects the donation policy a Scheduler runs.
type Kind int

const (
	Priority Kind = iota
	Lottery
)

// Scheduler is the kernel's single scheduling authority: it owns the
// CPU ready queue (itself an ordinary WaitQueue) and hands out fresh
// WaitQueues for locks, condition variables and joins, all sharing the
// same donation bookkeeping.
type Scheduler struct {
	gate   *intr.Gate
	policy policy

	ready   *WaitQueue
	current *Thread
	nextID  uint64

	ticks     uint64
	tickHooks []func(now uint64)
}

// New constructs a Scheduler running the given donation policy. ic may
// be nil in tests that only exercise a single goroutine.
func New(kind Kind, ic machine.InterruptController) *Scheduler {
	s := &Scheduler{gate: intr.New(ic)}
	switch kind {
	case Lottery:
		s.policy = lotteryPolicy{rng: rand.New(rand.NewPCG(1, 1))}
	default:
		s.policy = priorityPolicy{}
	}
	s.ready = &WaitQueue{transfer: false, sched: s}
	return s
}

// Gate exposes the scheduler's interrupt gate so collaborators (alarm,
// ksync, vm) can share the same disable/restore discipline.
func (s *Scheduler) Gate() *intr.Gate { return s.gate }

// Current returns the currently running thread.
func (s *Scheduler) Current() *Thread { return s.current }

// Ticks returns the number of dispatch events so far.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// OnTick registers a hook invoked at the start of every dispatch,
// before the next thread is picked. This is how the alarm service's
// wake check is wired in without the scheduler knowing about alarms.
func (s *Scheduler) OnTick(hook func(now uint64)) {
	s.tickHooks = append(s.tickHooks, hook)
}

// NewWaitQueue allocates a fresh wait queue, transferring donation or
// not.
func (s *Scheduler) NewWaitQueue(transferDonation bool) *WaitQueue {
	return &WaitQueue{transfer: transferDonation, sched: s}
}

func (s *Scheduler) newThread(name string) *Thread {
	s.nextID++
	t := &Thread{
		ID:    s.nextID,
		Name:  name,
		sched: s,
		held:  make(map[*WaitQueue]struct{}),
		runCh: make(chan struct{}, 1),
	}
	t.p = s.policy.initial()
	t.e = t.p
	t.joinQueue = &WaitQueue{transfer: true, sched: s}
	t.joinQueue.Acquire(t)
	return t
}

// NewRoot creates the scheduler's first thread, representing the
// goroutine calling NewRoot itself: no separate goroutine is spawned,
// and the thread is installed directly as the CPU ready queue's holder.
func (s *Scheduler) NewRoot(name string) *Thread {
	if s.current != nil {
		fail("NewRoot", "scheduler already has a running thread")
	}
	t := s.newThread(name)
	t.setState(Running)
	s.current = t
	s.ready.Acquire(t)
	return t
}

// Fork creates a new thread running body in its own goroutine and adds
// it to the CPU ready queue. body runs only once the scheduler dispatches
// it; Fork returns immediately to the caller.
func (s *Scheduler) Fork(name string, body func()) *Thread {
	t := s.newThread(name)
	go func() {
		<-t.runCh
		body()
		if t.State() != Finished {
			s.Finish(nil)
		}
	}()

	old := s.gate.Disable()
	defer s.gate.Restore(old)
	s.ready.WaitForAccess(t)
	t.setState(Ready)
	klog.Debug().Str("thread", t.Name).Log("forked")
	return t
}

// Yield voluntarily relinquishes the CPU, re-entering the ready queue
// behind any other ready thread of equal or higher standing.
func (s *Scheduler) Yield() {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	cur := s.current
	s.ready.WaitForAccess(cur)
	cur.setState(Ready)
	s.switchFrom(cur, false)
}

// Sleep enqueues the current thread on q and blocks it until some later
// nextThread/Ready call resumes it. Used by locks, condition variables
// and the alarm service.
func (s *Scheduler) Sleep(q *WaitQueue) {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	cur := s.current
	q.WaitForAccess(cur)
	cur.setState(Blocked)
	s.switchFrom(cur, false)
}

// Ready moves a blocked or newly-created thread onto the CPU ready
// queue: the explicit unblock operation, distinct from NextThread's
// resource-holder handoff.
func (s *Scheduler) Ready(t *Thread) {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	s.markReady(t)
}

func (s *Scheduler) markReady(t *Thread) {
	s.ready.WaitForAccess(t)
	t.setState(Ready)
}

// Finish marks the current thread FINISHED, records its optional status,
// wakes every joiner, and dispatches the next thread. Finish returns to
// its caller once the next thread has been dispatched (or at once when
// no thread is left to run); the finished thread is never dispatched
// again, so its goroutine should do nothing more than return.
func (s *Scheduler) Finish(status *int32) {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	cur := s.current
	if status != nil {
		cur.status = *status
		cur.hasStatus = true
	}
	cur.setState(Finished)

	for _, w := range cur.joinQueue.releaseAll() {
		s.markReady(w)
	}

	klog.Debug().Str("thread", cur.Name).Log("finished")
	s.switchFrom(cur, true)
}

// Join blocks the current thread until target finishes, donating to it
// in the meantime, then returns the status target recorded via Finish.
func (s *Scheduler) Join(target *Thread) (int32, bool) {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	if target.State() == Finished {
		return target.Status()
	}
	cur := s.current
	target.joinQueue.WaitForAccess(cur)
	cur.setState(Blocked)
	s.switchFrom(cur, false)
	return target.Status()
}

// GetPriority returns t's own priority/ticket value.
func (s *Scheduler) GetPriority(t *Thread) int64 { return t.Priority() }

// GetEffectivePriority returns t's donation-adjusted value.
func (s *Scheduler) GetEffectivePriority(t *Thread) int64 { return t.EffectivePriority() }

// SetPriority sets t's own priority/ticket value and propagates any
// resulting donation change.
func (s *Scheduler) SetPriority(t *Thread, v int64) {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	setPriority(t, v)
}

// IncreasePriority raises the current thread's own priority by one,
// bounded at the policy's maximum.
func (s *Scheduler) IncreasePriority() {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	cur := s.current
	if v := cur.p + 1; s.policy.validSet(v) {
		setPriority(cur, v)
	}
}

// DecreasePriority lowers the current thread's own priority by one,
// bounded at the policy's minimum.
func (s *Scheduler) DecreasePriority() {
	old := s.gate.Disable()
	defer s.gate.Restore(old)
	cur := s.current
	if v := cur.p - 1; s.policy.validSet(v) {
		setPriority(cur, v)
	}
}

// switchFrom is the core dispatch primitive. Called with interrupts
// disabled by cur (the currently running thread), it advances the tick
// count, runs the registered tick hooks (this is where alarm wakeups
// become READY, strictly before the next thread is picked), then
// releases cur as the ready queue's holder and installs whichever
// thread the policy selects next.
func (s *Scheduler) switchFrom(cur *Thread, finishing bool) {
	s.ticks++
	for _, hook := range s.tickHooks {
		hook(s.ticks)
	}

	next := s.ready.NextThread()
	if next == nil {
		if finishing {
			// No thread left to run: the kernel has nothing more to do.
			s.current = nil
			return
		}
		fail("switchFrom", "no thread is ready to run")
	}

	s.current = next
	next.setState(Running)

	if next == cur {
		return
	}

	next.runCh <- struct{}{}
	if finishing {
		return
	}
	<-cur.runCh
}
