// Package alarm implements the timer-driven sleep queue: a min-heap of
// (wake tick, thread) entries, drained by a scheduler tick
// hook so that threads woken by the clock become READY strictly before
// the triggering dispatch picks its next thread to run.
package alarm

import (
	"container/heap"

	"github.com/joeycumines/nachos-go/kthread"
)

// entry is one pending wakeup.
type entry struct {
	wake uint64
	t    *kthread.Thread
}

// waitHeap is a min-heap of entries ordered by wake tick.
type waitHeap []entry

func (h waitHeap) Len() int           { return len(h) }
func (h waitHeap) Less(i, j int) bool { return h[i].wake < h[j].wake }
func (h waitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *waitHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *waitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Alarm is the kernel's clock-driven wake service. One Alarm is created
// per scheduler and registered as a tick hook; WaitUntil is the only
// time-bounded blocking primitive in the kernel (sleep itself is not
// interruptible).
type Alarm struct {
	sched *kthread.Scheduler
	heap  waitHeap
	// park is the non-transferring queue every sleeping thread waits
	// on. It has no holder: the clock, not a donation policy, decides
	// who wakes, so wakeups pull a specific thread out of park by
	// identity (WaitQueue.Remove) rather than via NextThread.
	park *kthread.WaitQueue
}

// New creates an Alarm bound to sched and registers its wake check as a
// tick hook, so every dispatch drains due entries before the scheduler
// picks the next thread.
func New(sched *kthread.Scheduler) *Alarm {
	a := &Alarm{sched: sched, park: sched.NewWaitQueue(false)}
	sched.OnTick(a.tick)
	return a
}

// WaitUntil blocks the calling thread until the clock has advanced by
// at least x ticks. The wake check compares with strict `<`, so a
// thread due at exactly the target tick waits one tick longer.
func (a *Alarm) WaitUntil(x uint64) {
	if x == 0 {
		return
	}
	wake := a.sched.Ticks() + x
	for a.sched.Ticks() < wake {
		heap.Push(&a.heap, entry{wake: wake, t: a.sched.Current()})
		a.sched.Sleep(a.park)
	}
}

// tick is the registered hook: pop every entry due strictly before now
// and move its thread onto the CPU ready queue.
func (a *Alarm) tick(now uint64) {
	for a.heap.Len() > 0 && a.heap[0].wake < now {
		e := heap.Pop(&a.heap).(entry)
		a.park.Remove(e.t)
		a.sched.Ready(e.t)
	}
}

// Pending returns the number of threads currently waiting on the alarm,
// for diagnostics and tests.
func (a *Alarm) Pending() int { return a.heap.Len() }
