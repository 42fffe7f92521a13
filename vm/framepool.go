package vm

import (
	"github.com/joeycumines/nachos-go/ksync"
	"github.com/joeycumines/nachos-go/kthread"
)

// FramePool is the kernel-wide list of free physical frame numbers. It
// is guarded by its own lock, distinct from the scheduler's
// interrupt-disable discipline, since it is touched by
// whichever process thread happens to be running, not scheduler
// internals. A thread that finds the pool empty blocks on the
// associated condition variable until a Return wakes it.
type FramePool struct {
	lock  *ksync.Lock
	avail *ksync.Cond
	free  []int
}

// NewFramePool creates a pool seeded with frames [0, numFrames).
func NewFramePool(sched *kthread.Scheduler, numFrames int) *FramePool {
	lock := ksync.NewLock(sched)
	p := &FramePool{
		lock:  lock,
		avail: ksync.NewCond(lock),
		free:  make([]int, numFrames),
	}
	for i := range p.free {
		p.free[i] = i
	}
	return p
}

// Allocate pops a frame, blocking the caller until one is available.
func (p *FramePool) Allocate() int {
	p.lock.Acquire()
	defer p.lock.Release()
	for len(p.free) == 0 {
		p.avail.Sleep()
	}
	n := len(p.free) - 1
	frame := p.free[n]
	p.free = p.free[:n]
	return frame
}

// Return gives frame back to the pool and wakes one frame-starved
// waiter, if any.
func (p *FramePool) Return(frame int) {
	p.lock.Acquire()
	defer p.lock.Release()
	p.free = append(p.free, frame)
	p.avail.Wake()
}

// ReturnAll returns every frame in frames, in order, waking one waiter
// per returned frame.
func (p *FramePool) ReturnAll(frames []int) {
	for _, f := range frames {
		p.Return(f)
	}
}

// Available reports the number of free frames, for diagnostics.
func (p *FramePool) Available() int {
	p.lock.Acquire()
	defer p.lock.Release()
	return len(p.free)
}
