package ksync

import (
	"testing"

	"github.com/joeycumines/nachos-go/kthread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockMutualExclusion(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	l := NewLock(s)

	var inside bool
	var entries int
	for i := 0; i < 3; i++ {
		s.Fork("worker", func() {
			for j := 0; j < 4; j++ {
				l.Acquire()
				assert.False(t, inside, "two threads inside the same critical section")
				inside = true
				s.Yield() // give another thread the chance to misbehave
				inside = false
				entries++
				l.Release()
			}
		})
	}

	for i := 0; i < 60; i++ {
		s.Yield()
	}
	assert.Equal(t, 12, entries)
	assert.False(t, l.IsHeldByCurrentThread())
}

// TestLockDonationAndHandoff is the donation-through-a-lock scenario run
// end-to-end on real threads: the low-priority root holds the lock, T2
// (priority 4) and T1 (priority 5) are forked, T1 blocks on the lock and
// the root's effective priority rises to 5 (which keeps T2 waiting on
// the ready queue), and release hands the lock to T1 before T2.
func TestLockDonationAndHandoff(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	root := s.NewRoot("T3")
	l := NewLock(s)

	l.Acquire()

	var order []string
	t2 := s.Fork("T2", func() {
		l.Acquire()
		order = append(order, "T2")
		l.Release()
	})
	s.SetPriority(t2, 4)
	t1 := s.Fork("T1", func() {
		l.Acquire()
		order = append(order, "T1")
		l.Release()
	})
	s.SetPriority(t1, 5)

	// let T1 block on the lock; the boosted root then outranks T2
	for i := 0; i < 4; i++ {
		s.Yield()
	}
	assert.Equal(t, int64(5), s.GetEffectivePriority(root),
		"the holder must inherit the highest waiting priority")

	l.Release()
	for i := 0; i < 8; i++ {
		s.Yield()
	}
	require.Equal(t, []string{"T1", "T2"}, order)
	assert.Equal(t, s.GetPriority(root), s.GetEffectivePriority(root),
		"donation must drain once the lock is gone")
}

func TestReleaseByNonHolderPanics(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	l := NewLock(s)
	assert.Panics(t, func() { l.Release() })
}

func TestIsHeldByCurrentThread(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	l := NewLock(s)

	assert.False(t, l.IsHeldByCurrentThread())
	l.Acquire()
	assert.True(t, l.IsHeldByCurrentThread())
	l.Release()
	assert.False(t, l.IsHeldByCurrentThread())
}
