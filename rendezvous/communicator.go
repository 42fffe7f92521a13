// Package rendezvous implements the Communicator synchronous
// speaker/listener channel: a single 32-bit word is exchanged per
// pairing, and neither side returns until paired.
package rendezvous

import (
	"github.com/joeycumines/nachos-go/ksync"
	"github.com/joeycumines/nachos-go/kthread"
)

// Communicator pairs one Speak call with one Listen call at a time.
type Communicator struct {
	lock        *ksync.Lock
	nonSpeaker  *ksync.Cond
	nonListener *ksync.Cond

	hasWord  bool
	word     int32
	listener int
}

// New creates a Communicator bound to sched.
func New(sched *kthread.Scheduler) *Communicator {
	c := &Communicator{lock: ksync.NewLock(sched)}
	c.nonSpeaker = ksync.NewCond(c.lock)
	c.nonListener = ksync.NewCond(c.lock)
	return c
}

// Speak delivers word to exactly one matching Listen call, blocking
// until that pairing completes.
func (c *Communicator) Speak(word int32) {
	c.lock.Acquire()
	defer c.lock.Release()

	for c.listener == 0 || c.hasWord {
		c.nonListener.Sleep()
	}
	c.word = word
	c.hasWord = true
	c.nonSpeaker.Wake()
	c.listener--
}

// Listen blocks until a matching Speak delivers a word, then returns it.
func (c *Communicator) Listen() int32 {
	c.lock.Acquire()
	defer c.lock.Release()

	for !c.hasWord {
		c.nonListener.Wake()
		c.listener++
		c.nonSpeaker.Sleep()
	}
	word := c.word
	c.hasWord = false
	c.nonListener.Wake()
	return word
}
