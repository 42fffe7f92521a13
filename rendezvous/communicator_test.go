package rendezvous

import (
	"testing"

	"github.com/joeycumines/nachos-go/kthread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeakDeliversToOneListener(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	c := New(s)

	s.Fork("speaker", func() { c.Speak(42) })
	got := c.Listen()
	assert.Equal(t, int32(42), got)
}

func TestListenerFirstThenSpeaker(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	c := New(s)

	var got int32
	var done bool
	s.Fork("listener", func() {
		got = c.Listen()
		done = true
	})

	for i := 0; i < 4; i++ {
		s.Yield()
	}
	require.False(t, done, "a listener must not return before a speaker arrives")

	c.Speak(7)
	for i := 0; i < 4; i++ {
		s.Yield()
	}
	require.True(t, done)
	assert.Equal(t, int32(7), got)
}

// TestManySpeakersManyListeners pairs every speak with exactly one
// listen: the received multiset must equal the spoken multiset, with no
// word lost or duplicated.
func TestManySpeakersManyListeners(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	c := New(s)

	const n = 6
	var words []int32
	for i := 0; i < n; i++ {
		w := int32(100 + i)
		s.Fork("speaker", func() { c.Speak(w) })
	}
	for i := 0; i < n; i++ {
		s.Fork("listener", func() { words = append(words, c.Listen()) })
	}

	for i := 0; i < 20*n; i++ {
		s.Yield()
	}

	require.Len(t, words, n)
	want := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		want = append(want, int32(100+i))
	}
	assert.ElementsMatch(t, want, words)
}

func TestSpeakerBlocksUntilPaired(t *testing.T) {
	s := kthread.New(kthread.Priority, nil)
	s.NewRoot("root")
	c := New(s)

	var returned bool
	s.Fork("speaker", func() {
		c.Speak(1)
		returned = true
	})

	for i := 0; i < 6; i++ {
		s.Yield()
	}
	require.False(t, returned, "a speaker must not return before a listener takes its word")

	assert.Equal(t, int32(1), c.Listen())
	for i := 0; i < 6; i++ {
		s.Yield()
	}
	assert.True(t, returned)
}
