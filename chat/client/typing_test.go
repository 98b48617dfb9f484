package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type typingRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *typingRecorder) SendTyping(_ string, isTyping bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, isTyping)
	return nil
}

func (r *typingRecorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

func TestTypingDebouncer(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(rec, "r", 50*time.Millisecond)

	d.Keystroke()
	d.Keystroke()
	d.Keystroke()
	assert.Equal(t, []bool{true}, rec.get())

	assert.Eventually(t, func() bool {
		return len(rec.get()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.get())

	// a new burst starts over
	d.Keystroke()
	d.Stop()
	d.Stop()
	assert.Equal(t, []bool{true, false, true, false}, rec.get())

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.get(), 4, "timer does not fire after Stop")
}

func TestTypingDebouncerDefaultIdle(t *testing.T) {
	d := NewTypingDebouncer(&typingRecorder{}, "r", 0)
	assert.Equal(t, TypingIdle, d.idle)
}
