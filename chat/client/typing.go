package client

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TypingIdle is how long after the last keystroke typing stops
const TypingIdle = 3 * time.Second

// TypingSender is the part of *Client a TypingDebouncer needs
type TypingSender interface {
	SendTyping(roomID string, isTyping bool) error
}

// TypingDebouncer turns a stream of keystrokes into one typing=true when
// typing starts and one typing=false once the user goes quiet
type TypingDebouncer struct {
	mu     sync.Mutex
	sender TypingSender
	roomID string
	idle   time.Duration
	timer  *time.Timer
	gen    int
	typing bool
}

// NewTypingDebouncer uses TypingIdle when idle is zero
func NewTypingDebouncer(sender TypingSender, roomID string, idle time.Duration) *TypingDebouncer {
	if idle <= 0 {
		idle = TypingIdle
	}
	return &TypingDebouncer{sender: sender, roomID: roomID, idle: idle}
}

// Keystroke marks activity
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.typing {
		d.typing = true
		d.emit(true)
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() { d.expire(gen) })
}

// Stop ends typing right away, for example when the message is sent
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.typing {
		d.typing = false
		d.emit(false)
	}
}

func (d *TypingDebouncer) expire(gen int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || !d.typing {
		return
	}
	d.typing = false
	d.emit(false)
}

func (d *TypingDebouncer) emit(isTyping bool) {
	if err := d.sender.SendTyping(d.roomID, isTyping); err != nil {
		zap.S().Debugw("failed to send typing status",
			"roomId", d.roomID,
			"error", err)
	}
}
