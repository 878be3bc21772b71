package pipeline

import (
	"sync"
	"time"

	"github.com/smazurov/camsync/internal/decode"
	"github.com/smazurov/camsync/internal/driver"
)

// Frame is one decoded image delivered on an output slot.
type Frame struct {
	Round      uint64
	Channel    int
	Serial     uint32
	Image      *decode.Image
	Metadata   driver.Metadata
	CapturedAt time.Time
}

// Slot is the single-frame mailbox of one logical channel. Publishing
// overwrites an unconsumed frame and counts it as dropped.
type Slot struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame // unconsumed frame, nil once read
	latest *Frame
	drops  uint64
	closed bool
}

func newSlot(name string) *Slot {
	s := &Slot{name: name}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Name returns the slot name, "out1" for channel 0.
func (s *Slot) Name() string { return s.name }

func (s *Slot) publish(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.frame != nil {
		s.drops++
	}
	s.frame = f
	s.latest = f
	s.cond.Signal()
}

// Next blocks until a frame newer than the last one read is published. It
// returns nil once the slot is closed. Next must only be called from one
// goroutine.
func (s *Slot) Next() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.frame == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil
	}
	f := s.frame
	s.frame = nil
	return f
}

// Latest returns the most recent frame without consuming it.
func (s *Slot) Latest() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Drops returns how many frames were overwritten before being read.
func (s *Slot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *Slot) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
