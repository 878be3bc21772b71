package pipeline

import "sync"

// ProducerState is the state of the producer side of a Handshake.
type ProducerState int

const (
	// ProducerIdle means this round's frames are not ready yet.
	ProducerIdle ProducerState = iota
	// ProducerDone means fresh frames are waiting to be consumed.
	ProducerDone
)

func (s ProducerState) String() string {
	if s == ProducerDone {
		return "done"
	}
	return "idle"
}

// Handshake alternates one producer goroutine with a consumer so that
// exactly one produce cycle happens per consumed round and the two never
// overlap. All state is guarded by a single mutex and condition variable.
//
// The consumer calls WaitForFrames, reads the frames, then SignalNextRound.
// Stop wakes a producer blocked waiting for its go signal and joins it.
type Handshake struct {
	mu             sync.Mutex
	cond           *sync.Cond
	state          ProducerState
	producingReady bool
	exit           bool
	started        bool
	cycles         uint64
	done           chan struct{}
	stopOnce       sync.Once
}

// NewHandshake creates an idle handshake.
func NewHandshake() *Handshake {
	h := &Handshake{done: make(chan struct{})}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Start launches the producer goroutine. produce runs once per round; the
// first run starts immediately so the first round has data.
func (h *Handshake) Start(produce func()) {
	h.mu.Lock()
	if h.started || h.exit {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.producingReady = true
	h.mu.Unlock()

	go h.run(produce)
}

func (h *Handshake) run(produce func()) {
	defer close(h.done)
	for {
		h.mu.Lock()
		for !h.producingReady {
			h.cond.Wait()
		}
		if h.exit {
			h.mu.Unlock()
			return
		}
		h.producingReady = false
		h.mu.Unlock()

		produce()

		h.mu.Lock()
		h.state = ProducerDone
		h.cycles++
		h.cond.Broadcast()
		h.mu.Unlock()
	}
}

// WaitForFrames blocks until the producer has finished a cycle. It returns
// false once the handshake is stopped.
func (h *Handshake) WaitForFrames() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.state != ProducerDone && !h.exit {
		h.cond.Wait()
	}
	return !h.exit
}

// SignalNextRound marks the current frames consumed and lets the producer
// start the next cycle.
func (h *Handshake) SignalNextRound() {
	h.mu.Lock()
	h.state = ProducerIdle
	h.producingReady = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Stop terminates the producer and waits for it to return. A produce cycle
// already running is allowed to finish. Stop is safe to call more than once.
func (h *Handshake) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.exit = true
		h.producingReady = true
		started := h.started
		h.cond.Broadcast()
		h.mu.Unlock()

		if started {
			<-h.done
		}
	})
}

// State returns the producer state.
func (h *Handshake) State() ProducerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Cycles returns the number of completed produce cycles.
func (h *Handshake) Cycles() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cycles
}
