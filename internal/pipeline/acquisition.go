// Package pipeline runs acquisition rounds over a camera array and delivers
// decoded frames on one output slot per logical channel.
//
// In inline mode every Execute call distributes properties, fires the
// trigger, retrieves all buffers and decodes them on the caller's
// goroutine. In threaded mode a producer goroutine owns distribution,
// triggering and retrieval, and Execute only waits for the producer, decodes
// and publishes, then releases the producer for the next round. A Handshake
// keeps the two strictly alternating: frames of round N are always consumed
// before round N+1 is triggered.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/decode"
	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/logging"
)

// ErrStopped is returned by Execute after Close.
var ErrStopped = errors.New("pipeline: acquisition stopped")

// Options configures an Acquisition.
type Options struct {
	// Master is the logical channel whose properties are copied to the
	// other cameras before each round. Negative disables distribution.
	Master int
	// ShutterMs fixes the shutter of every camera at startup when positive.
	ShutterMs float64
	Threaded  bool
	Decoder   *decode.Decoder
	Events    *events.Bus
	Logger    *slog.Logger
}

// Acquisition drives rounds over a camarray.Session.
type Acquisition struct {
	session   *camarray.Session
	opts      Options
	decoder   *decode.Decoder
	logger    *slog.Logger
	handshake *Handshake
	slots     []*Slot

	// Written by the producer, read by the consumer after the handshake.
	result     camarray.RoundResult
	resultErr  error
	distErr    error
	producedAt time.Time

	round      atomic.Uint64
	fps        *camarray.FPSTicker
	channelFPS []*camarray.FPSTicker
	execMu     sync.Mutex
	closed     atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// New prepares acquisition over session. In threaded mode the producer
// starts capturing the first round immediately.
func New(session *camarray.Session, opts Options) (*Acquisition, error) {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("pipeline")
	}
	if opts.Master >= session.NumCameras() {
		return nil, fmt.Errorf("master channel %d out of range for %d cameras", opts.Master, session.NumCameras())
	}
	if opts.ShutterMs > 0 {
		if err := session.SetShutter(opts.ShutterMs); err != nil {
			return nil, fmt.Errorf("set shutter: %w", err)
		}
	}
	dec := opts.Decoder
	if dec == nil {
		dec = decode.New(decode.Options{})
	}

	a := &Acquisition{
		session: session,
		opts:    opts,
		decoder: dec,
		logger:  opts.Logger.With("session_id", session.ID()),
		fps:     camarray.NewFPSTicker(),
	}
	for ch := 0; ch < session.NumCameras(); ch++ {
		a.slots = append(a.slots, newSlot(fmt.Sprintf("out%d", ch+1)))
		a.channelFPS = append(a.channelFPS, camarray.NewFPSTicker())
	}

	if opts.Threaded {
		a.handshake = NewHandshake()
		a.handshake.Start(a.produce)
	}

	st := session.Status()
	a.logger.Info("Acquisition started",
		"summary", st.String(),
		"threaded", opts.Threaded,
		"master", opts.Master,
		"decoder", dec.Backend())
	a.publish(events.SessionStartedEvent{
		SessionID: session.ID(),
		Cameras:   st.Cameras,
		Serials:   st.Serials,
		Trigger:   st.Trigger,
		Threaded:  opts.Threaded,
		Decoder:   dec.Backend(),
		Timestamp: timestamp(),
	})
	return a, nil
}

// produce distributes properties, fires the trigger and retrieves every
// camera. It runs on the producer goroutine in threaded mode and on the
// caller's goroutine inline.
func (a *Acquisition) produce() {
	a.distErr = nil
	if a.opts.Master >= 0 {
		if err := a.session.Distribute(a.opts.Master); err != nil {
			a.logger.Warn("Property distribution aborted", "master", a.opts.Master, "error", err)
			a.distErr = err
		}
	}
	a.result, a.resultErr = a.session.NextFrame()
	a.producedAt = time.Now()
}

// Execute runs one round: it obtains this round's frames, decodes every
// channel and publishes them on the output slots. Per camera failures are
// logged and reported through events; an error is only returned when the
// acquisition can no longer run.
func (a *Acquisition) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.execMu.Lock()
	defer a.execMu.Unlock()
	if a.closed.Load() {
		return ErrStopped
	}

	start := time.Now()
	if a.handshake == nil {
		a.produce()
	} else if !a.handshake.WaitForFrames() {
		return ErrStopped
	}
	if a.resultErr != nil {
		if a.handshake != nil {
			a.handshake.SignalNextRound()
		}
		return a.resultErr
	}

	round := a.round.Add(1)
	a.report(round)
	a.consume(round)
	// The producer owns a.result again once it is signalled.
	timeouts := len(a.result.Timeouts())
	if a.handshake != nil {
		a.handshake.SignalNextRound()
	}

	fps := a.fps.Tick()
	channelFPS := make([]float64, len(a.channelFPS))
	for ch, t := range a.channelFPS {
		channelFPS[ch] = t.FPS()
	}
	a.publish(events.RoundCompletedEvent{
		Round:      round,
		Duration:   time.Since(start).Seconds(),
		FPS:        fps,
		ChannelFPS: channelFPS,
		Timeouts:   timeouts,
		Timestamp:  timestamp(),
	})
	return nil
}

// report turns the producer's per camera failures into events.
func (a *Acquisition) report(round uint64) {
	order := a.session.Order()
	if a.distErr != nil {
		a.publish(events.PropertyDistributionFailedEvent{
			Round:     round,
			Master:    a.opts.Master,
			Error:     a.distErr.Error(),
			Timestamp: timestamp(),
		})
	}
	for idx, err := range a.result.Fire {
		if err == nil {
			continue
		}
		ch, _ := order.Channel(idx)
		a.publish(events.TriggerFailedEvent{Round: round, Channel: ch, Error: err.Error(), Timestamp: timestamp()})
	}
	for idx, err := range a.result.Retrieve {
		if err == nil || !camarray.HasCode(err, camarray.ErrCodeRetrieveTimeout) {
			continue
		}
		ch, _ := order.Channel(idx)
		a.publish(events.RetrieveTimeoutEvent{Round: round, Channel: ch, Error: err.Error(), Timestamp: timestamp()})
	}
}

// consume decodes every channel's raw frame and publishes it. A channel
// whose retrieval failed this round still publishes its previous buffer.
func (a *Acquisition) consume(round uint64) {
	order := a.session.Order()
	cams := a.session.Cameras()
	for ch, slot := range a.slots {
		raw, err := a.session.Frame(ch)
		if err != nil {
			a.logger.Warn("No frame for channel", "channel", ch, "error", err)
			continue
		}
		img, err := a.decoder.Decode(raw)
		if err != nil {
			a.logger.Warn("Failed to decode frame", "channel", ch, "error", err)
			continue
		}
		if aliases(img, raw) {
			img = img.Clone()
		}
		idx, _ := order.Physical(ch)
		if idx < len(a.result.Retrieve) && a.result.Retrieve[idx] == nil {
			a.channelFPS[ch].Tick()
		}
		slot.publish(&Frame{
			Round:      round,
			Channel:    ch,
			Serial:     cams[ch].Serial,
			Image:      img,
			Metadata:   raw.Metadata,
			CapturedAt: a.producedAt,
		})
	}
}

// aliases reports whether img shares memory with the driver's buffer, which
// is overwritten by the next retrieval.
func aliases(img *decode.Image, raw *driver.Image) bool {
	return len(img.Pix) > 0 && len(raw.Data) > 0 && &img.Pix[0] == &raw.Data[0]
}

// Slot returns the output slot of a logical channel.
func (a *Acquisition) Slot(channel int) (*Slot, error) {
	if channel < 0 || channel >= len(a.slots) {
		return nil, fmt.Errorf("channel %d out of range", channel)
	}
	return a.slots[channel], nil
}

// Image returns the latest decoded image of a logical channel.
func (a *Acquisition) Image(channel int) (*Frame, error) {
	slot, err := a.Slot(channel)
	if err != nil {
		return nil, err
	}
	f := slot.Latest()
	if f == nil {
		return nil, fmt.Errorf("channel %d has no frame yet", channel)
	}
	return f, nil
}

// Session returns the camera array.
func (a *Acquisition) Session() *camarray.Session { return a.session }

// Decoder returns the pixel decoder.
func (a *Acquisition) Decoder() *decode.Decoder { return a.decoder }

// Round returns the number of completed rounds.
func (a *Acquisition) Round() uint64 { return a.round.Load() }

// FPS returns the smoothed round rate.
func (a *Acquisition) FPS() float64 {
	a.execMu.Lock()
	defer a.execMu.Unlock()
	return a.fps.FPS()
}

// Threaded reports whether a producer goroutine is used.
func (a *Acquisition) Threaded() bool { return a.handshake != nil }

// Close stops the producer, restores every camera's default properties,
// shuts the array down and releases the decoder.
func (a *Acquisition) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.handshake != nil {
			a.handshake.Stop()
		}
		a.execMu.Lock()
		defer a.execMu.Unlock()
		for _, s := range a.slots {
			s.close()
		}
		var errs []error
		if err := a.session.RestoreDefaults(-1); err != nil {
			errs = append(errs, err)
		}
		if err := a.session.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		if err := a.decoder.Close(); err != nil {
			errs = append(errs, err)
		}
		a.closeErr = errors.Join(errs...)
		a.logger.Info("Acquisition stopped", "rounds", a.round.Load())
		a.publish(events.SessionStoppedEvent{
			SessionID: a.session.ID(),
			Rounds:    a.round.Load(),
			Timestamp: timestamp(),
		})
	})
	return a.closeErr
}

func (a *Acquisition) publish(ev events.Event) {
	if a.opts.Events != nil {
		a.opts.Events.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
