package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/driver/sim"
	"github.com/smazurov/camsync/internal/events"
)

// fillSerialFrame writes the frame number into every pixel and the serial
// into the first one.
func fillSerialFrame(serial, frame uint32, img *driver.Image) {
	for i := range img.Data {
		img.Data[i] = byte(frame)
	}
	img.Data[0] = byte(serial)
}

func newTestSession(t *testing.T, trigger camarray.TriggerMode, serials ...uint32) (*sim.Bus, *camarray.Session) {
	t.Helper()
	bus := sim.NewBus(sim.Options{Fill: fillSerialFrame}, serials...)
	s, err := camarray.Initialize(bus, camarray.Options{
		Mode:            driver.VideoMode{Width: 640, Height: 480, Encoding: driver.EncodingMono8},
		FrameRate:       driver.FrameRate15,
		Trigger:         trigger,
		GrabTimeout:     time.Second,
		PowerUpPoll:     time.Millisecond,
		PowerUpAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return bus, s
}

func newTestAcquisition(t *testing.T, s *camarray.Session, opts Options) *Acquisition {
	t.Helper()
	a, err := New(s, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestExecuteDeliversEveryChannel(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		name := "inline"
		if threaded {
			name = "threaded"
		}
		t.Run(name, func(t *testing.T) {
			_, s := newTestSession(t, camarray.TriggerFreeRun, 9, 4)
			a := newTestAcquisition(t, s, Options{Master: -1, Threaded: threaded})

			for r := 1; r <= 3; r++ {
				if err := a.Execute(context.Background()); err != nil {
					t.Fatalf("Execute() round %d error = %v", r, err)
				}
			}
			if a.Round() != 3 {
				t.Errorf("Round() = %d, want 3", a.Round())
			}

			wantSerials := []uint32{4, 9}
			for ch, serial := range wantSerials {
				f, err := a.Image(ch)
				if err != nil {
					t.Fatalf("Image(%d) error = %v", ch, err)
				}
				if f.Serial != serial || f.Round != 3 || f.Channel != ch {
					t.Errorf("Image(%d) = serial %d round %d channel %d, want %d/3/%d",
						ch, f.Serial, f.Round, f.Channel, serial, ch)
				}
				img := f.Image
				if img.Width != 640 || img.Height != 480 || img.Channels != 1 {
					t.Errorf("Image(%d) geometry = %dx%dx%d, want 640x480x1", ch, img.Width, img.Height, img.Channels)
				}
				if len(img.Pix) != 640*480 {
					t.Errorf("len(Pix) = %d, want %d", len(img.Pix), 640*480)
				}
				if img.Pix[0] != byte(serial) {
					t.Errorf("channel %d first pixel = %d, want serial %d", ch, img.Pix[0], serial)
				}
				if img.Pix[1] != 3 {
					t.Errorf("channel %d frame = %d, want 3", ch, img.Pix[1])
				}
			}
		})
	}
}

func TestPublishedFramesSurviveNextRetrieval(t *testing.T) {
	_, s := newTestSession(t, camarray.TriggerFreeRun, 1)
	a := newTestAcquisition(t, s, Options{Master: -1})
	slot, err := a.Slot(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := slot.Next()
	if err := a.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := slot.Next()

	if first.Image.Pix[1] != 1 || second.Image.Pix[1] != 2 {
		t.Errorf("frames = %d, %d, want 1, 2", first.Image.Pix[1], second.Image.Pix[1])
	}
	if slot.Name() != "out1" {
		t.Errorf("Name() = %q, want out1", slot.Name())
	}
}

func TestSlotCountsDrops(t *testing.T) {
	_, s := newTestSession(t, camarray.TriggerFreeRun, 1)
	a := newTestAcquisition(t, s, Options{Master: -1})
	for i := 0; i < 4; i++ {
		if err := a.Execute(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	slot, _ := a.Slot(0)
	if slot.Drops() != 3 {
		t.Errorf("Drops() = %d, want 3", slot.Drops())
	}
	if f := slot.Next(); f.Round != 4 {
		t.Errorf("Next().Round = %d, want 4", f.Round)
	}
}

func TestNewValidatesMaster(t *testing.T) {
	_, s := newTestSession(t, camarray.TriggerFreeRun, 1, 2)
	defer s.Shutdown()
	if _, err := New(s, Options{Master: 2}); err == nil {
		t.Error("New() with master 2 of 2 cameras succeeded")
	}
}

func TestSlotOutOfRange(t *testing.T) {
	_, s := newTestSession(t, camarray.TriggerFreeRun, 1)
	a := newTestAcquisition(t, s, Options{Master: -1})
	if _, err := a.Slot(1); err == nil {
		t.Error("Slot(1) succeeded with one camera")
	}
	if _, err := a.Image(0); err == nil {
		t.Error("Image(0) succeeded before any round")
	}
}

func TestMasterShutterReachesSlaves(t *testing.T) {
	bus, s := newTestSession(t, camarray.TriggerSoftware, 10, 20)
	a := newTestAcquisition(t, s, Options{Master: 0, ShutterMs: 12.5, Threaded: true})

	for r := 0; r < 2; r++ {
		if err := a.Execute(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	p, err := bus.Camera(20).Property(driver.Shutter)
	if err != nil {
		t.Fatal(err)
	}
	if p.AbsValue != 12.5 || p.AutoManualMode {
		t.Errorf("slave shutter = %g auto=%v, want 12.5 manual", p.AbsValue, p.AutoManualMode)
	}
	// One write from the fixed shutter, then one per distributed round.
	if got := bus.Camera(20).PropertyWrites(driver.Shutter); got < 3 {
		t.Errorf("slave Shutter writes = %d, want at least 3", got)
	}
	if got := bus.Camera(10).PropertyWrites(driver.Shutter); got != 1 {
		t.Errorf("master Shutter writes = %d, want 1", got)
	}
}

func TestExecuteReportsEvents(t *testing.T) {
	bus := events.New()
	rounds := make(chan events.RoundCompletedEvent, 8)
	timeouts := make(chan events.RetrieveTimeoutEvent, 8)
	stopped := make(chan events.SessionStoppedEvent, 1)
	defer bus.Subscribe(func(e events.RoundCompletedEvent) { rounds <- e })()
	defer bus.Subscribe(func(e events.RetrieveTimeoutEvent) { timeouts <- e })()
	defer bus.Subscribe(func(e events.SessionStoppedEvent) { stopped <- e })()

	simBus := sim.NewBus(sim.Options{}, 5, 6)
	simBus.Camera(6).InjectFaults(sim.Faults{StallRetrieve: true})
	s, err := camarray.Initialize(simBus, camarray.Options{
		Mode:            driver.VideoMode{Width: 64, Height: 48, Encoding: driver.EncodingWide},
		FrameRate:       driver.FrameRate15,
		GrabTimeout:     20 * time.Millisecond,
		PowerUpPoll:     time.Millisecond,
		PowerUpAttempts: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(s, Options{Master: -1, Events: bus})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v, want timeouts to be non-fatal", err)
	}

	select {
	case e := <-rounds:
		if e.Round != 1 || e.Timeouts != 1 || len(e.ChannelFPS) != 2 {
			t.Errorf("RoundCompletedEvent = %+v, want round 1 with 1 timeout and 2 channels", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no RoundCompletedEvent")
	}
	select {
	case e := <-timeouts:
		if e.Channel != 1 {
			t.Errorf("RetrieveTimeoutEvent.Channel = %d, want 1", e.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("no RetrieveTimeoutEvent")
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case e := <-stopped:
		if e.Rounds != 1 {
			t.Errorf("SessionStoppedEvent.Rounds = %d, want 1", e.Rounds)
		}
	case <-time.After(time.Second):
		t.Fatal("no SessionStoppedEvent")
	}
}

func TestThreadedRoundEventsReadOwnRound(t *testing.T) {
	const rounds = 20
	bus := events.New()
	completed := make(chan events.RoundCompletedEvent, rounds)
	defer bus.Subscribe(func(e events.RoundCompletedEvent) { completed <- e })()

	simBus := sim.NewBus(sim.Options{}, 1, 2, 3)
	simBus.Camera(3).InjectFaults(sim.Faults{StallRetrieve: true})
	s, err := camarray.Initialize(simBus, camarray.Options{
		Mode:            driver.VideoMode{Width: 64, Height: 48, Encoding: driver.EncodingWide},
		FrameRate:       driver.FrameRate15,
		GrabTimeout:     10 * time.Millisecond,
		PowerUpPoll:     time.Millisecond,
		PowerUpAttempts: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	a := newTestAcquisition(t, s, Options{Master: -1, Threaded: true, Events: bus})

	// The pause lets the producer start the next round while the
	// consumer is still publishing this one.
	for range rounds {
		if err := a.Execute(context.Background()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	seen := make(map[uint64]bool)
	for range rounds {
		select {
		case e := <-completed:
			if e.Timeouts != 1 {
				t.Errorf("round %d: Timeouts = %d, want 1", e.Round, e.Timeouts)
			}
			if e.Round < 1 || e.Round > rounds || seen[e.Round] {
				t.Errorf("Round = %d, want a distinct round in [1, %d]", e.Round, rounds)
			}
			seen[e.Round] = true
		case <-time.After(time.Second):
			t.Fatalf("got %d RoundCompletedEvents, want %d", len(seen), rounds)
		}
	}
}

func TestExecuteAfterClose(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		_, s := newTestSession(t, camarray.TriggerFreeRun, 1)
		a, err := New(s, Options{Master: -1, Threaded: threaded})
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if err := a.Execute(context.Background()); !errors.Is(err, ErrStopped) {
			t.Errorf("Execute() after Close error = %v, want %v", err, ErrStopped)
		}
		if err := a.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	}
}

func TestExecuteHonoursContext(t *testing.T) {
	_, s := newTestSession(t, camarray.TriggerFreeRun, 1)
	a := newTestAcquisition(t, s, Options{Master: -1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want %v", err, context.Canceled)
	}
}
