// Package sim is an in-memory camera bus. It models the IIDC register file,
// property bank and trigger behaviour closely enough for the array and the
// acquisition pipeline to run end to end without hardware.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/camsync/internal/driver"
)

// Register addresses understood by the simulated cameras.
const (
	RegCameraPower     uint32 = 0x610
	RegSoftwareTrigger uint32 = 0x62C
	RegTriggerInquiry  uint32 = 0x530

	powerOnBit          uint32 = 0x80000000
	triggerBusyBit      uint32 = 0x80000000
	softwareTriggerMask uint32 = 0x10000
	softwareSource      uint32 = 7
)

// FillFunc writes the pixel payload of a frame. frame counts from 1.
type FillFunc func(serial, frame uint32, img *driver.Image)

// Options configures a simulated bus.
type Options struct {
	// Pace makes free-running cameras deliver frames at their frame rate
	// instead of immediately.
	Pace bool
	// ExternalClock satisfies hardware-triggered retrievals after one frame
	// interval, standing in for a pulse generator on the GPIO line.
	ExternalClock bool
	// PowerUpReads is how many reads of the power register return zero
	// after power is requested.
	PowerUpReads int
	// TriggerBusyReads is how many reads of the software trigger register
	// report busy after the trigger mode is armed.
	TriggerBusyReads int
	// Fill overrides the synthetic frame generator.
	Fill FillFunc
}

// Bus is a simulated camera bus.
type Bus struct {
	opts    Options
	mu      sync.Mutex
	order   []uint32
	cameras map[uint32]*Camera
	syncs   int
}

// NewBus creates a bus whose cameras enumerate in the given serial order.
func NewBus(opts Options, serials ...uint32) *Bus {
	b := &Bus{
		opts:    opts,
		order:   append([]uint32(nil), serials...),
		cameras: make(map[uint32]*Camera, len(serials)),
	}
	for _, s := range serials {
		b.cameras[s] = newCamera(s, b)
	}
	return b
}

// Cameras implements driver.Bus.
func (b *Bus) Cameras() ([]driver.CameraID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]driver.CameraID, len(b.order))
	for i, s := range b.order {
		ids[i] = driver.CameraID{Serial: s}
	}
	return ids, nil
}

// Connect implements driver.Bus.
func (b *Bus) Connect(id driver.CameraID) (driver.Camera, error) {
	cam := b.Camera(id.Serial)
	if cam == nil {
		return nil, fmt.Errorf("camera %d: %w", id.Serial, driver.ErrInvalidIndex)
	}
	if err := cam.connect(); err != nil {
		return nil, err
	}
	return cam, nil
}

// StartSyncCapture implements driver.Bus.
func (b *Bus) StartSyncCapture(cams []driver.Camera) error {
	for _, c := range cams {
		cam, ok := c.(*Camera)
		if !ok {
			return fmt.Errorf("sim: foreign camera %T", c)
		}
		if err := cam.StartCapture(); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.syncs++
	b.mu.Unlock()
	return nil
}

// SyncStarts reports how many synchronized starts were issued.
func (b *Bus) SyncStarts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncs
}

// Camera returns the simulated camera with the given serial.
func (b *Bus) Camera(serial uint32) *Camera {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cameras[serial]
}

// Pulse fires an external trigger on every camera listening on pin.
func (b *Bus) Pulse(pin uint32) {
	b.mu.Lock()
	cams := make([]*Camera, 0, len(b.cameras))
	for _, c := range b.cameras {
		cams = append(cams, c)
	}
	b.mu.Unlock()
	for _, c := range cams {
		c.pulse(pin)
	}
}

func frameInterval(rate driver.FrameRate) time.Duration {
	hz := rate.Hz()
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}
