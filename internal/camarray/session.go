// Package camarray drives an array of cameras as one synchronized device.
//
// A Session owns every camera connection for its lifetime. It connects and
// configures all cameras at once, arms the configured trigger mode, and then
// captures rounds: one trigger followed by one retrieval per camera. The
// master camera's manual properties can be copied to the rest of the array
// before each round so that exposure stays consistent across cameras.
//
// Cameras are addressed two ways. Physical indices follow bus enumeration
// and are used for register access. Logical channels are assigned by
// ascending serial number and stay stable across restarts; frames and
// properties are exposed per channel.
package camarray

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/logging"
)

// Defaults for Options.
const (
	DefaultGrabTimeout     = 5 * time.Second
	DefaultPowerUpPoll     = 100 * time.Millisecond
	DefaultPowerUpAttempts = 50
	DefaultNumBuffers      = 4
)

// Options configures a Session.
type Options struct {
	Mode      driver.VideoMode
	FrameRate driver.FrameRate
	Trigger   TriggerMode

	// GPIOPin is the trigger input used in hardware mode.
	GPIOPin  uint32
	Embedded EmbeddedFields

	// ROIX and ROIY offset the Format7 region on the sensor. Standard
	// modes ignore them.
	ROIX, ROIY int

	GrabTimeout     time.Duration
	PowerUpPoll     time.Duration
	PowerUpAttempts int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.GrabTimeout <= 0 {
		o.GrabTimeout = DefaultGrabTimeout
	}
	if o.PowerUpPoll <= 0 {
		o.PowerUpPoll = DefaultPowerUpPoll
	}
	if o.PowerUpAttempts <= 0 {
		o.PowerUpAttempts = DefaultPowerUpAttempts
	}
	if o.Logger == nil {
		o.Logger = logging.GetLogger("session")
	}
	return o
}

// Session is a connected, capturing camera array.
//
// Every driver call on one physical index is serialized by the session,
// so the producer, API handlers and collectors may share it. Distinct
// indices are independent.
type Session struct {
	id      string
	bus     driver.Bus
	opts    Options
	logger  *slog.Logger
	trigger *triggerProtocol

	cams   []driver.Camera // serialized per index
	raw    []driver.Camera // as returned by the bus
	infos  []driver.CameraInfo
	order  CameraOrder
	frames []driver.Image
	manual []driver.PropertyType
	closed atomic.Bool
}

// Initialize discovers every camera on bus, connects and configures all of
// them in parallel and starts capture according to opts.Trigger. It is all
// or nothing: if any camera fails, every camera is released again and no
// capture is left running.
func Initialize(bus driver.Bus, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	ids, err := bus.Cameras()
	if err != nil {
		return nil, NewArrayError(ErrCodeInitialization, -1, "enumerate cameras", err)
	}
	if len(ids) == 0 {
		return nil, NewArrayError(ErrCodeNoCameras, -1, "no cameras detected", nil)
	}

	s := &Session{
		id:     uuid.NewString(),
		bus:    bus,
		opts:   opts,
		logger: opts.Logger,
		cams:   make([]driver.Camera, len(ids)),
		raw:    make([]driver.Camera, len(ids)),
		infos:  make([]driver.CameraInfo, len(ids)),
		frames: make([]driver.Image, len(ids)),
	}
	s.trigger = &triggerProtocol{
		mode:         opts.Trigger,
		gpioPin:      opts.GPIOPin,
		pollInterval: opts.PowerUpPoll,
		pollAttempts: opts.PowerUpAttempts,
		logger:       logging.GetLogger("trigger"),
	}
	s.logger = s.logger.With("session_id", s.id)

	if err := parallel(len(ids), func(i int) error { return s.configure(i, ids[i]) }); err != nil {
		s.release()
		return nil, err
	}
	if err := s.probeManualProperties(); err != nil {
		s.release()
		return nil, err
	}
	if err := s.trigger.start(s); err != nil {
		_ = s.trigger.disarm(s)
		s.release()
		return nil, err
	}

	serials := make([]uint32, len(s.infos))
	for i, info := range s.infos {
		serials[i] = info.Serial
	}
	s.order = NewCameraOrder(serials)

	s.logger.Info("Camera array initialized",
		"cameras", len(s.cams),
		"mode", opts.Mode,
		"frame_rate", opts.FrameRate,
		"trigger", opts.Trigger,
		"embedded", opts.Embedded,
		"manual_properties", len(s.manual))
	return s, nil
}

// configure connects camera i and applies video mode, embedded metadata
// and grab timeout.
func (s *Session) configure(i int, id driver.CameraID) error {
	cam, err := s.bus.Connect(id)
	if err != nil {
		return NewArrayError(ErrCodeInitialization, i, fmt.Sprintf("connect serial %d", id.Serial), err)
	}
	s.raw[i] = cam
	cam = newLockedCamera(cam)
	s.cams[i] = cam

	info, err := cam.Info()
	if err != nil {
		return NewArrayError(ErrCodeInitialization, i, "camera info", err)
	}
	s.infos[i] = info
	s.logger.Debug("Connected camera", "camera", i, "serial", info.Serial, "model", info.Model)

	if s.opts.Mode.IsFormat7() {
		if err := s.applyROI(i, s.opts.ROIX, s.opts.ROIY, s.opts.Mode.Width, s.opts.Mode.Height); err != nil {
			return err
		}
	} else if err := cam.SetVideoModeAndFrameRate(s.opts.Mode, s.opts.FrameRate); err != nil {
		return NewArrayError(ErrCodeInitialization, i,
			fmt.Sprintf("video mode %s at %s fps not supported", s.opts.Mode, s.opts.FrameRate), err)
	}

	embedded, err := cam.EmbeddedInfo()
	if err != nil {
		return NewArrayError(ErrCodeInitialization, i, "embedded info", err)
	}
	if err := cam.SetEmbeddedInfo(s.opts.Embedded.Apply(embedded)); err != nil {
		return NewArrayError(ErrCodeInitialization, i, "set embedded info", err)
	}

	cfg, err := cam.Configuration()
	if err != nil {
		return NewArrayError(ErrCodeInitialization, i, "get configuration", err)
	}
	cfg.GrabTimeout = s.opts.GrabTimeout
	if cfg.NumBuffers <= 0 {
		cfg.NumBuffers = DefaultNumBuffers
	}
	if err := cam.SetConfiguration(cfg); err != nil {
		return NewArrayError(ErrCodeInitialization, i, "set configuration", err)
	}
	return nil
}

// release stops and disconnects every camera that was connected.
func (s *Session) release() {
	for i, cam := range s.cams {
		if cam == nil {
			continue
		}
		if err := cam.StopCapture(); err != nil {
			s.logger.Warn("Failed to stop capture", "camera", i, "error", err)
		}
		if err := cam.Disconnect(); err != nil {
			s.logger.Warn("Failed to disconnect camera", "camera", i, "error", err)
		}
	}
}

// Shutdown turns trigger mode off, stops capture and disconnects every
// camera. A session cannot be used after Shutdown.
func (s *Session) Shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return NewArrayError(ErrCodeSessionClosed, -1, "shutdown", nil)
	}
	err := s.trigger.disarm(s)
	s.release()
	s.logger.Info("Camera array shut down")
	return err
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return NewArrayError(ErrCodeSessionClosed, -1, "session is shut down", nil)
	}
	return nil
}

func (s *Session) checkIndex(i int) error {
	if i < 0 || i >= len(s.cams) {
		return NewArrayError(ErrCodeInvalidIndex, i, "no such camera", nil)
	}
	return nil
}

// ReadRegister reads an IIDC register of the camera at physical index i.
func (s *Session) ReadRegister(i int, address uint32) (uint32, error) {
	if err := s.checkIndex(i); err != nil {
		return 0, err
	}
	v, err := s.cams[i].ReadRegister(address)
	if err != nil {
		return 0, NewArrayError(ErrCodeRegisterIO, i, fmt.Sprintf("read register 0x%X", address), err)
	}
	return v, nil
}

// WriteRegister writes an IIDC register of the camera at physical index i.
func (s *Session) WriteRegister(i int, address, value uint32) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if err := s.cams[i].WriteRegister(address, value); err != nil {
		return NewArrayError(ErrCodeRegisterIO, i, fmt.Sprintf("write register 0x%X", address), err)
	}
	return nil
}

// RetrieveBuffer blocks until camera i delivers a frame or the grab timeout
// elapses. On timeout the previous frame stays in place and a
// RETRIEVE_TIMEOUT error is returned; the session keeps running.
func (s *Session) RetrieveBuffer(i int) (*driver.Image, error) {
	if err := s.checkIndex(i); err != nil {
		return nil, err
	}
	img := &s.frames[i]
	if err := s.cams[i].RetrieveBuffer(img); err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return img, NewArrayError(ErrCodeRetrieveTimeout, i, "retrieve buffer", err)
		}
		return img, NewArrayError(ErrCodeRetrieve, i, "retrieve buffer", err)
	}
	return img, nil
}

// RetrieveAll retrieves one frame from every camera in parallel. The result
// holds one error per physical index; failures are logged and do not stop
// the other cameras.
func (s *Session) RetrieveAll() []error {
	errs := make([]error, len(s.cams))
	var wg sync.WaitGroup
	for i := range s.cams {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.RetrieveBuffer(i); err != nil {
				s.logger.Warn("Failed to retrieve buffer", "camera", i, "error", err)
				errs[i] = err
			}
		}(i)
	}
	wg.Wait()
	return errs
}

// RoundResult reports per camera failures of one round, indexed by physical
// camera.
type RoundResult struct {
	Fire     []error
	Retrieve []error
}

// Err joins every failure of the round.
func (r RoundResult) Err() error {
	all := make([]error, 0, len(r.Fire)+len(r.Retrieve))
	all = append(all, r.Fire...)
	all = append(all, r.Retrieve...)
	return errors.Join(all...)
}

// Timeouts lists the physical indices whose retrieval timed out.
func (r RoundResult) Timeouts() []int {
	var out []int
	for i, err := range r.Retrieve {
		if HasCode(err, ErrCodeRetrieveTimeout) {
			out = append(out, i)
		}
	}
	return out
}

// NextFrame fires the trigger and retrieves one frame from every camera.
// Errors are reported per camera and never end the session.
func (s *Session) NextFrame() (RoundResult, error) {
	if err := s.checkOpen(); err != nil {
		return RoundResult{}, err
	}
	var r RoundResult
	r.Fire = s.trigger.fire(s)
	r.Retrieve = s.RetrieveAll()
	return r, nil
}

// Frame returns the most recent raw frame of the camera on channel. The
// buffer is overwritten by the next round.
func (s *Session) Frame(channel int) (*driver.Image, error) {
	idx, ok := s.order.Physical(channel)
	if !ok {
		return nil, NewArrayError(ErrCodeInvalidIndex, -1, fmt.Sprintf("channel %d out of range", channel), nil)
	}
	return &s.frames[idx], nil
}

func (s *Session) channelCamera(channel int) (driver.Camera, int, error) {
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}
	idx, ok := s.order.Physical(channel)
	if !ok {
		return nil, 0, NewArrayError(ErrCodeInvalidIndex, -1, fmt.Sprintf("channel %d out of range", channel), nil)
	}
	return s.cams[idx], idx, nil
}

// forEach runs fn for every camera in parallel and joins the failures.
func (s *Session) forEach(fn func(i int, cam driver.Camera) error) error {
	return parallel(len(s.cams), func(i int) error { return fn(i, s.cams[i]) })
}

func parallel(n int, fn func(i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string { return s.id }

// NumCameras returns the number of cameras in the array.
func (s *Session) NumCameras() int { return len(s.cams) }

// Order returns the channel to physical index mapping.
func (s *Session) Order() CameraOrder { return append(CameraOrder(nil), s.order...) }

// TriggerMode returns the session's trigger mode.
func (s *Session) TriggerMode() TriggerMode { return s.opts.Trigger }

// Options returns the effective session options.
func (s *Session) Options() Options { return s.opts }
