package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/camsync/internal/driver"
)

// Faults makes a simulated camera misbehave.
type Faults struct {
	Connect            bool
	EmbeddedInfo       bool
	NeverPowers        bool
	RegisterRead       map[uint32]bool
	RegisterWrite      map[uint32]bool
	StallRetrieve      bool
	SetProperty        map[driver.PropertyType]bool
	NoHardwareTrigger  bool
	NoSoftwareTrigger  bool
	StartCapture       bool
	VideoModeRejection bool
}

var errInjected = errors.New("sim: injected fault")

// Camera is one simulated camera.
type Camera struct {
	serial uint32
	bus    *Bus

	mu           sync.Mutex
	faults       Faults
	connected    bool
	capturing    bool
	stop         chan struct{}
	triggers     chan struct{}
	registers    map[uint32]uint32
	powerPending int
	powered      bool
	busyPending  int
	trigger      driver.TriggerMode
	config       driver.Configuration
	mode         driver.VideoMode
	rate         driver.FrameRate
	format7      driver.Format7Settings
	embedded     driver.EmbeddedInfo
	props        map[driver.PropertyType]driver.Property
	infos        map[driver.PropertyType]driver.PropertyInfo
	frames       uint32
	lastFrame    time.Time
	writes       map[driver.PropertyType]int
}

func newCamera(serial uint32, bus *Bus) *Camera {
	c := &Camera{
		serial:    serial,
		bus:       bus,
		triggers:  make(chan struct{}, 64),
		registers: make(map[uint32]uint32),
		mode:      driver.VideoMode{Width: 640, Height: 480, Encoding: driver.EncodingMono8},
		rate:      driver.FrameRate15,
		writes:    make(map[driver.PropertyType]int),
	}
	c.infos = defaultInfos()
	c.props = defaultProperties()
	for f := range c.embedded {
		c.embedded[f].Available = true
	}
	return c
}

// InjectFaults replaces the camera's fault set.
func (c *Camera) InjectFaults(f Faults) {
	c.mu.Lock()
	c.faults = f
	c.mu.Unlock()
}

// Serial returns the camera serial number.
func (c *Camera) Serial() uint32 { return c.serial }

// Connected reports whether the camera is connected.
func (c *Camera) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Capturing reports whether capture is running.
func (c *Camera) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Frames returns the number of frames delivered so far.
func (c *Camera) Frames() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// PropertyWrites returns how many times t was written.
func (c *Camera) PropertyWrites(t driver.PropertyType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[t]
}

func (c *Camera) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faults.Connect {
		return fmt.Errorf("connect %d: %w", c.serial, errInjected)
	}
	c.connected = true
	return nil
}

func (c *Camera) checkConnected() error {
	if !c.connected {
		return driver.ErrNotConnected
	}
	return nil
}

// Info implements driver.Camera.
func (c *Camera) Info() (driver.CameraInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return driver.CameraInfo{}, err
	}
	return driver.CameraInfo{
		Serial:     c.serial,
		Model:      "Simulated GRAS-50S5C",
		Vendor:     "camsync",
		Sensor:     "Sony ICX625AQ (2/3\" 2448x2048 CCD)",
		Resolution: "2448x2048",
		Firmware:   "2.0.3.0",
		Interface:  "sim",
	}, nil
}

// VideoModeAndFrameRateSupported implements driver.Camera.
func (c *Camera) VideoModeAndFrameRateSupported(mode driver.VideoMode, rate driver.FrameRate) (bool, error) {
	if mode.IsFormat7() {
		return rate == driver.FrameRate15, nil
	}
	known := false
	for _, m := range driver.StandardVideoModes {
		if m == mode {
			known = true
			break
		}
	}
	if !known {
		return false, nil
	}
	// Bus bandwidth caps the rate by bytes per frame.
	bytesPerFrame := mode.Width * mode.Height * mode.Encoding.BitsPerPixel() / 8
	return float64(bytesPerFrame)*rate.Hz() <= 120e6, nil
}

// SetVideoModeAndFrameRate implements driver.Camera.
func (c *Camera) SetVideoModeAndFrameRate(mode driver.VideoMode, rate driver.FrameRate) error {
	ok, err := c.VideoModeAndFrameRateSupported(mode, rate)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if !ok || c.faults.VideoModeRejection {
		return fmt.Errorf("video mode %s at %s fps not supported", mode, rate)
	}
	c.mode = mode
	c.rate = rate
	return nil
}

// Format7Info implements driver.Camera.
func (c *Camera) Format7Info(mode driver.Format7Mode) (driver.Format7Info, error) {
	if mode != 0 {
		return driver.Format7Info{Mode: mode}, nil
	}
	return driver.Format7Info{
		Mode:            0,
		Supported:       true,
		MaxWidth:        2448,
		MaxHeight:       2048,
		OffsetHStepSize: 2,
		OffsetVStepSize: 2,
		ImageHStepSize:  8,
		ImageVStepSize:  2,
	}, nil
}

// SetFormat7 implements driver.Camera.
func (c *Camera) SetFormat7(s driver.Format7Settings) error {
	info, _ := c.Format7Info(s.Mode)
	if !info.Supported {
		return fmt.Errorf("format7 mode %d not supported", s.Mode)
	}
	if s.OffsetX%info.OffsetHStepSize != 0 || s.OffsetY%info.OffsetVStepSize != 0 ||
		s.Width%info.ImageHStepSize != 0 || s.Height%info.ImageVStepSize != 0 ||
		s.Width <= 0 || s.Height <= 0 ||
		s.OffsetX+s.Width > info.MaxWidth || s.OffsetY+s.Height > info.MaxHeight {
		return fmt.Errorf("format7 settings %+v are not valid", s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format7 = s
	c.mode = driver.Format7
	return nil
}

// EmbeddedInfo implements driver.Camera.
func (c *Camera) EmbeddedInfo() (driver.EmbeddedInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faults.EmbeddedInfo {
		return driver.EmbeddedInfo{}, fmt.Errorf("embedded info %d: %w", c.serial, errInjected)
	}
	return c.embedded, nil
}

// SetEmbeddedInfo implements driver.Camera.
func (c *Camera) SetEmbeddedInfo(info driver.EmbeddedInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faults.EmbeddedInfo {
		return fmt.Errorf("embedded info %d: %w", c.serial, errInjected)
	}
	for f := range info {
		c.embedded[f].OnOff = info[f].OnOff && c.embedded[f].Available
	}
	return nil
}

// ReadRegister implements driver.Camera.
func (c *Camera) ReadRegister(address uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return 0, err
	}
	if c.faults.RegisterRead[address] {
		return 0, fmt.Errorf("read register 0x%X: %w", address, errInjected)
	}
	switch address {
	case RegCameraPower:
		if c.faults.NeverPowers || !c.powered {
			return 0, nil
		}
		if c.powerPending > 0 {
			c.powerPending--
			return 0, nil
		}
		return powerOnBit, nil
	case RegSoftwareTrigger:
		if c.busyPending > 0 {
			c.busyPending--
			return triggerBusyBit, nil
		}
		return 0, nil
	case RegTriggerInquiry:
		if c.faults.NoSoftwareTrigger {
			return 0x80000000, nil
		}
		return 0x80000000 | softwareTriggerMask, nil
	}
	return c.registers[address], nil
}

// WriteRegister implements driver.Camera.
func (c *Camera) WriteRegister(address, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if c.faults.RegisterWrite[address] {
		return fmt.Errorf("write register 0x%X: %w", address, errInjected)
	}
	switch address {
	case RegCameraPower:
		if value&powerOnBit != 0 && !c.powered {
			c.powered = true
			c.powerPending = c.bus.opts.PowerUpReads
		}
		if value&powerOnBit == 0 {
			c.powered = false
		}
	case RegSoftwareTrigger:
		if value&triggerBusyBit != 0 && c.capturing && c.trigger.OnOff && c.trigger.Source == softwareSource {
			c.enqueueTrigger()
		}
	}
	c.registers[address] = value
	return nil
}

func (c *Camera) enqueueTrigger() {
	select {
	case c.triggers <- struct{}{}:
	default:
	}
}

func (c *Camera) pulse(pin uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capturing && c.trigger.OnOff && c.trigger.Source == pin {
		c.enqueueTrigger()
	}
}

// TriggerModeInfo implements driver.Camera.
func (c *Camera) TriggerModeInfo() (driver.TriggerModeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return driver.TriggerModeInfo{}, err
	}
	return driver.TriggerModeInfo{
		Present:                  !c.faults.NoHardwareTrigger,
		ReadOutSupported:         true,
		OnOffSupported:           true,
		PolaritySupported:        true,
		ValueReadable:            true,
		SourceMask:               0x0F,
		SoftwareTriggerSupported: !c.faults.NoSoftwareTrigger,
		ModeMask:                 1<<0 | 1<<1 | 1<<3 | 1<<4 | 1<<5 | 1<<14 | 1<<15,
	}, nil
}

// TriggerMode implements driver.Camera.
func (c *Camera) TriggerMode() (driver.TriggerMode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger, c.checkConnected()
}

// SetTriggerMode implements driver.Camera.
func (c *Camera) SetTriggerMode(mode driver.TriggerMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if mode.OnOff && c.faults.NoHardwareTrigger && mode.Source != softwareSource {
		return fmt.Errorf("trigger source %d not available", mode.Source)
	}
	c.trigger = mode
	if mode.OnOff {
		c.busyPending = c.bus.opts.TriggerBusyReads
	}
	return nil
}

// Configuration implements driver.Camera.
func (c *Camera) Configuration() (driver.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config, c.checkConnected()
}

// SetConfiguration implements driver.Camera.
func (c *Camera) SetConfiguration(cfg driver.Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	c.config = cfg
	return nil
}

// StartCapture implements driver.Camera.
func (c *Camera) StartCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if c.faults.StartCapture {
		return fmt.Errorf("start capture %d: %w", c.serial, errInjected)
	}
	if c.capturing {
		return nil
	}
	c.capturing = true
	c.stop = make(chan struct{})
	c.lastFrame = time.Now()
	return nil
}

// StopCapture implements driver.Camera.
func (c *Camera) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	c.capturing = false
	close(c.stop)
	// Drain triggers that were never consumed.
	for {
		select {
		case <-c.triggers:
		default:
			return nil
		}
	}
}

// Disconnect implements driver.Camera.
func (c *Camera) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.powered = false
	return nil
}

// PropertyInfo implements driver.Camera.
func (c *Camera) PropertyInfo(t driver.PropertyType) (driver.PropertyInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.infos[t]
	if !ok {
		return driver.PropertyInfo{Type: t}, nil
	}
	return info, nil
}

// Property implements driver.Camera.
func (c *Camera) Property(t driver.PropertyType) (driver.Property, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return driver.Property{}, err
	}
	p, ok := c.props[t]
	if !ok {
		return driver.Property{Type: t}, driver.ErrNotPresent
	}
	return p, nil
}

// SetProperty implements driver.Camera.
func (c *Camera) SetProperty(p driver.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if c.faults.SetProperty[p.Type] {
		return fmt.Errorf("set %s: %w", p.Type, errInjected)
	}
	cur, ok := c.props[p.Type]
	if !ok {
		return driver.ErrNotPresent
	}
	info := c.infos[p.Type]
	cur.OnOff = p.OnOff
	cur.AutoManualMode = p.AutoManualMode && info.AutoSupported
	cur.OnePush = p.OnePush
	cur.AbsControl = p.AbsControl && info.AbsValSupported
	if cur.AbsControl {
		cur.AbsValue = clampAbs(p.AbsValue, info)
	} else {
		cur.ValueA = clampRaw(p.ValueA, info)
		cur.ValueB = clampRaw(p.ValueB, info)
	}
	c.props[p.Type] = cur
	c.writes[p.Type]++
	return nil
}

// RestoreFromMemoryChannel implements driver.Camera.
func (c *Camera) RestoreFromMemoryChannel(channel uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	if channel != 0 {
		return fmt.Errorf("memory channel %d: %w", channel, driver.ErrInvalidIndex)
	}
	c.props = defaultProperties()
	return nil
}

// RetrieveBuffer implements driver.Camera.
func (c *Camera) RetrieveBuffer(img *driver.Image) error {
	c.mu.Lock()
	if !c.capturing {
		c.mu.Unlock()
		return fmt.Errorf("camera %d: capture not started", c.serial)
	}
	stop := c.stop
	timeout := c.config.GrabTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stall := c.faults.StallRetrieve
	triggered := c.trigger.OnOff
	hardware := triggered && c.trigger.Source != softwareSource
	wait := time.Duration(0)
	if c.bus.opts.Pace || (hardware && c.bus.opts.ExternalClock) {
		wait = time.Until(c.lastFrame.Add(frameInterval(c.rate)))
	}
	c.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	switch {
	case stall:
		select {
		case <-deadline.C:
			return driver.ErrTimeout
		case <-stop:
			return driver.ErrTimeout
		}
	case triggered && !(hardware && c.bus.opts.ExternalClock):
		select {
		case <-c.triggers:
		case <-deadline.C:
			return driver.ErrTimeout
		case <-stop:
			return driver.ErrTimeout
		}
	case wait > 0:
		select {
		case <-time.After(wait):
		case <-stop:
			return driver.ErrTimeout
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	c.lastFrame = time.Now()
	c.driftAuto()
	c.render(img)
	return nil
}
