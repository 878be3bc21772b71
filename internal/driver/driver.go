// Package driver defines the boundary between the camera array and the vendor
// camera SDK. The array only talks to cameras through these interfaces, so the
// same session code runs against real hardware bindings and the in-memory
// simulator in driver/sim.
package driver

import (
	"errors"
	"time"
)

// Errors reported by driver implementations.
var (
	ErrTimeout      = errors.New("driver: retrieve timeout")
	ErrNotPresent   = errors.New("driver: property not present")
	ErrInvalidIndex = errors.New("driver: invalid index")
	ErrNotConnected = errors.New("driver: camera not connected")
)

// CameraID identifies a physical camera on the bus.
type CameraID struct {
	Serial uint32
}

// Bus enumerates and connects cameras.
type Bus interface {
	Cameras() ([]CameraID, error)
	Connect(id CameraID) (Camera, error)
	// StartSyncCapture starts isochronous transfer on all cameras in the
	// same bus cycle.
	StartSyncCapture(cams []Camera) error
}

// Camera is one connected camera.
type Camera interface {
	Info() (CameraInfo, error)

	SetVideoModeAndFrameRate(mode VideoMode, rate FrameRate) error
	VideoModeAndFrameRateSupported(mode VideoMode, rate FrameRate) (bool, error)
	Format7Info(mode Format7Mode) (Format7Info, error)
	SetFormat7(settings Format7Settings) error

	EmbeddedInfo() (EmbeddedInfo, error)
	SetEmbeddedInfo(info EmbeddedInfo) error

	ReadRegister(address uint32) (uint32, error)
	WriteRegister(address, value uint32) error

	TriggerModeInfo() (TriggerModeInfo, error)
	TriggerMode() (TriggerMode, error)
	SetTriggerMode(mode TriggerMode) error

	Configuration() (Configuration, error)
	SetConfiguration(cfg Configuration) error

	StartCapture() error
	StopCapture() error
	// RetrieveBuffer blocks until the next frame is available or the
	// configured grab timeout elapses, in which case ErrTimeout is returned.
	// The image data slice is reused across calls when it has capacity.
	RetrieveBuffer(img *Image) error

	PropertyInfo(t PropertyType) (PropertyInfo, error)
	Property(t PropertyType) (Property, error)
	SetProperty(p Property) error
	RestoreFromMemoryChannel(channel uint32) error

	Disconnect() error
}

// CameraInfo describes a connected camera.
type CameraInfo struct {
	Serial     uint32 `json:"serial"`
	Model      string `json:"model"`
	Vendor     string `json:"vendor"`
	Sensor     string `json:"sensor"`
	Resolution string `json:"resolution"`
	Firmware   string `json:"firmware"`
	Interface  string `json:"interface"`
}

// Configuration holds driver-side capture settings.
type Configuration struct {
	GrabTimeout time.Duration
	NumBuffers  int
}

// TriggerMode mirrors the IIDC trigger mode register.
type TriggerMode struct {
	OnOff     bool
	Mode      uint32
	Parameter uint32
	Source    uint32
}

// TriggerModeInfo reports trigger capabilities.
type TriggerModeInfo struct {
	Present                  bool
	ReadOutSupported         bool
	OnOffSupported           bool
	PolaritySupported        bool
	ValueReadable            bool
	SourceMask               uint32
	SoftwareTriggerSupported bool
	ModeMask                 uint32
}

// EmbeddedField is one diagnostic value a camera can stamp into its frames.
type EmbeddedField int

// Embedded fields in the order cameras write them into the first pixels.
const (
	EmbedTimestamp EmbeddedField = iota
	EmbedGain
	EmbedShutter
	EmbedBrightness
	EmbedExposure
	EmbedWhiteBalance
	EmbedFrameCounter
	EmbedStrobePattern
	EmbedGPIOPinState
	EmbedROIPosition
	NumEmbeddedFields
)

var embeddedFieldNames = [NumEmbeddedFields]string{
	"timestamp", "gain", "shutter", "brightness", "exposure",
	"white_balance", "frame_counter", "strobe_pattern", "gpio_pin_state", "roi_position",
}

func (f EmbeddedField) String() string {
	if f < 0 || f >= NumEmbeddedFields {
		return "unknown"
	}
	return embeddedFieldNames[f]
}

// EmbeddedProperty is the availability and state of one embedded field.
type EmbeddedProperty struct {
	Available bool
	OnOff     bool
}

// EmbeddedInfo is the per-field embedded metadata configuration.
type EmbeddedInfo [NumEmbeddedFields]EmbeddedProperty

// Metadata holds the decoded embedded values of a frame.
type Metadata struct {
	Timestamp     uint32 `json:"timestamp"`
	Gain          uint32 `json:"gain"`
	Shutter       uint32 `json:"shutter"`
	Brightness    uint32 `json:"brightness"`
	Exposure      uint32 `json:"exposure"`
	WhiteBalance  uint32 `json:"white_balance"`
	FrameCounter  uint32 `json:"frame_counter"`
	StrobePattern uint32 `json:"strobe_pattern"`
	GPIOPinState  uint32 `json:"gpio_pin_state"`
	ROIPosition   uint32 `json:"roi_position"`
}

// Set stores v in the field f.
func (m *Metadata) Set(f EmbeddedField, v uint32) {
	switch f {
	case EmbedTimestamp:
		m.Timestamp = v
	case EmbedGain:
		m.Gain = v
	case EmbedShutter:
		m.Shutter = v
	case EmbedBrightness:
		m.Brightness = v
	case EmbedExposure:
		m.Exposure = v
	case EmbedWhiteBalance:
		m.WhiteBalance = v
	case EmbedFrameCounter:
		m.FrameCounter = v
	case EmbedStrobePattern:
		m.StrobePattern = v
	case EmbedGPIOPinState:
		m.GPIOPinState = v
	case EmbedROIPosition:
		m.ROIPosition = v
	}
}

// Get returns the value of field f.
func (m *Metadata) Get(f EmbeddedField) uint32 {
	switch f {
	case EmbedTimestamp:
		return m.Timestamp
	case EmbedGain:
		return m.Gain
	case EmbedShutter:
		return m.Shutter
	case EmbedBrightness:
		return m.Brightness
	case EmbedExposure:
		return m.Exposure
	case EmbedWhiteBalance:
		return m.WhiteBalance
	case EmbedFrameCounter:
		return m.FrameCounter
	case EmbedStrobePattern:
		return m.StrobePattern
	case EmbedGPIOPinState:
		return m.GPIOPinState
	case EmbedROIPosition:
		return m.ROIPosition
	}
	return 0
}
