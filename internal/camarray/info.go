package camarray

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/smazurov/camsync/internal/driver"
)

// Cameras returns the connected cameras in channel order.
func (s *Session) Cameras() []driver.CameraInfo {
	out := make([]driver.CameraInfo, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.infos[idx])
	}
	return out
}

// ModeSupport lists the frame rates a camera accepts for one video mode.
type ModeSupport struct {
	Mode  driver.VideoMode   `json:"mode"`
	Rates []driver.FrameRate `json:"rates"`
}

// VideoModes probes which standard video modes and frame rates the camera
// on channel supports. Modes without any supported rate are omitted.
func (s *Session) VideoModes(channel int) ([]ModeSupport, error) {
	cam, idx, err := s.channelCamera(channel)
	if err != nil {
		return nil, err
	}
	var out []ModeSupport
	for _, mode := range driver.StandardVideoModes {
		var rates []driver.FrameRate
		for _, rate := range driver.FrameRates {
			ok, err := cam.VideoModeAndFrameRateSupported(mode, rate)
			if err != nil {
				return nil, NewArrayError(ErrCodeInitialization, idx, "query video mode", err)
			}
			if ok {
				rates = append(rates, rate)
			}
		}
		if len(rates) > 0 {
			out = append(out, ModeSupport{Mode: mode, Rates: rates})
		}
	}
	return out, nil
}

// EmbeddedValue is one embedded field of a frame.
type EmbeddedValue struct {
	Field string `json:"field"`
	Value uint32 `json:"value"`
}

// FrameMetadata is the embedded metadata of a channel's latest frame.
type FrameMetadata struct {
	Channel int             `json:"channel"`
	Serial  uint32          `json:"serial"`
	Fields  []EmbeddedValue `json:"fields"`

	// ShutterMs is the embedded shutter register read as a float, set only
	// when shutter embedding is enabled.
	ShutterMs float32 `json:"shutter_ms,omitempty"`
}

func (m FrameMetadata) String() string {
	if len(m.Fields) == 0 {
		return "No information embedded."
	}
	var b strings.Builder
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "%s: %d\n", f.Field, f.Value)
	}
	return b.String()
}

// DescribeMetadata lists the enabled embedded fields of md, which must come
// from a frame of channel.
func (s *Session) DescribeMetadata(channel int, md driver.Metadata) (FrameMetadata, error) {
	idx, ok := s.order.Physical(channel)
	if !ok {
		return FrameMetadata{}, NewArrayError(ErrCodeInvalidIndex, -1, fmt.Sprintf("channel %d out of range", channel), nil)
	}
	out := FrameMetadata{Channel: channel, Serial: s.infos[idx].Serial}
	for _, f := range s.opts.Embedded.Enabled() {
		v := md.Get(f)
		out.Fields = append(out.Fields, EmbeddedValue{Field: f.String(), Value: v})
		if f == driver.EmbedShutter {
			out.ShutterMs = math.Float32frombits(v)
		}
	}
	return out, nil
}

// applyROI puts camera idx into Format7 mode 0, mono8, with the region
// snapped to the camera's step sizes and clipped to the sensor. Width or
// height of zero select the rest of the sensor.
func (s *Session) applyROI(idx, x, y, width, height int) error {
	cam := s.cams[idx]
	info, err := cam.Format7Info(0)
	if err != nil {
		return NewArrayError(ErrCodeInitialization, idx, "format7 info", err)
	}
	if !info.Supported {
		return NewArrayError(ErrCodeInitialization, idx, "format7 mode 0 not supported", nil)
	}
	settings := SnapROI(info, x, y, width, height)
	if err := cam.SetFormat7(settings); err != nil {
		return NewArrayError(ErrCodeInitialization, idx, "set format7", err)
	}
	s.logger.Debug("Region of interest set", "camera", idx,
		"x", settings.OffsetX, "y", settings.OffsetY,
		"width", settings.Width, "height", settings.Height)
	return nil
}

// SnapROI fits a region into the constraints of a Format7 mode. Offsets snap
// down to the offset step, the size is clipped to the sensor and then
// snapped down to the image step.
func SnapROI(info driver.Format7Info, x, y, width, height int) driver.Format7Settings {
	x = snapDown(max(x, 0), info.OffsetHStepSize)
	y = snapDown(max(y, 0), info.OffsetVStepSize)
	if width <= 0 || x+width > info.MaxWidth {
		width = info.MaxWidth - x
	}
	if height <= 0 || y+height > info.MaxHeight {
		height = info.MaxHeight - y
	}
	return driver.Format7Settings{
		Mode:     info.Mode,
		OffsetX:  x,
		OffsetY:  y,
		Width:    snapDown(width, info.ImageHStepSize),
		Height:   snapDown(height, info.ImageVStepSize),
		Encoding: driver.EncodingMono8,
	}
}

func snapDown(v, step int) int {
	if step <= 1 {
		return v
	}
	return v / step * step
}

// Status is a human readable summary of the array.
type Status struct {
	SessionID    string              `json:"session_id"`
	Cameras      int                 `json:"cameras"`
	Serials      []uint32            `json:"serials"`
	Resolution   string              `json:"resolution"`
	Encoding     string              `json:"encoding"`
	FrameRate    float64             `json:"frame_rate"`
	Trigger      string              `json:"trigger"`
	Embedded     string              `json:"embedded"`
	Distributed  []string            `json:"distributed_properties"`
	CameraModels []driver.CameraInfo `json:"camera_info"`
}

// Status summarizes the array configuration.
func (s *Session) Status() Status {
	st := Status{
		SessionID:    s.id,
		Cameras:      len(s.cams),
		Resolution:   fmt.Sprintf("%dx%d", s.opts.Mode.Width, s.opts.Mode.Height),
		Encoding:     s.opts.Mode.Encoding.String(),
		FrameRate:    s.opts.FrameRate.Hz(),
		Trigger:      s.opts.Trigger.String(),
		Embedded:     s.opts.Embedded.String(),
		CameraModels: s.Cameras(),
	}
	for _, info := range st.CameraModels {
		st.Serials = append(st.Serials, info.Serial)
	}
	for _, t := range s.manual {
		st.Distributed = append(st.Distributed, t.String())
	}
	return st
}

func (st Status) String() string {
	return fmt.Sprintf("%d cameras, %s %s @ %g fps, trigger %s, distributing [%s]",
		st.Cameras, st.Resolution, st.Encoding, st.FrameRate, st.Trigger, strings.Join(st.Distributed, ", "))
}

// FPSTicker keeps an exponential moving average of the round rate.
type FPSTicker struct {
	last time.Time
	fps  float64
	now  func() time.Time
}

// NewFPSTicker creates a ticker on the wall clock.
func NewFPSTicker() *FPSTicker {
	return &FPSTicker{now: time.Now}
}

// Tick records one round and returns the smoothed rate. The first tick
// assumes the previous round was 100ms ago.
func (t *FPSTicker) Tick() float64 {
	now := t.now()
	if t.last.IsZero() {
		t.last = now.Add(-100 * time.Millisecond)
	}
	dt := now.Sub(t.last).Seconds()
	t.last = now
	if dt <= 0 {
		return t.fps
	}
	current := 1 / dt
	if t.fps == 0 {
		t.fps = current
	} else {
		t.fps = 0.95*t.fps + 0.05*current
	}
	return t.fps
}

// FPS returns the current smoothed rate.
func (t *FPSTicker) FPS() float64 { return t.fps }

func (t *FPSTicker) String() string {
	return fmt.Sprintf("%4.1f fps", t.fps)
}
