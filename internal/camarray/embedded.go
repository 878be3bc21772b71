package camarray

import (
	"fmt"
	"strings"

	"github.com/smazurov/camsync/internal/driver"
)

// EmbeddedFields selects the diagnostic values each camera stamps into the
// first pixels of its frames.
type EmbeddedFields struct {
	Timestamp     bool `json:"timestamp"`
	Gain          bool `json:"gain"`
	Shutter       bool `json:"shutter"`
	Brightness    bool `json:"brightness"`
	Exposure      bool `json:"exposure"`
	WhiteBalance  bool `json:"white_balance"`
	FrameCounter  bool `json:"frame_counter"`
	StrobePattern bool `json:"strobe_pattern"`
	GPIOPinState  bool `json:"gpio_pin_state"`
	ROIPosition   bool `json:"roi_position"`
}

// DefaultEmbeddedFields enables timestamp, shutter and exposure.
func DefaultEmbeddedFields() EmbeddedFields {
	return EmbeddedFields{Timestamp: true, Shutter: true, Exposure: true}
}

// ParseEmbeddedFields parses a comma separated list of field names such as
// "timestamp,shutter". "none" disables every field.
func ParseEmbeddedFields(list string) (EmbeddedFields, error) {
	var f EmbeddedFields
	list = strings.TrimSpace(list)
	if list == "" || strings.EqualFold(list, "none") {
		return f, nil
	}
	flags := f.flags()
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		found := false
		for field := driver.EmbeddedField(0); field < driver.NumEmbeddedFields; field++ {
			if field.String() == name {
				*flags[field] = true
				found = true
				break
			}
		}
		if !found {
			return EmbeddedFields{}, fmt.Errorf("unknown embedded field %q", name)
		}
	}
	return f, nil
}

func (f *EmbeddedFields) flags() [driver.NumEmbeddedFields]*bool {
	return [driver.NumEmbeddedFields]*bool{
		driver.EmbedTimestamp:     &f.Timestamp,
		driver.EmbedGain:          &f.Gain,
		driver.EmbedShutter:       &f.Shutter,
		driver.EmbedBrightness:    &f.Brightness,
		driver.EmbedExposure:      &f.Exposure,
		driver.EmbedWhiteBalance:  &f.WhiteBalance,
		driver.EmbedFrameCounter:  &f.FrameCounter,
		driver.EmbedStrobePattern: &f.StrobePattern,
		driver.EmbedGPIOPinState:  &f.GPIOPinState,
		driver.EmbedROIPosition:   &f.ROIPosition,
	}
}

// Enabled lists the selected fields in stamp order.
func (f EmbeddedFields) Enabled() []driver.EmbeddedField {
	var out []driver.EmbeddedField
	for field, on := range f.flags() {
		if *on {
			out = append(out, driver.EmbeddedField(field))
		}
	}
	return out
}

// Apply turns on the selected fields in info. Fields already enabled on the
// camera stay enabled.
func (f EmbeddedFields) Apply(info driver.EmbeddedInfo) driver.EmbeddedInfo {
	for _, field := range f.Enabled() {
		info[field].OnOff = true
	}
	return info
}

func (f EmbeddedFields) String() string {
	enabled := f.Enabled()
	if len(enabled) == 0 {
		return "none"
	}
	names := make([]string, len(enabled))
	for i, field := range enabled {
		names[i] = field.String()
	}
	return strings.Join(names, ",")
}
