package camarray

import (
	"fmt"

	"github.com/smazurov/camsync/internal/driver"
)

// copyStrategy selects which value channels of a property travel from the
// master camera to the slaves.
type copyStrategy int

const (
	// copyAbsolute copies the real valued absolute register.
	copyAbsolute copyStrategy = iota
	// copyValueA copies the single integer channel.
	copyValueA
	// copyValueAB copies both integer channels.
	copyValueAB
)

// distributable lists the properties probed for manual control, in the order
// they are distributed, with the channels each one copies.
var distributable = []struct {
	Type driver.PropertyType
	Copy copyStrategy
}{
	{driver.Brightness, copyAbsolute},
	{driver.AutoExposure, copyAbsolute},
	{driver.Sharpness, copyValueA},
	{driver.WhiteBalance, copyValueAB},
	{driver.Hue, copyAbsolute},
	{driver.Saturation, copyAbsolute},
	{driver.Gamma, copyAbsolute},
	{driver.Shutter, copyAbsolute},
	{driver.Gain, copyAbsolute},
}

func copyStrategyFor(t driver.PropertyType) copyStrategy {
	for _, d := range distributable {
		if d.Type == t {
			return d.Copy
		}
	}
	return copyAbsolute
}

// slaveValue builds the manual property a slave is set to so it matches
// master.
func (c copyStrategy) slaveValue(master driver.Property) driver.Property {
	p := driver.Property{
		Type:           master.Type,
		OnOff:          true,
		AutoManualMode: false,
	}
	switch c {
	case copyValueAB:
		p.ValueA = master.ValueA
		p.ValueB = master.ValueB
	case copyValueA:
		p.ValueA = master.ValueA
	default:
		p.AbsControl = true
		p.AbsValue = master.AbsValue
	}
	return p
}

// probeManualProperties records which distributable properties camera 0
// supports under both automatic and manual control. The result is assumed
// to hold for every camera in the array.
func (s *Session) probeManualProperties() error {
	s.manual = s.manual[:0]
	cam := s.cams[0]
	for _, d := range distributable {
		info, err := cam.PropertyInfo(d.Type)
		if err != nil {
			return NewArrayError(ErrCodeInitialization, 0, "probe property "+d.Type.String(), err)
		}
		switch {
		case !info.Present:
			s.logger.Debug("Property not present", "property", d.Type)
		case !info.AutoSupported:
			s.logger.Debug("Property has no auto mode", "property", d.Type)
		case !info.ManualSupported:
			s.logger.Debug("Property has no manual mode", "property", d.Type)
		default:
			s.manual = append(s.manual, d.Type)
		}
	}
	return nil
}

// ManualProperties returns the properties that are distributed from the
// master camera.
func (s *Session) ManualProperties() []driver.PropertyType {
	return append([]driver.PropertyType(nil), s.manual...)
}

// Distribute copies the master's current value of every manually
// controllable property to all other cameras. master is a logical channel.
// The first failed read or write aborts the remaining writes; writes that
// already happened are kept.
func (s *Session) Distribute(master int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	m, ok := s.order.Physical(master)
	if !ok {
		return NewArrayError(ErrCodeInvalidIndex, -1, fmt.Sprintf("master channel %d out of range", master), nil)
	}
	for _, t := range s.manual {
		mp, err := s.cams[m].Property(t)
		if err != nil {
			return NewArrayError(ErrCodePropertyRead, m, "read master "+t.String(), err)
		}
		sp := copyStrategyFor(t).slaveValue(mp)
		for i, cam := range s.cams {
			if i == m {
				continue
			}
			if err := cam.SetProperty(sp); err != nil {
				return NewArrayError(ErrCodePropertyWrite, i, "set "+t.String(), err)
			}
		}
	}
	return nil
}

// RestoreDefaults reloads the factory property bank of the camera at
// physical index, or of every camera when index is -1. Failures on
// individual cameras are logged; only an out of range index is an error.
func (s *Session) RestoreDefaults(index int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if index < -1 || index >= len(s.cams) {
		return NewArrayError(ErrCodeInvalidIndex, index, "restore defaults", nil)
	}
	targets := []int{index}
	if index == -1 {
		targets = targets[:0]
		for i := range s.cams {
			targets = append(targets, i)
		}
	}
	for _, i := range targets {
		if err := s.cams[i].RestoreFromMemoryChannel(0); err != nil {
			s.logger.Warn("Failed to restore default properties", "camera", i, "error", err)
		}
	}
	return nil
}

// SetShutter puts every camera's shutter under manual control at ms
// milliseconds and hands gain to the auto exposure loop, which then keeps
// image brightness constant.
func (s *Session) SetShutter(ms float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	shutter := driver.Property{
		Type:       driver.Shutter,
		OnOff:      true,
		AbsControl: true,
		AbsValue:   float32(ms),
	}
	gain := driver.Property{
		Type:           driver.Gain,
		OnOff:          true,
		AutoManualMode: true,
	}
	for i, cam := range s.cams {
		if err := cam.SetProperty(shutter); err != nil {
			return NewArrayError(ErrCodePropertyWrite, i, "set shutter", err)
		}
		if err := cam.SetProperty(gain); err != nil {
			return NewArrayError(ErrCodePropertyWrite, i, "set gain", err)
		}
	}
	return nil
}

// PropertyReading is the absolute value of one property.
type PropertyReading struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
	Unit  string  `json:"unit"`
}

// ReadProperty reads property t of the camera on channel as an absolute
// value. ok is false when the camera cannot read the property back that way.
func (s *Session) ReadProperty(t driver.PropertyType, channel int) (r PropertyReading, ok bool, err error) {
	cam, idx, err := s.channelCamera(channel)
	if err != nil {
		return r, false, err
	}
	info, err := cam.PropertyInfo(t)
	if err != nil {
		return r, false, NewArrayError(ErrCodePropertyRead, idx, "property info", err)
	}
	if !info.Present || !info.AbsValSupported || !info.ReadOutSupported {
		return r, false, nil
	}
	p, err := cam.Property(t)
	if err != nil {
		return r, false, NewArrayError(ErrCodePropertyRead, idx, "read property", err)
	}
	return PropertyReading{Name: t.String(), Value: p.AbsValue, Unit: info.UnitAbbr}, true, nil
}

// ReadProperties returns every property of the camera on channel that
// reads back as an absolute value, in register order.
func (s *Session) ReadProperties(channel int) ([]PropertyReading, error) {
	var readings []PropertyReading
	for t := driver.Brightness; t <= driver.Temperature; t++ {
		r, ok, err := s.ReadProperty(t, channel)
		if err != nil {
			return nil, err
		}
		if ok {
			readings = append(readings, r)
		}
	}
	return readings, nil
}

// PropertyString renders property t of the camera on channel as
// "Name: value unit". It is empty when the camera cannot read the property
// back as an absolute value.
func (s *Session) PropertyString(t driver.PropertyType, channel int) (string, error) {
	r, ok, err := s.ReadProperty(t, channel)
	if err != nil || !ok {
		return "", err
	}
	return fmt.Sprintf("%s: %g %s", r.Name, r.Value, r.Unit), nil
}
