package sim

import "github.com/smazurov/camsync/internal/driver"

type propDefault struct {
	info driver.PropertyInfo
	prop driver.Property
}

// Factory defaults of the simulated sensor, the contents of memory channel 0.
var factory = []propDefault{
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 0, Max: 255, AbsMin: 0, AbsMax: 6.24, Units: "percent", UnitAbbr: "%"},
		prop: driver.Property{Type: driver.Brightness, AbsControl: true, OnOff: true, ValueA: 16, AbsValue: 0.39},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 1, Max: 1023, AbsMin: -7.58, AbsMax: 2.41, Units: "EV", UnitAbbr: "EV"},
		prop: driver.Property{Type: driver.AutoExposure, AbsControl: true, OnOff: true, AutoManualMode: true, ValueA: 325, AbsValue: 0.35},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, ReadOutSupported: true, Min: 0, Max: 4095},
		prop: driver.Property{Type: driver.Sharpness, OnOff: true, ValueA: 1024},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, ReadOutSupported: true, Min: 0, Max: 1023},
		prop: driver.Property{Type: driver.WhiteBalance, OnOff: true, ValueA: 482, ValueB: 762},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: false, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 0, Max: 4095, AbsMin: -180, AbsMax: 180, Units: "degree", UnitAbbr: "deg"},
		prop: driver.Property{Type: driver.Hue, AbsControl: true, OnOff: false, ValueA: 2048, AbsValue: 0},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 0, Max: 4095, AbsMin: 0, AbsMax: 399.9, Units: "percent", UnitAbbr: "%"},
		prop: driver.Property{Type: driver.Saturation, AbsControl: true, OnOff: true, ValueA: 1024, AbsValue: 100},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 512, Max: 4095, AbsMin: 0.5, AbsMax: 3.99, Units: "", UnitAbbr: ""},
		prop: driver.Property{Type: driver.Gamma, AbsControl: true, OnOff: true, ValueA: 1024, AbsValue: 1},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: false, AbsValSupported: true, ReadOutSupported: true, Min: 1, Max: 1150, AbsMin: 0.02, AbsMax: 66.63, Units: "milliseconds", UnitAbbr: "ms"},
		prop: driver.Property{Type: driver.Shutter, AbsControl: true, OnOff: true, AutoManualMode: true, ValueA: 530, AbsValue: 10.4},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: false, AbsValSupported: true, ReadOutSupported: true, Min: 0, Max: 1023, AbsMin: -2.81, AbsMax: 24, Units: "decibels", UnitAbbr: "dB"},
		prop: driver.Property{Type: driver.Gain, AbsControl: true, OnOff: true, AutoManualMode: true, ValueA: 16, AbsValue: 0},
	},
	{
		info: driver.PropertyInfo{Present: true, AutoSupported: true, ManualSupported: true, OnOffSupported: true, AbsValSupported: true, ReadOutSupported: true, Min: 1, Max: 4095, AbsMin: 1, AbsMax: 15.6, Units: "frames per second", UnitAbbr: "fps"},
		prop: driver.Property{Type: driver.FrameRateProperty, AbsControl: true, OnOff: true, AutoManualMode: true, ValueA: 480, AbsValue: 15},
	},
	{
		info: driver.PropertyInfo{Present: true, ReadOutSupported: true, AbsValSupported: true, Min: 0, Max: 4095, AbsMin: 0, AbsMax: 100, Units: "celsius", UnitAbbr: "C"},
		prop: driver.Property{Type: driver.Temperature, AbsControl: true, OnOff: true, AbsValue: 41.5},
	},
}

func defaultInfos() map[driver.PropertyType]driver.PropertyInfo {
	infos := make(map[driver.PropertyType]driver.PropertyInfo, len(factory))
	for _, d := range factory {
		info := d.info
		info.Type = d.prop.Type
		infos[d.prop.Type] = info
	}
	return infos
}

func defaultProperties() map[driver.PropertyType]driver.Property {
	props := make(map[driver.PropertyType]driver.Property, len(factory))
	for _, d := range factory {
		p := d.prop
		p.Present = true
		props[p.Type] = p
	}
	return props
}

func clampAbs(v float32, info driver.PropertyInfo) float32 {
	if info.AbsMax <= info.AbsMin {
		return v
	}
	return max(info.AbsMin, min(info.AbsMax, v))
}

func clampRaw(v uint32, info driver.PropertyInfo) uint32 {
	if info.Max <= info.Min {
		return v
	}
	return max(info.Min, min(info.Max, v))
}

// driftAuto models auto-exposure wandering on properties in auto mode.
func (c *Camera) driftAuto() {
	step := float32(int((c.frames+c.serial)%7)-3) / 100
	for _, t := range []driver.PropertyType{driver.Shutter, driver.Gain, driver.Brightness, driver.AutoExposure} {
		p, ok := c.props[t]
		if !ok || !p.OnOff || !p.AutoManualMode {
			continue
		}
		info := c.infos[t]
		p.AbsValue = clampAbs(p.AbsValue+step*(info.AbsMax-info.AbsMin)/10, info)
		c.props[t] = p
	}
}
