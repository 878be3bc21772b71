package driver

// PropertyType enumerates camera image properties.
type PropertyType int

// Property types, in IIDC register order.
const (
	Brightness PropertyType = iota
	AutoExposure
	Sharpness
	WhiteBalance
	Hue
	Saturation
	Gamma
	Iris
	Focus
	Zoom
	Pan
	Tilt
	Shutter
	Gain
	TriggerModeProperty
	TriggerDelay
	FrameRateProperty
	Temperature
)

var propertyNames = map[PropertyType]string{
	Brightness:          "Brightness",
	AutoExposure:        "Auto_Exposure",
	Sharpness:           "Sharpness",
	WhiteBalance:        "White_Balance",
	Hue:                 "Hue",
	Saturation:          "Saturation",
	Gamma:               "Gamma",
	Iris:                "Iris",
	Focus:               "Focus",
	Zoom:                "Zoom",
	Pan:                 "Pan",
	Tilt:                "Tilt",
	Shutter:             "Shutter",
	Gain:                "Gain",
	TriggerModeProperty: "Trigger_Mode",
	TriggerDelay:        "Trigger_Delay",
	FrameRateProperty:   "Frame_Rate",
	Temperature:         "Temperature",
}

func (t PropertyType) String() string {
	if s, ok := propertyNames[t]; ok {
		return s
	}
	return "Unspecified"
}

// Property is the current state of one camera property.
type Property struct {
	Type           PropertyType
	Present        bool
	AbsControl     bool
	OnePush        bool
	OnOff          bool
	AutoManualMode bool
	ValueA         uint32
	ValueB         uint32
	AbsValue       float32
}

// PropertyInfo describes what a camera supports for one property.
type PropertyInfo struct {
	Type             PropertyType
	Present          bool
	AutoSupported    bool
	ManualSupported  bool
	OnOffSupported   bool
	OnePushSupported bool
	AbsValSupported  bool
	ReadOutSupported bool
	Min              uint32
	Max              uint32
	AbsMin           float32
	AbsMax           float32
	Units            string
	UnitAbbr         string
}
