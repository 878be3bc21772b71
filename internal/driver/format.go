package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoding is the sensor pixel encoding of a video mode.
type Encoding int

// Supported encodings.
const (
	EncodingMono8 Encoding = iota
	EncodingMono16
	EncodingRGB24
	EncodingYUV422
	EncodingYUV444
	EncodingYUV411
	// EncodingWide is the vendor Format7 mode. Its layout is only known
	// through the frame's bits per pixel.
	EncodingWide
)

var encodingNames = map[Encoding]string{
	EncodingMono8:  "mono8",
	EncodingMono16: "mono16",
	EncodingRGB24:  "rgb24",
	EncodingYUV422: "yuv422",
	EncodingYUV444: "yuv444",
	EncodingYUV411: "yuv411",
	EncodingWide:   "wide",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return "unknown"
}

// BitsPerPixel returns the average number of bits per pixel.
func (e Encoding) BitsPerPixel() int {
	switch e {
	case EncodingMono16, EncodingYUV422:
		return 16
	case EncodingRGB24, EncodingYUV444:
		return 24
	case EncodingYUV411:
		return 12
	default:
		return 8
	}
}

// ParseEncoding parses an encoding name such as "yuv422" or "Y8".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mono8", "y8":
		return EncodingMono8, nil
	case "mono16", "y16":
		return EncodingMono16, nil
	case "rgb24", "rgb":
		return EncodingRGB24, nil
	case "yuv422":
		return EncodingYUV422, nil
	case "yuv444":
		return EncodingYUV444, nil
	case "yuv411":
		return EncodingYUV411, nil
	case "wide", "format7":
		return EncodingWide, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

// VideoMode is a fixed (resolution, encoding) pair, or Format7.
type VideoMode struct {
	Width    int
	Height   int
	Encoding Encoding
}

// Format7 is the scalable vendor mode.
var Format7 = VideoMode{Encoding: EncodingWide}

// IsFormat7 reports whether m is the scalable vendor mode.
func (m VideoMode) IsFormat7() bool {
	return m.Encoding == EncodingWide
}

func (m VideoMode) String() string {
	if m.IsFormat7() {
		return "FORMAT7"
	}
	return fmt.Sprintf("%dx%d %s", m.Width, m.Height, strings.ToUpper(m.Encoding.String()))
}

// StandardVideoModes lists the IIDC fixed modes in probe order.
var StandardVideoModes = []VideoMode{
	Format7,
	{160, 120, EncodingYUV444},
	{320, 240, EncodingYUV422},
	{640, 480, EncodingYUV422},
	{800, 600, EncodingYUV422},
	{1024, 768, EncodingYUV422},
	{1280, 960, EncodingYUV422},
	{1600, 1200, EncodingYUV422},
	{640, 480, EncodingYUV411},
	{640, 480, EncodingRGB24},
	{800, 600, EncodingRGB24},
	{1024, 768, EncodingRGB24},
	{1280, 960, EncodingRGB24},
	{1600, 1200, EncodingRGB24},
	{640, 480, EncodingMono8},
	{800, 600, EncodingMono8},
	{1024, 768, EncodingMono8},
	{1280, 960, EncodingMono8},
	{1600, 1200, EncodingMono8},
	{640, 480, EncodingMono16},
	{800, 600, EncodingMono16},
	{1024, 768, EncodingMono16},
	{1280, 960, EncodingMono16},
	{1600, 1200, EncodingMono16},
}

// FrameRate is an IIDC fixed frame rate.
type FrameRate int

// Fixed frame rates.
const (
	FrameRate3_75 FrameRate = iota
	FrameRate7_5
	FrameRate15
	FrameRate30
	FrameRate60
	FrameRate120
	FrameRate240
)

// FrameRates lists all fixed frame rates in ascending order.
var FrameRates = []FrameRate{
	FrameRate3_75, FrameRate7_5, FrameRate15, FrameRate30, FrameRate60, FrameRate120, FrameRate240,
}

var frameRateHz = []float64{3.75, 7.5, 15, 30, 60, 120, 240}

// Hz returns the frame rate in frames per second.
func (r FrameRate) Hz() float64 {
	if r < 0 || int(r) >= len(frameRateHz) {
		return 0
	}
	return frameRateHz[r]
}

func (r FrameRate) String() string {
	return strconv.FormatFloat(r.Hz(), 'f', -1, 64)
}

// ParseFrameRate maps a frames-per-second value onto the matching fixed rate.
func ParseFrameRate(fps float64) (FrameRate, error) {
	for _, r := range FrameRates {
		if r.Hz() == fps {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unsupported frame rate %v", fps)
}

// Format7Mode selects one of the vendor's scalable modes.
type Format7Mode int

// Format7Info describes geometry constraints of a Format7 mode.
type Format7Info struct {
	Mode            Format7Mode
	Supported       bool
	MaxWidth        int
	MaxHeight       int
	OffsetHStepSize int
	OffsetVStepSize int
	ImageHStepSize  int
	ImageVStepSize  int
}

// Format7Settings is a region of interest in a Format7 mode.
type Format7Settings struct {
	Mode     Format7Mode
	OffsetX  int
	OffsetY  int
	Width    int
	Height   int
	Encoding Encoding
}

// Image is one retrieved frame. Data is owned by whoever passed the Image
// to RetrieveBuffer and is overwritten on the next retrieval.
type Image struct {
	Rows         int
	Cols         int
	Stride       int
	BitsPerPixel int
	Encoding     Encoding
	Data         []byte
	Metadata     Metadata
}

// Channels returns the number of bytes per pixel as the frame reports it.
func (img *Image) Channels() int {
	return img.BitsPerPixel / 8
}
