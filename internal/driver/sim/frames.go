package sim

import (
	"encoding/binary"
	"math"

	"github.com/smazurov/camsync/internal/driver"
)

// render fills img with the next frame. Called with c.mu held.
func (c *Camera) render(img *driver.Image) {
	w, h := c.mode.Width, c.mode.Height
	enc := c.mode.Encoding
	bpp := enc.BitsPerPixel()
	if c.mode.IsFormat7() {
		w, h = c.format7.Width, c.format7.Height
		bpp = c.format7.Encoding.BitsPerPixel()
	}

	stride := w * bpp / 8
	size := stride * h
	if cap(img.Data) >= size {
		img.Data = img.Data[:size]
	} else {
		img.Data = make([]byte, size)
	}
	img.Rows = h
	img.Cols = w
	img.Stride = stride
	img.BitsPerPixel = bpp
	img.Encoding = enc
	img.Metadata = driver.Metadata{}

	fill := c.bus.opts.Fill
	if fill == nil {
		fill = Pattern
	}
	fill(c.serial, c.frames, img)
	c.stamp(img)
}

// stamp writes the enabled embedded fields big-endian into the first pixels.
func (c *Camera) stamp(img *driver.Image) {
	off := 0
	for f := driver.EmbeddedField(0); f < driver.NumEmbeddedFields; f++ {
		if !c.embedded[f].OnOff {
			continue
		}
		v := c.embeddedValue(f)
		img.Metadata.Set(f, v)
		if off+4 <= len(img.Data) {
			binary.BigEndian.PutUint32(img.Data[off:], v)
		}
		off += 4
	}
}

func (c *Camera) embeddedValue(f driver.EmbeddedField) uint32 {
	switch f {
	case driver.EmbedTimestamp:
		// IIDC cycle time: 7 bits seconds, 13 bits cycle count, 12 bits offset.
		sec := uint32(c.lastFrame.Unix() % 128)
		cycle := uint32(c.lastFrame.Nanosecond() / 125000)
		return sec<<25 | cycle<<12
	case driver.EmbedGain:
		return math.Float32bits(c.props[driver.Gain].AbsValue)
	case driver.EmbedShutter:
		return math.Float32bits(c.props[driver.Shutter].AbsValue)
	case driver.EmbedBrightness:
		return c.props[driver.Brightness].ValueA
	case driver.EmbedExposure:
		return c.props[driver.AutoExposure].ValueA
	case driver.EmbedWhiteBalance:
		wb := c.props[driver.WhiteBalance]
		return wb.ValueA<<12 | wb.ValueB
	case driver.EmbedFrameCounter:
		return c.frames
	case driver.EmbedGPIOPinState:
		return 0xF
	case driver.EmbedROIPosition:
		return uint32(c.format7.OffsetX)<<16 | uint32(c.format7.OffsetY)
	}
	return 0
}

// Pattern is the default synthetic frame: a diagonal ramp that moves with
// the frame counter and differs per camera.
func Pattern(serial, frame uint32, img *driver.Image) {
	shift := int(serial + frame)
	for y := 0; y < img.Rows; y++ {
		row := img.Data[y*img.Stride : (y+1)*img.Stride]
		switch img.Encoding {
		case driver.EncodingMono16:
			for x := 0; x < img.Cols; x++ {
				binary.BigEndian.PutUint16(row[x*2:], uint16((x+y+shift)<<4))
			}
		case driver.EncodingRGB24, driver.EncodingYUV444:
			for x := 0; x < img.Cols; x++ {
				row[x*3] = byte(x + shift)
				row[x*3+1] = byte(y + shift)
				row[x*3+2] = byte(x + y)
			}
		case driver.EncodingYUV422:
			for x := 0; x+1 < img.Cols; x += 2 {
				i := x * 2
				row[i] = byte(96 + (x+shift)%64)
				row[i+1] = byte(16 + (x+y+shift)%220)
				row[i+2] = byte(96 + (y+shift)%64)
				row[i+3] = byte(16 + (x+y+shift+1)%220)
			}
		case driver.EncodingYUV411:
			for x := 0; x+3 < img.Cols; x += 4 {
				i := x / 4 * 6
				row[i] = byte(96 + (x+shift)%64)
				row[i+1] = byte(16 + (x+y+shift)%220)
				row[i+2] = byte(16 + (x+y+shift+1)%220)
				row[i+3] = byte(96 + (y+shift)%64)
				row[i+4] = byte(16 + (x+y+shift+2)%220)
				row[i+5] = byte(16 + (x+y+shift+3)%220)
			}
		default:
			for x := range row {
				row[x] = byte(x + y + shift)
			}
		}
	}
}
