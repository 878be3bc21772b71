// Package decode converts raw camera buffers into canonical 8-bit mono or
// RGB images.
//
// Packed 4:2:2 buffers go through a Backend. The CPU backend splits the
// image into horizontal stripes processed in parallel; the GPU backend runs
// the same integer BT.601 kernel as one compute dispatch. Both produce
// identical bytes. The Decoder probes the GPU once and falls back to the CPU
// permanently if the device cannot be used.
package decode

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/camsync/internal/driver"
	"github.com/smazurov/camsync/internal/logging"
)

// Errors returned by the decoder.
var (
	ErrGPUUnavailable   = errors.New("decode: gpu backend unavailable")
	ErrUnsupportedFrame = errors.New("decode: unsupported frame layout")
)

// Order is the channel order of 3-channel output.
type Order int

// Output orders.
const (
	OrderRGB Order = iota
	OrderBGR
)

// swapOffset is the index of the red sample inside an output triple.
func (o Order) swapOffset() int {
	if o == OrderBGR {
		return 2
	}
	return 0
}

func (o Order) String() string {
	if o == OrderBGR {
		return "bgr"
	}
	return "rgb"
}

// Backend converts packed 4:2:2 data to 3-channel output.
type Backend interface {
	Name() string
	// DecodeYUV422 converts a width x height UYVY image with the given row
	// stride into dst, which holds width*height*3 bytes.
	DecodeYUV422(src []byte, width, height, stride int, order Order, dst []byte) error
	Close() error
}

// Options configures a Decoder.
type Options struct {
	Order Order
	// UseGPU probes the GPU backend at construction.
	UseGPU bool
	// Workers overrides the CPU stripe count. Zero means NumCPU-1.
	Workers int
	Logger  *slog.Logger
	// OnFallback is called once when the decoder abandons the GPU.
	OnFallback func(reason error)
}

// Decoder is the per-session pixel decoder.
type Decoder struct {
	order      Order
	cpu        *CPUBackend
	logger     *slog.Logger
	onFallback func(error)

	mu    sync.Mutex
	accel Backend
}

// New creates a decoder. GPU failures are logged and leave the decoder on
// the CPU path.
func New(opts Options) *Decoder {
	return newDecoder(opts, NewGPUBackend)
}

func newDecoder(opts Options, probe func() (Backend, error)) *Decoder {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("decode")
	}
	d := &Decoder{
		order:      opts.Order,
		cpu:        NewCPUBackend(opts.Workers),
		logger:     logger,
		onFallback: opts.OnFallback,
	}
	if !opts.UseGPU {
		return d
	}
	accel, err := probe()
	if err != nil {
		d.fallback(err)
		return d
	}
	d.accel = accel
	logger.Info("GPU decode backend ready", "backend", accel.Name())
	return d
}

func (d *Decoder) fallback(reason error) {
	d.logger.Warn("GPU decode unavailable, using CPU for the rest of the session", "error", reason)
	if d.onFallback != nil {
		d.onFallback(reason)
	}
}

// Backend returns the name of the backend used for 4:2:2 frames.
func (d *Decoder) Backend() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accel != nil {
		return d.accel.Name()
	}
	return d.cpu.Name()
}

// Order returns the configured 3-channel output order.
func (d *Decoder) Order() Order {
	return d.order
}

// Close releases the GPU backend if one is active.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accel == nil {
		return nil
	}
	err := d.accel.Close()
	d.accel = nil
	return err
}

// Decode converts raw into a canonical image. Mono8 output aliases raw.Data
// when rows are unpadded and stays valid only until the next retrieval.
func (d *Decoder) Decode(raw *driver.Image) (*Image, error) {
	if raw == nil || raw.Rows <= 0 || raw.Cols <= 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUnsupportedFrame)
	}
	stride := raw.Stride
	if stride == 0 {
		stride = raw.Cols * raw.BitsPerPixel / 8
	}
	if len(raw.Data) < stride*(raw.Rows-1)+raw.Cols*raw.BitsPerPixel/8 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d at %d bpp",
			ErrUnsupportedFrame, len(raw.Data), raw.Cols, raw.Rows, raw.BitsPerPixel)
	}

	switch raw.Encoding {
	case driver.EncodingMono8:
		return passthrough(raw, stride), nil
	case driver.EncodingMono16:
		return d.mono16(raw, stride), nil
	case driver.EncodingRGB24:
		return d.swap3(raw, stride), nil
	case driver.EncodingYUV422:
		return d.yuv422(raw, stride)
	case driver.EncodingYUV444:
		return d.yuv444(raw, stride), nil
	case driver.EncodingYUV411:
		return d.yuv411(raw, stride)
	}

	// Vendor modes only tell us the sample width.
	switch raw.Channels() {
	case 1:
		return passthrough(raw, stride), nil
	case 2:
		return d.yuv422(raw, stride)
	case 3:
		return d.swap3(raw, stride), nil
	}
	return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedFrame, raw.BitsPerPixel)
}

func passthrough(raw *driver.Image, stride int) *Image {
	w, h := raw.Cols, raw.Rows
	if stride == w {
		return &Image{Width: w, Height: h, Channels: 1, Pix: raw.Data[:w*h]}
	}
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w:(y+1)*w], raw.Data[y*stride:])
	}
	return &Image{Width: w, Height: h, Channels: 1, Pix: pix}
}

func (d *Decoder) mono16(raw *driver.Image, stride int) *Image {
	w, h := raw.Cols, raw.Rows
	out := newImage(w, h, 1)
	d.cpu.run(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			src := raw.Data[y*stride:]
			dst := out.Pix[y*w : (y+1)*w]
			for x := range dst {
				// Y16 is big-endian; keep the most significant byte.
				dst[x] = src[x*2]
			}
		}
	})
	return out
}

func (d *Decoder) swap3(raw *driver.Image, stride int) *Image {
	w, h := raw.Cols, raw.Rows
	out := newImage(w, h, 3)
	// Native 3-channel frames arrive blue first.
	rOff := 2 - d.order.swapOffset()
	d.cpu.run(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			src := raw.Data[y*stride:]
			dst := out.Pix[y*w*3 : (y+1)*w*3]
			for i := 0; i < len(dst); i += 3 {
				dst[i] = src[i+rOff]
				dst[i+1] = src[i+1]
				dst[i+2] = src[i+2-rOff]
			}
		}
	})
	return out
}

func (d *Decoder) yuv422(raw *driver.Image, stride int) (*Image, error) {
	w, h := raw.Cols, raw.Rows
	if w%2 != 0 {
		return nil, fmt.Errorf("%w: 4:2:2 width %d is odd", ErrUnsupportedFrame, w)
	}
	out := newImage(w, h, 3)

	d.mu.Lock()
	accel := d.accel
	d.mu.Unlock()

	if accel != nil {
		err := accel.DecodeYUV422(raw.Data, w, h, stride, d.order, out.Pix)
		if err == nil {
			return out, nil
		}
		d.mu.Lock()
		if d.accel == accel {
			d.accel = nil
			_ = accel.Close()
			d.mu.Unlock()
			d.fallback(err)
		} else {
			d.mu.Unlock()
		}
	}

	if err := d.cpu.DecodeYUV422(raw.Data, w, h, stride, d.order, out.Pix); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Decoder) yuv444(raw *driver.Image, stride int) *Image {
	w, h := raw.Cols, raw.Rows
	out := newImage(w, h, 3)
	rOff := d.order.swapOffset()
	d.cpu.run(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			yuv444Row(raw.Data[y*stride:], out.Pix[y*w*3:(y+1)*w*3], rOff)
		}
	})
	return out
}

func (d *Decoder) yuv411(raw *driver.Image, stride int) (*Image, error) {
	w, h := raw.Cols, raw.Rows
	if w%4 != 0 {
		return nil, fmt.Errorf("%w: 4:1:1 width %d is not a multiple of 4", ErrUnsupportedFrame, w)
	}
	out := newImage(w, h, 3)
	rOff := d.order.swapOffset()
	d.cpu.run(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			yuv411Row(raw.Data[y*stride:], out.Pix[y*w*3:(y+1)*w*3], rOff)
		}
	})
	return out, nil
}
