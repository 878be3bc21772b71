package decode

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/smazurov/camsync/internal/driver"
)

func randomFrame(w, h int, enc driver.Encoding, seed uint64) *driver.Image {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	bpp := enc.BitsPerPixel()
	stride := w * bpp / 8
	data := make([]byte, stride*h)
	for i := range data {
		data[i] = byte(r.UintN(256))
	}
	return &driver.Image{Rows: h, Cols: w, Stride: stride, BitsPerPixel: bpp, Encoding: enc, Data: data}
}

func uniformYUV422(w, h int, u, y1, v, y2 byte) *driver.Image {
	data := make([]byte, w*h*2)
	for i := 0; i+3 < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = u, y1, v, y2
	}
	return &driver.Image{Rows: h, Cols: w, Stride: w * 2, BitsPerPixel: 16, Encoding: driver.EncodingYUV422, Data: data}
}

func TestStripesTileExactly(t *testing.T) {
	for _, h := range []int{1, 2, 7, 480, 1200} {
		for _, n := range []int{1, 2, 3, 7, 16, 2000} {
			stripes := Stripes(h, n)
			if len(stripes) != min(n, h) {
				t.Errorf("Stripes(%d, %d) count = %d, want %d", h, n, len(stripes), min(n, h))
			}
			next := 0
			for _, s := range stripes {
				if s[0] != next {
					t.Fatalf("Stripes(%d, %d): stripe starts at %d, want %d", h, n, s[0], next)
				}
				if s[1] <= s[0] {
					t.Fatalf("Stripes(%d, %d): empty stripe %v", h, n, s)
				}
				next = s[1]
			}
			if next != h {
				t.Errorf("Stripes(%d, %d) ends at %d, want %d", h, n, next, h)
			}
		}
	}
	if got := Stripes(0, 4); got != nil {
		t.Errorf("Stripes(0, 4) = %v, want nil", got)
	}
}

func TestCPUBackendWorkersAtLeastOne(t *testing.T) {
	for _, n := range []int{0, -3} {
		if got := NewCPUBackend(n).Workers(); got < 1 {
			t.Errorf("NewCPUBackend(%d).Workers() = %d, want >= 1", n, got)
		}
	}
	if got := NewCPUBackend(5).Workers(); got != 5 {
		t.Errorf("NewCPUBackend(5).Workers() = %d, want 5", got)
	}
}

func TestDecodeYUV422NeutralGray(t *testing.T) {
	d := New(Options{Order: OrderRGB})
	img, err := d.Decode(uniformYUV422(64, 48, 128, 146, 128, 146))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Channels != 3 || len(img.Pix) != 64*48*3 {
		t.Fatalf("Decode() = %d channels, %d bytes, want 3 channels, %d bytes", img.Channels, len(img.Pix), 64*48*3)
	}
	// 298*(146-16)+128 >> 8
	const want = 151
	for i := 0; i < len(img.Pix); i += 3 {
		r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
		if r != g || g != b || r != want {
			t.Fatalf("pixel %d = (%d,%d,%d), want (%d,%d,%d)", i/3, r, g, b, want, want, want)
		}
	}
}

func TestDecodeYUV422Clamps(t *testing.T) {
	tests := []struct {
		name         string
		u, y, v      byte
		wantR, wantG byte
		wantB        byte
	}{
		{"all zero", 0, 0, 0, 0, 135, 0},
		{"all max", 255, 255, 255, 255, 125, 255},
		{"black", 128, 16, 128, 0, 0, 0},
		{"white", 128, 235, 128, 255, 255, 255},
	}
	d := New(Options{Workers: 1})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(uniformYUV422(2, 1, tt.u, tt.y, tt.v, tt.y))
			if err != nil {
				t.Fatal(err)
			}
			got := img.Pix[:3]
			want := []byte{tt.wantR, tt.wantG, tt.wantB}
			if !bytes.Equal(got, want) {
				t.Errorf("pixel = %v, want %v", got, want)
			}
		})
	}
}

func TestDecodeYUV422ShapeAndIdempotence(t *testing.T) {
	d := New(Options{})
	raw := randomFrame(160, 120, driver.EncodingYUV422, 7)
	first, err := d.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if first.Width != 160 || first.Height != 120 || first.Channels != 3 {
		t.Errorf("Decode() = %dx%dx%d, want 160x120x3", first.Width, first.Height, first.Channels)
	}
	second, err := d.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("decoding the same frame twice produced different bytes")
	}
}

func TestDecodeYUV422OrderIsSingleSwap(t *testing.T) {
	raw := randomFrame(32, 8, driver.EncodingYUV422, 3)
	rgb, err := New(Options{Order: OrderRGB}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	bgr, err := New(Options{Order: OrderBGR}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(rgb.Pix); i += 3 {
		if rgb.Pix[i] != bgr.Pix[i+2] || rgb.Pix[i+1] != bgr.Pix[i+1] || rgb.Pix[i+2] != bgr.Pix[i] {
			t.Fatalf("pixel %d rgb=%v bgr=%v", i/3, rgb.Pix[i:i+3], bgr.Pix[i:i+3])
		}
	}
}

func TestDecodeStripeCountDoesNotChangeOutput(t *testing.T) {
	raw := randomFrame(320, 37, driver.EncodingYUV422, 11)
	one, err := New(Options{Workers: 1}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{2, 5, 37, 100} {
		got, err := New(Options{Workers: n}).Decode(raw)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(one.Pix, got.Pix) {
			t.Errorf("Workers=%d output differs from Workers=1", n)
		}
	}
}

func TestDecodeMono8Passthrough(t *testing.T) {
	raw := randomFrame(40, 30, driver.EncodingMono8, 1)
	img, err := New(Options{}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if img.Channels != 1 || len(img.Pix) != 40*30 {
		t.Fatalf("Decode() = %d channels, %d bytes, want 1, %d", img.Channels, len(img.Pix), 40*30)
	}
	if &img.Pix[0] != &raw.Data[0] {
		t.Error("mono8 output does not alias the raw buffer")
	}
	clone := img.Clone()
	raw.Data[0]++
	if clone.Pix[0] == raw.Data[0] {
		t.Error("Clone() still aliases the raw buffer")
	}
}

func TestDecodeMono8PaddedRows(t *testing.T) {
	raw := &driver.Image{Rows: 2, Cols: 3, Stride: 4, BitsPerPixel: 8, Encoding: driver.EncodingMono8,
		Data: []byte{1, 2, 3, 0, 4, 5, 6, 0}}
	img, err := New(Options{}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 4, 5, 6}; !bytes.Equal(img.Pix, want) {
		t.Errorf("Pix = %v, want %v", img.Pix, want)
	}
}

func TestDecodeThreeChannelSwap(t *testing.T) {
	raw := &driver.Image{Rows: 1, Cols: 2, Stride: 6, BitsPerPixel: 24, Encoding: driver.EncodingRGB24,
		Data: []byte{10, 20, 30, 40, 50, 60}}

	rgb, err := New(Options{Order: OrderRGB}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{30, 20, 10, 60, 50, 40}; !bytes.Equal(rgb.Pix, want) {
		t.Errorf("RGB Pix = %v, want %v", rgb.Pix, want)
	}

	bgr, err := New(Options{Order: OrderBGR}).Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bgr.Pix, raw.Data) {
		t.Errorf("BGR Pix = %v, want %v", bgr.Pix, raw.Data)
	}
	if &bgr.Pix[0] == &raw.Data[0] {
		t.Error("3-channel output aliases the raw buffer")
	}
}

func TestDecodeOtherEncodings(t *testing.T) {
	tests := []struct {
		name         string
		raw          *driver.Image
		wantChannels int
	}{
		{"mono16", randomFrame(8, 4, driver.EncodingMono16, 1), 1},
		{"yuv444", randomFrame(8, 4, driver.EncodingYUV444, 2), 3},
		{"yuv411", randomFrame(8, 4, driver.EncodingYUV411, 3), 3},
		{"wide 8bpp", &driver.Image{Rows: 2, Cols: 2, Stride: 2, BitsPerPixel: 8, Encoding: driver.EncodingWide, Data: make([]byte, 4)}, 1},
		{"wide 16bpp", &driver.Image{Rows: 2, Cols: 2, Stride: 4, BitsPerPixel: 16, Encoding: driver.EncodingWide, Data: make([]byte, 8)}, 3},
	}
	d := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if img.Channels != tt.wantChannels {
				t.Errorf("Channels = %d, want %d", img.Channels, tt.wantChannels)
			}
			if len(img.Pix) != tt.raw.Cols*tt.raw.Rows*tt.wantChannels {
				t.Errorf("len(Pix) = %d, want %d", len(img.Pix), tt.raw.Cols*tt.raw.Rows*tt.wantChannels)
			}
		})
	}
}

func TestDecodeYUV444MatchesYUV422Kernel(t *testing.T) {
	// A 4:4:4 pixel pair with shared chroma decodes like the 4:2:2 pair.
	yuv444 := &driver.Image{Rows: 1, Cols: 2, Stride: 6, BitsPerPixel: 24, Encoding: driver.EncodingYUV444,
		Data: []byte{90, 100, 200, 90, 180, 200}}
	yuv422 := &driver.Image{Rows: 1, Cols: 2, Stride: 4, BitsPerPixel: 16, Encoding: driver.EncodingYUV422,
		Data: []byte{90, 100, 200, 180}}
	d := New(Options{})
	a, _ := d.Decode(yuv444)
	b, _ := d.Decode(yuv422)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Errorf("yuv444 %v != yuv422 %v", a.Pix, b.Pix)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  *driver.Image
	}{
		{"nil", nil},
		{"odd 4:2:2 width", &driver.Image{Rows: 1, Cols: 3, Stride: 6, BitsPerPixel: 16, Encoding: driver.EncodingYUV422, Data: make([]byte, 6)}},
		{"short buffer", &driver.Image{Rows: 4, Cols: 4, Stride: 4, BitsPerPixel: 8, Encoding: driver.EncodingMono8, Data: make([]byte, 5)}},
		{"wide 32bpp", &driver.Image{Rows: 1, Cols: 1, Stride: 4, BitsPerPixel: 32, Encoding: driver.EncodingWide, Data: make([]byte, 4)}},
	}
	d := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Decode(tt.raw); !errors.Is(err, ErrUnsupportedFrame) {
				t.Errorf("Decode() error = %v, want ErrUnsupportedFrame", err)
			}
		})
	}
}

type failingBackend struct {
	calls  int
	closed bool
}

func (f *failingBackend) Name() string { return "fake-gpu" }
func (f *failingBackend) Close() error {
	f.closed = true
	return nil
}
func (f *failingBackend) DecodeYUV422([]byte, int, int, int, Order, []byte) error {
	f.calls++
	return errors.New("device lost")
}

func TestDecoderFallsBackOnceWhenProbeFails(t *testing.T) {
	var reasons []error
	d := newDecoder(Options{UseGPU: true, OnFallback: func(err error) { reasons = append(reasons, err) }},
		func() (Backend, error) { return nil, ErrGPUUnavailable })

	if got := d.Backend(); got != "cpu" {
		t.Errorf("Backend() = %q, want cpu", got)
	}
	for range 3 {
		if _, err := d.Decode(uniformYUV422(4, 2, 128, 100, 128, 100)); err != nil {
			t.Fatal(err)
		}
	}
	if len(reasons) != 1 {
		t.Errorf("fallback reported %d times, want 1", len(reasons))
	}
}

func TestDecoderFallsBackPermanentlyOnDispatchFailure(t *testing.T) {
	fake := &failingBackend{}
	fallbacks := 0
	d := newDecoder(Options{UseGPU: true, OnFallback: func(error) { fallbacks++ }},
		func() (Backend, error) { return fake, nil })

	if got := d.Backend(); got != "fake-gpu" {
		t.Fatalf("Backend() = %q, want fake-gpu", got)
	}
	raw := uniformYUV422(4, 2, 128, 146, 128, 146)
	want, _ := New(Options{}).Decode(raw)
	for range 3 {
		got, err := d.Decode(raw)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got.Pix, want.Pix) {
			t.Errorf("fallback output = %v, want %v", got.Pix, want.Pix)
		}
	}
	if fake.calls != 1 {
		t.Errorf("GPU backend called %d times, want 1", fake.calls)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
	if !fake.closed {
		t.Error("failed backend was not closed")
	}
	if got := d.Backend(); got != "cpu" {
		t.Errorf("Backend() after fallback = %q, want cpu", got)
	}
}

func TestImageStd(t *testing.T) {
	img := &Image{Width: 1, Height: 1, Channels: 3, Pix: []byte{1, 2, 3}}
	r, g, b, _ := img.Std(OrderBGR).At(0, 0).RGBA()
	if r>>8 != 3 || g>>8 != 2 || b>>8 != 1 {
		t.Errorf("Std(BGR) = (%d,%d,%d), want (3,2,1)", r>>8, g>>8, b>>8)
	}
	gray := &Image{Width: 2, Height: 1, Channels: 1, Pix: []byte{9, 10}}
	if y, _, _, _ := gray.Std(OrderRGB).At(1, 0).RGBA(); y>>8 != 10 {
		t.Errorf("gray At(1,0) = %d, want 10", y>>8)
	}
}
