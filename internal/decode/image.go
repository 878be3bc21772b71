package decode

import "image"

// Image is a canonical 8-bit image with one or three interleaved channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

func newImage(w, h, channels int) *Image {
	return &Image{Width: w, Height: h, Channels: channels, Pix: make([]byte, w*h*channels)}
}

// Clone returns a deep copy, detaching aliased mono buffers from the driver.
func (img *Image) Clone() *Image {
	dup := *img
	dup.Pix = append([]byte(nil), img.Pix...)
	return &dup
}

// Std converts the image to a standard library image. Three-channel images
// are interpreted in the given order.
func (img *Image) Std(order Order) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == 1 {
		return &image.Gray{Pix: img.Pix, Stride: img.Width, Rect: rect}
	}
	out := image.NewNRGBA(rect)
	rOff := order.swapOffset()
	for i, o := 0, 0; i+2 < len(img.Pix); i, o = i+3, o+4 {
		out.Pix[o] = img.Pix[i+rOff]
		out.Pix[o+1] = img.Pix[i+1]
		out.Pix[o+2] = img.Pix[i+2-rOff]
		out.Pix[o+3] = 0xFF
	}
	return out
}
