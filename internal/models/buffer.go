package models

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// BytesPerPixel is the size of one RGBA tuple in a PixelBuffer
const BytesPerPixel = 4

// PixelBuffer is a flat RGBA image in row-major order with the origin at
// the top-left corner. Channels are not premultiplied.
type PixelBuffer struct {
	// Pix holds Width*Height*4 bytes
	Pix []byte

	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int
}

// NewPixelBuffer allocates a zeroed (transparent black) buffer
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &PixelBuffer{
		Pix:    make([]byte, width*height*BytesPerPixel),
		Width:  width,
		Height: height,
	}
}

// PixelBufferFromImage copies any decoded image into a new PixelBuffer.
// The image bounds are translated so the result starts at (0,0).
func PixelBufferFromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	buf := NewPixelBuffer(bounds.Dx(), bounds.Dy())

	// Fast path: already non-premultiplied RGBA with a tight stride
	if src, ok := img.(*image.NRGBA); ok && src.Stride == bounds.Dx()*BytesPerPixel && src.Rect.Min == (image.Point{}) {
		copy(buf.Pix, src.Pix)
		return buf
	}

	draw.Draw(buf.Image(), buf.Image().Rect, img, bounds.Min, draw.Src)
	return buf
}

// Image wraps the buffer as an *image.NRGBA sharing the same backing array
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Offset returns the index of the first byte of pixel (x, y)
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * BytesPerPixel
}

// Clone returns a deep copy of the buffer
func (b *PixelBuffer) Clone() *PixelBuffer {
	c := &PixelBuffer{
		Pix:    make([]byte, len(b.Pix)),
		Width:  b.Width,
		Height: b.Height,
	}
	copy(c.Pix, b.Pix)
	return c
}

// Validate checks that Pix has exactly Width*Height*4 bytes
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return errors.New("pixel buffer is nil")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return errors.Errorf("pixel buffer has invalid dimensions %dx%d", b.Width, b.Height)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return errors.Errorf("pixel buffer length %d does not match %dx%d (want %d)", len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}
