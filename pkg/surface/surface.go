// Package surface presents stretched pixel buffers. A Surface receives a
// texture with Upload and renders it to its viewport with Draw, clearing
// to a background colour first. Backends write frames to a PNG file or to
// a sixel capable terminal.
package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"bandstretch/internal/models"
)

// Surface is the presentation contract used by the pipeline
type Surface interface {
	// Upload replaces the current texture
	Upload(buf *models.PixelBuffer) error

	// Draw renders the current texture to the viewport
	Draw() error

	// Resize changes the viewport size. The next Draw uses it.
	Resize(width, height int)

	// Frame returns the most recently drawn frame, or nil
	Frame() *image.NRGBA

	Close() error
}

// Options configures viewport and background for any backend
type Options struct {
	// ViewportWidth and ViewportHeight give the render size. Zero means
	// the native texture size.
	ViewportWidth  int
	ViewportHeight int

	// PinNative renders at the texture's own resolution regardless of the
	// viewport, for exact pixel export
	PinNative bool

	// Background is the clear colour
	Background color.NRGBA
}

// GraphicsInitError reports a backend that cannot be brought up
type GraphicsInitError struct {
	Backend string
	Err     error
}

func (e *GraphicsInitError) Error() string {
	return fmt.Sprintf("cannot initialize %s surface: %v", e.Backend, e.Err)
}

func (e *GraphicsInitError) Unwrap() error {
	return e.Err
}

// New creates a surface by kind: "png" writes frames to output, "sixel"
// writes frames to stdout (output is ignored)
func New(kind, output string, opts Options) (Surface, error) {
	switch strings.ToLower(kind) {
	case "", "png":
		s, err := NewPNGSurface(output, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sixel":
		s, err := NewSixelSurface(os.Stdout, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, &GraphicsInitError{Backend: kind, Err: errors.New("unknown surface kind (must be png or sixel)")}
	}
}

// renderer holds the state shared by all backends
type renderer struct {
	mu       sync.Mutex
	opts     Options
	viewport image.Point
	texture  *image.NRGBA
	frame    *image.NRGBA
}

func newRenderer(opts Options) *renderer {
	return &renderer{
		opts:     opts,
		viewport: image.Pt(opts.ViewportWidth, opts.ViewportHeight),
	}
}

func (r *renderer) Upload(buf *models.PixelBuffer) error {
	if err := buf.Validate(); err != nil {
		return errors.Wrap(err, "upload rejected")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texture = buf.Image()
	return nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport = image.Pt(width, height)
}

func (r *renderer) Frame() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// render clears the frame to the background and draws the texture over it
func (r *renderer) render() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.frameSize()
	if size.X <= 0 || size.Y <= 0 {
		r.frame = nil
		return nil
	}

	frame := image.NewNRGBA(image.Rectangle{Max: size})
	draw.Draw(frame, frame.Rect, &image.Uniform{C: r.opts.Background}, image.Point{}, draw.Src)

	if r.texture != nil {
		if r.texture.Rect.Size() == size {
			draw.Draw(frame, frame.Rect, r.texture, image.Point{}, draw.Over)
		} else {
			draw.ApproxBiLinear.Scale(frame, frame.Rect, r.texture, r.texture.Rect, draw.Over, nil)
		}
	}

	r.frame = frame
	return frame
}

func (r *renderer) frameSize() image.Point {
	if r.texture != nil && (r.opts.PinNative || r.viewport.X <= 0 || r.viewport.Y <= 0) {
		return r.texture.Rect.Size()
	}
	return r.viewport
}

// Export saves the surface's current frame as a PNG file
func Export(s Surface, path string) error {
	frame := s.Frame()
	if frame == nil {
		return errors.New("nothing has been drawn yet")
	}
	return writePNG(frame, path)
}

// writePNG encodes img to a temporary file next to path and renames it
// into place so readers never see a partial frame
func writePNG(img image.Image, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return errors.Wrap(err, "failed to create frame file")
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to encode image")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write frame file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to move frame into place")
	}
	return nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa". An empty string is
// transparent black.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.NRGBA{}, nil
	}
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, errors.Errorf("invalid colour %q (want #rrggbb or #rrggbbaa)", s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid colour %q", s)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
