package surface

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PNGSurface writes every drawn frame to a PNG file
type PNGSurface struct {
	*renderer
	path string
}

// NewPNGSurface creates a surface that replaces path on each Draw
func NewPNGSurface(path string, opts Options) (*PNGSurface, error) {
	if path == "" {
		return nil, &GraphicsInitError{Backend: "png", Err: errors.New("no output path configured")}
	}
	return &PNGSurface{renderer: newRenderer(opts), path: path}, nil
}

// Draw renders the current texture and writes it out
func (s *PNGSurface) Draw() error {
	frame := s.render()
	if frame == nil {
		log.Debug().Msg("png surface has no viewport yet, skipping draw")
		return nil
	}
	if err := writePNG(frame, s.path); err != nil {
		return errors.Wrapf(err, "failed to draw to %s", s.path)
	}
	log.Debug().
		Str("path", s.path).
		Int("width", frame.Rect.Dx()).
		Int("height", frame.Rect.Dy()).
		Msg("frame written")
	return nil
}

// Path returns the frame file location
func (s *PNGSurface) Path() string {
	return s.path
}

func (s *PNGSurface) Close() error {
	return nil
}
