package surface

import (
	"bufio"
	"io"
	"os"

	"github.com/mattn/go-sixel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Nominal terminal cell size used to turn a cell grid into pixels when the
// terminal does not report its pixel size
const (
	cellWidth  = 10
	cellHeight = 20
)

// SixelSurface draws frames into a sixel capable terminal
type SixelSurface struct {
	*renderer
	out io.Writer
	fd  int
}

// NewSixelSurface creates a surface writing to out. Without a configured
// viewport out must be a terminal so its size can be queried.
func NewSixelSurface(out io.Writer, opts Options) (*SixelSurface, error) {
	s := &SixelSurface{renderer: newRenderer(opts), out: out, fd: -1}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.fd = int(f.Fd())
	}

	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		if err := s.FitTerminal(); err != nil {
			return nil, &GraphicsInitError{Backend: "sixel", Err: err}
		}
	}
	return s, nil
}

// FitTerminal sizes the viewport to the terminal window
func (s *SixelSurface) FitTerminal() error {
	if s.fd < 0 {
		return errors.New("output is not a terminal and no viewport is configured")
	}
	cols, rows, err := term.GetSize(s.fd)
	if err != nil {
		return errors.Wrap(err, "failed to query terminal size")
	}
	// Leave the last line for the cursor so the terminal does not scroll
	if rows > 1 {
		rows--
	}
	s.Resize(cols*cellWidth, rows*cellHeight)
	log.Debug().Int("cols", cols).Int("rows", rows).Msg("sixel viewport fitted to terminal")
	return nil
}

// Draw renders the current texture and emits it as a sixel image at the
// top-left of the screen
func (s *SixelSurface) Draw() error {
	frame := s.render()
	if frame == nil {
		return nil
	}

	w := bufio.NewWriter(s.out)
	if s.fd >= 0 {
		// home the cursor and clear the screen
		if _, err := w.WriteString("\x1b[H\x1b[2J"); err != nil {
			return errors.Wrap(err, "failed to write to terminal")
		}
	}
	if err := sixel.NewEncoder(w).Encode(frame); err != nil {
		return errors.Wrap(err, "failed to encode sixel frame")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "failed to write sixel frame")
	}
	return nil
}

func (s *SixelSurface) Close() error {
	return nil
}
