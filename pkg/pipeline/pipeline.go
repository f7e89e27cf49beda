// Package pipeline wires the series loader, the band stretch and a
// presentation surface together: load the image, show it, load the data,
// stretch, upload and draw. In follow mode it keeps refreshing the data
// and redrawing on terminal resize until its context is cancelled.
package pipeline

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"bandstretch/internal/models"
	"bandstretch/pkg/series"
	"bandstretch/pkg/stretch"
	"bandstretch/pkg/surface"
)

// Params holds the pipeline parameters
type Params struct {
	// ImagePath is the PNG or JPEG base image
	ImagePath string

	// ImageWidth and ImageHeight rescale the image on load when both are
	// positive
	ImageWidth  int
	ImageHeight int

	// Load selects and shapes the series
	Load series.LoadOptions

	// Order is the band order used by the stretch
	Order models.Order

	// Degenerate decides what happens to a constant series
	Degenerate series.DegeneratePolicy

	// NumCores is the number of goroutines used by the stretch
	NumCores int

	// RefreshInterval re-fetches the data source while following
	RefreshInterval time.Duration

	// Follow keeps Run alive after the first frame to serve refreshes and
	// resizes
	Follow bool
}

// Stats summarizes what the pipeline has done so far
type Stats struct {
	// Renders counts successful transform+draw cycles
	Renders int

	// Failures counts updates that were dropped because of an error
	Failures int

	// LastRender is the duration of the most recent successful cycle
	LastRender time.Duration

	// LastSeries describes the most recently rendered series
	LastSeries series.Summary
}

// Pipeline owns the base image and the surface it draws to. Transform,
// upload and draw calls are serialized.
type Pipeline struct {
	params  *Params
	surface surface.Surface
	updater *Updater

	// mu serializes render and redraw so the surface never reads a
	// texture while a new one is uploaded
	mu    sync.Mutex
	image *models.PixelBuffer
	stats Stats
}

// NewPipeline creates a pipeline drawing to s
func NewPipeline(params *Params, s surface.Surface) *Pipeline {
	return &Pipeline{
		params:  params,
		surface: s,
		updater: NewUpdater(),
	}
}

// Process runs image load, data load and one render, in that order
func (p *Pipeline) Process(ctx context.Context) error {
	log.Info().Str("path", p.params.ImagePath).Msg("Step 1: loading base image")
	if err := p.LoadImage(); err != nil {
		return err
	}

	// Show the untouched image until data arrives
	if err := p.show(p.Image()); err != nil {
		return err
	}

	log.Info().Str("source", p.params.Load.Source).Msg("Step 2: loading series")
	s, err := series.Load(ctx, p.params.Load)
	if err != nil {
		return err
	}

	log.Info().Str("order", p.params.Order.String()).Msg("Step 3: stretching image")
	return p.Render(ctx, s)
}

// Run calls Process and, when following, keeps serving data refreshes and
// resize redraws until ctx is cancelled. A failing update leaves the last
// good frame on the surface.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.params.Follow {
		return p.Process(ctx)
	}

	if err := p.Process(ctx); err != nil {
		// Without an image there is nothing to keep on screen
		if p.Image() == nil {
			return err
		}
		p.recordFailure(err, "initial update failed, waiting for refresh")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.params.RefreshInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.poll(ctx)
		}()
	}

	resize := surface.NotifyResize(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-resize:
			if !ok {
				resize = nil
				continue
			}
			if err := p.Redraw(); err != nil {
				log.Warn().Err(err).Msg("redraw after resize failed")
			}
		case s := <-p.updater.C():
			if err := p.Render(ctx, s); err != nil {
				p.recordFailure(err, "update failed, keeping last frame")
			}
		}
	}
}

// poll re-fetches the data source on every tick and queues the result
func (p *Pipeline) poll(ctx context.Context) {
	ticker := time.NewTicker(p.params.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := series.Load(ctx, p.params.Load)
			if err != nil {
				if ctx.Err() == nil {
					p.recordFailure(err, "refresh failed, keeping last frame")
				}
				continue
			}
			p.Submit(s)
		}
	}
}

// Submit queues a new raw series for rendering by Run
func (p *Pipeline) Submit(s models.Series) {
	p.updater.Submit(s)
}

// LoadImage decodes the base image and rescales it when configured
func (p *Pipeline) LoadImage() error {
	img, err := loadImage(p.params.ImagePath)
	if err != nil {
		return errors.Wrapf(err, "failed to load image %s", p.params.ImagePath)
	}

	if p.params.ImageWidth > 0 && p.params.ImageHeight > 0 {
		img = scaleImage(img, p.params.ImageWidth, p.params.ImageHeight)
	}

	buf := models.PixelBufferFromImage(img)
	if err := buf.Validate(); err != nil {
		return errors.Wrapf(err, "unusable image %s", p.params.ImagePath)
	}

	p.mu.Lock()
	p.image = buf
	p.mu.Unlock()

	log.Info().Int("width", buf.Width).Int("height", buf.Height).Msg("image loaded")
	return nil
}

// Image returns the base image, or nil before LoadImage
func (p *Pipeline) Image() *models.PixelBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.image
}

// Render normalizes raw, stretches the base image with it and presents
// the result
func (p *Pipeline) Render(ctx context.Context, raw models.Series) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.image == nil {
		return errors.New("no image loaded")
	}

	start := time.Now()
	summary := series.Describe(raw)
	log.Debug().
		Int("samples", summary.Len).
		Float64("min", summary.Min).
		Float64("max", summary.Max).
		Float64("mean", summary.Mean).
		Float64("stddev", summary.StdDev).
		Msg("rendering series")

	norm, err := series.Normalize(raw, p.params.Degenerate)
	if err != nil {
		return errors.Wrap(err, "failed to normalize series")
	}

	out, err := stretch.Apply(ctx, norm, p.image, stretch.Options{
		Order:   p.params.Order,
		Workers: p.params.NumCores,
	})
	if err != nil {
		return errors.Wrap(err, "failed to stretch image")
	}

	if err := p.present(out); err != nil {
		return err
	}

	p.stats.Renders++
	p.stats.LastRender = time.Since(start)
	p.stats.LastSeries = summary
	log.Info().Dur("elapsed", p.stats.LastRender).Msg("stretched image updated")
	return nil
}

// Redraw draws the current texture again, fitting a terminal surface to
// its new size first. Nothing is re-transformed.
func (p *Pipeline) Redraw() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fitter, ok := p.surface.(interface{ FitTerminal() error }); ok {
		if err := fitter.FitTerminal(); err != nil {
			return err
		}
	}
	return p.surface.Draw()
}

// Stats returns a snapshot of the pipeline counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Dropped returns how many queued updates were superseded
func (p *Pipeline) Dropped() int {
	return p.updater.Dropped()
}

func (p *Pipeline) show(buf *models.PixelBuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present(buf)
}

// present must be called with mu held
func (p *Pipeline) present(buf *models.PixelBuffer) error {
	if err := p.surface.Upload(buf); err != nil {
		return errors.Wrap(err, "failed to upload texture")
	}
	if err := p.surface.Draw(); err != nil {
		return errors.Wrap(err, "failed to draw")
	}
	return nil
}

func (p *Pipeline) recordFailure(err error, msg string) {
	p.mu.Lock()
	p.stats.Failures++
	p.mu.Unlock()
	log.Error().Err(err).Msg(msg)
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// scaleImage resamples img to width x height
func scaleImage(img image.Image, width, height int) image.Image {
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}
