package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandstretch/internal/models"
	"bandstretch/pkg/series"
	"bandstretch/pkg/surface"
)

// recordingSurface keeps every uploaded buffer
type recordingSurface struct {
	mu      sync.Mutex
	uploads []*models.PixelBuffer
	draws   int
}

func (r *recordingSurface) Upload(buf *models.PixelBuffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, buf)
	return nil
}

func (r *recordingSurface) Draw() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	return nil
}

func (r *recordingSurface) Resize(width, height int) {}

func (r *recordingSurface) Frame() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.uploads) == 0 {
		return nil
	}
	return r.uploads[len(r.uploads)-1].Image()
}

func (r *recordingSurface) Close() error { return nil }

func (r *recordingSurface) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uploads), r.draws
}

// writeTestImage writes an opaque PNG whose pixel (x, y) has R = x*10+1, G = y+1
func writeTestImage(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x*10 + 1), G: uint8(y + 1), B: 7, A: 255})
		}
	}

	path := filepath.Join(dir, "image.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeData(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
}

func testParams(imagePath, dataPath string) *Params {
	return &Params{
		ImagePath: imagePath,
		Load: series.LoadOptions{
			Source:  dataPath,
			Timeout: time.Second,
		},
		NumCores: 2,
	}
}

func TestProcessScenario(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestImage(t, dir, 10, 3)
	dataPath := filepath.Join(dir, "data.csv")
	writeData(t, dataPath, "1,1,1\n0,5,10\n")

	params := testParams(imagePath, dataPath)
	params.Load.Chunk = 1

	framePath := filepath.Join(dir, "frame.png")
	s, err := surface.NewPNGSurface(framePath, surface.Options{PinNative: true})
	require.NoError(t, err)

	p := NewPipeline(params, s)
	require.NoError(t, p.Process(context.Background()))

	frame := s.Frame()
	require.NotNil(t, frame)

	// Row 0 is blank, row 1 samples every other column, row 2 is a copy
	assert.Equal(t, color.NRGBA{}, frame.NRGBAAt(3, 0))
	assert.Equal(t, color.NRGBA{R: 81, G: 2, B: 7, A: 255}, frame.NRGBAAt(4, 1))
	assert.Equal(t, color.NRGBA{}, frame.NRGBAAt(5, 1))
	assert.Equal(t, color.NRGBA{R: 91, G: 3, B: 7, A: 255}, frame.NRGBAAt(9, 2))

	stats := p.Stats()
	assert.Equal(t, 1, stats.Renders)
	assert.Equal(t, 3, stats.LastSeries.Len)

	_, err = os.Stat(framePath)
	assert.NoError(t, err)
}

func TestProcessFlipped(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	writeData(t, dataPath, "0,5,10\n")

	params := testParams(writeTestImage(t, dir, 10, 3), dataPath)
	params.Order = models.OrderFlipped

	rec := &recordingSurface{}
	p := NewPipeline(params, rec)
	require.NoError(t, p.Process(context.Background()))

	frame := rec.Frame()
	assert.Equal(t, color.NRGBA{R: 91, G: 1, B: 7, A: 255}, frame.NRGBAAt(9, 0))
	assert.Equal(t, color.NRGBA{}, frame.NRGBAAt(0, 2))
}

func TestProcessShowsImageBeforeData(t *testing.T) {
	dir := t.TempDir()
	params := testParams(writeTestImage(t, dir, 4, 4), filepath.Join(dir, "missing.csv"))

	rec := &recordingSurface{}
	p := NewPipeline(params, rec)
	err := p.Process(context.Background())

	var ferr *series.FetchError
	require.True(t, errors.As(err, &ferr), "expected fetch error, got %v", err)

	uploads, draws := rec.counts()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, draws)
	assert.Equal(t, p.Image().Pix, rec.Frame().Pix)
}

func TestProcessMissingImage(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(testParams(filepath.Join(dir, "nope.png"), filepath.Join(dir, "data.csv")), &recordingSurface{})
	assert.Error(t, p.Process(context.Background()))
}

func TestRenderDegenerate(t *testing.T) {
	dir := t.TempDir()
	params := testParams(writeTestImage(t, dir, 10, 2), "")

	rec := &recordingSurface{}
	p := NewPipeline(params, rec)
	require.NoError(t, p.LoadImage())

	err := p.Render(context.Background(), models.Series{4, 4})
	assert.True(t, errors.Is(err, series.ErrDegenerateSeries))

	params.Degenerate = series.DegenerateMidpoint
	require.NoError(t, p.Render(context.Background(), models.Series{4, 4}))

	frame := rec.Frame()
	assert.Equal(t, uint8(255), frame.NRGBAAt(4, 0).A)
	assert.Equal(t, color.NRGBA{}, frame.NRGBAAt(5, 0))
}

func TestRenderWithoutImage(t *testing.T) {
	p := NewPipeline(testParams("", ""), &recordingSurface{})
	assert.Error(t, p.Render(context.Background(), models.Series{0, 1}))
}

func TestLoadImageRescale(t *testing.T) {
	dir := t.TempDir()
	params := testParams(writeTestImage(t, dir, 10, 3), "")
	params.ImageWidth = 20
	params.ImageHeight = 9

	p := NewPipeline(params, &recordingSurface{})
	require.NoError(t, p.LoadImage())
	assert.Equal(t, 20, p.Image().Width)
	assert.Equal(t, 9, p.Image().Height)
}

func TestRunFollowRefresh(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	writeData(t, dataPath, "0,1\n")

	params := testParams(writeTestImage(t, dir, 8, 4), dataPath)
	params.Follow = true
	params.RefreshInterval = 20 * time.Millisecond

	rec := &recordingSurface{}
	p := NewPipeline(params, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.Stats().Renders >= 3
	}, 5*time.Second, 10*time.Millisecond)

	// A broken refresh is logged and the last frame stays
	writeData(t, dataPath, "0,oops\n")
	require.Eventually(t, func() bool {
		return p.Stats().Failures >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFollowSubmit(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	writeData(t, dataPath, "0,1\n")

	params := testParams(writeTestImage(t, dir, 8, 4), dataPath)
	params.Follow = true

	rec := &recordingSurface{}
	p := NewPipeline(params, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Stats().Renders == 1 }, 5*time.Second, 10*time.Millisecond)

	p.Submit(models.Series{1, 1, 0, 0})
	require.Eventually(t, func() bool { return p.Stats().Renders == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, p.Stats().LastSeries.Len)

	// Bottom half of the image is blank after the flip to zeros
	assert.Equal(t, color.NRGBA{}, rec.Frame().NRGBAAt(0, 3))

	cancel()
	assert.NoError(t, <-done)
}

func TestRunWithoutFollowReturnsError(t *testing.T) {
	dir := t.TempDir()
	params := testParams(writeTestImage(t, dir, 4, 4), filepath.Join(dir, "missing.csv"))

	err := NewPipeline(params, &recordingSurface{}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunFollowSurvivesBadInitialData(t *testing.T) {
	dir := t.TempDir()
	params := testParams(writeTestImage(t, dir, 4, 4), filepath.Join(dir, "missing.csv"))
	params.Follow = true

	p := NewPipeline(params, &recordingSurface{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, p.Stats().Failures)
}

func TestRedraw(t *testing.T) {
	rec := &recordingSurface{}
	p := NewPipeline(testParams("", ""), rec)

	require.NoError(t, p.Redraw())
	_, draws := rec.counts()
	assert.Equal(t, 1, draws)
}
