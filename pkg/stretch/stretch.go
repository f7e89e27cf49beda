// Package stretch implements the band stretch transform: the rows of a
// pixel buffer are partitioned into one band per series sample and each
// band is filled, left to right, with its source rows stretched
// horizontally in proportion to the sample value.
package stretch

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"bandstretch/internal/models"
)

// Options controls a single Apply call
type Options struct {
	// Order selects forward (sample 0 at the top) or flipped band order
	Order models.Order

	// Workers is the number of goroutines filling bands. Zero means one
	// per CPU.
	Workers int
}

// Bands partitions height rows into n contiguous bands. Band i covers
// [floor(i*height/n), floor((i+1)*height/n)). Together the bands cover every
// row exactly once; when n > height some bands are empty.
func Bands(n, height int) []models.Band {
	if n <= 0 || height < 0 {
		return nil
	}
	bands := make([]models.Band, n)
	for i := range bands {
		bands[i] = models.Band{
			Sample:   i,
			StartRow: i * height / n,
			EndRow:   (i + 1) * height / n,
		}
	}
	return bands
}

// BandFor returns the band sample i is drawn into under the given order
func BandFor(bands []models.Band, i int, order models.Order) models.Band {
	if order == models.OrderFlipped {
		return bands[len(bands)-1-i]
	}
	return bands[i]
}

// Apply stretches src according to normalized, whose samples must lie in
// [0,1]. The result is a new zeroed buffer of the same size; pixels right
// of each row's fill width are left transparent black. src is not
// modified.
func Apply(ctx context.Context, normalized models.Series, src *models.PixelBuffer, opts Options) (*models.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid source buffer")
	}
	if len(normalized) == 0 {
		return nil, errors.New("cannot stretch with an empty series")
	}
	for i, v := range normalized {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, errors.Errorf("sample %d = %g is not normalized to [0,1]", i, v)
		}
	}

	start := time.Now()
	n := len(normalized)
	bands := Bands(n, src.Height)
	dst := models.NewPixelBuffer(src.Width, src.Height)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fillBand(dst, src, BandFor(bands, i, opts.Order), normalized[i])
			}
		}()
	}

	var cancelled error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, errors.Wrap(cancelled, "stretch cancelled")
	}

	log.Debug().
		Int("samples", n).
		Int("width", src.Width).
		Int("height", src.Height).
		Str("order", opts.Order.String()).
		Int("workers", workers).
		Dur("elapsed", time.Since(start)).
		Msg("stretched image")

	return dst, nil
}

// fillBand writes one band. Bands never share rows so concurrent calls
// for different bands do not race.
func fillBand(dst, src *models.PixelBuffer, band models.Band, v float64) {
	// A zero sample fills nothing; skip before dividing by it
	if v <= 0 || band.Rows() == 0 {
		return
	}

	width := src.Width
	rowWidth := int(math.Floor(float64(width) * v))
	if rowWidth > width {
		rowWidth = width
	}
	if rowWidth == 0 {
		return
	}

	// Source column for each destination column, shared by every row
	srcCols := make([]int, rowWidth)
	for x := range srcCols {
		col := int(math.Floor(float64(x) / v))
		if col >= width {
			col = width - 1
		}
		srcCols[x] = col
	}

	for row := band.StartRow; row < band.EndRow; row++ {
		base := src.Offset(0, row)
		for x, col := range srcCols {
			d := base + x*models.BytesPerPixel
			s := base + col*models.BytesPerPixel
			copy(dst.Pix[d:d+models.BytesPerPixel], src.Pix[s:s+models.BytesPerPixel])
		}
	}
}
