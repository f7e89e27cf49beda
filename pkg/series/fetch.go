package series

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"bandstretch/internal/models"
)

// DefaultTimeout bounds a fetch when LoadOptions.Timeout is zero
const DefaultTimeout = 30 * time.Second

// maxFetchBytes caps remote downloads
const maxFetchBytes = 256 << 20

// Fetch reads the raw series text from a local path or an http(s) URL.
// The fetch is abandoned once timeout elapses. Every failure is returned
// as a *FetchError.
func Fetch(ctx context.Context, source string, timeout time.Duration) ([]byte, error) {
	if source == "" {
		return nil, &FetchError{Source: source, Err: errors.New("no data source configured")}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		data []byte
		err  error
	)
	if isURL(source) {
		data, err = fetchHTTP(ctx, source)
	} else {
		data, err = fetchFile(ctx, source)
	}
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}

	log.Debug().Str("source", source).Int("bytes", len(data)).Msg("fetched series data")
	return data, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return data, nil
}

func fetchFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read data file")
	}
	return data, nil
}

// LoadOptions describes which series to load and how to shape it
type LoadOptions struct {
	// Source is a file path or http(s) URL
	Source string

	// Chunk is the index of the row to use
	Chunk int

	// ResampleLength resamples the chunk when greater than zero
	ResampleLength int

	Timeout time.Duration

	Parse ParseOptions
}

// Load fetches, parses and selects one chunk, resampling it if requested
func Load(ctx context.Context, opts LoadOptions) (models.Series, error) {
	data, err := Fetch(ctx, opts.Source, opts.Timeout)
	if err != nil {
		return nil, err
	}

	chunks, err := Parse(bytes.NewReader(data), opts.Parse)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", opts.Source)
	}

	s, err := Select(chunks, opts.Chunk)
	if err != nil {
		return nil, err
	}

	if opts.ResampleLength > 0 {
		s, err = Resample(s, opts.ResampleLength)
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("source", opts.Source).
		Int("chunks", len(chunks)).
		Int("chunk", opts.Chunk).
		Int("samples", len(s)).
		Msg("loaded series")

	return s, nil
}
