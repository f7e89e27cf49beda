// Package series loads sensor readouts from delimited text and prepares a
// single chunk for the band stretch: selection, linear resampling to a
// fixed length and min/max normalization.
package series

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"bandstretch/internal/models"
)

// ParseOptions controls how malformed rows are treated
type ParseOptions struct {
	// SkipMalformed drops rows containing a bad token instead of
	// rejecting the whole input. Dropped rows are logged.
	SkipMalformed bool
}

// Parse reads newline separated rows of comma separated numbers. Blank
// rows are skipped. Every returned chunk has at least one sample.
func Parse(r io.Reader, opts ParseOptions) ([]models.Series, error) {
	reader := bufio.NewReader(r)
	var chunks []models.Series

	line := 0
	for {
		text, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, errors.Wrap(readErr, "failed to read series data")
		}
		if text != "" {
			line++
			row, err := parseRow(text, line)
			switch {
			case err != nil && opts.SkipMalformed:
				log.Warn().Err(err).Int("line", line).Msg("skipping malformed row")
			case err != nil:
				return nil, err
			case row != nil:
				chunks = append(chunks, row)
			}
		}
		if readErr == io.EOF {
			break
		}
	}

	return chunks, nil
}

// ParseString is Parse over an in-memory string
func ParseString(text string, opts ParseOptions) ([]models.Series, error) {
	return Parse(strings.NewReader(text), opts)
}

// parseRow returns nil, nil for whitespace-only rows
func parseRow(text string, line int) (models.Series, error) {
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := strings.Split(text, ",")
	row := make(models.Series, len(tokens))
	for i, tok := range tokens {
		v, err := parseValue(tok)
		if err != nil {
			return nil, &ParseError{Line: line, Column: i + 1, Token: tok, Err: err}
		}
		row[i] = v
	}
	return row, nil
}

func parseValue(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("value is not finite")
	}
	return v, nil
}

// Select returns the chunk at index
func Select(chunks []models.Series, index int) (models.Series, error) {
	if index < 0 || index >= len(chunks) {
		return nil, errors.Errorf("chunk index %d out of range (have %d chunks)", index, len(chunks))
	}
	return chunks[index], nil
}
