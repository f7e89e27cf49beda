package series

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDegenerateSeries is returned by Normalize when every sample has the
// same value and the policy is DegenerateError
var ErrDegenerateSeries = errors.New("degenerate series: max equals min")

// ParseError reports a token in the series text that is not a finite number
type ParseError struct {
	// Line is the 1-based line number in the source text
	Line int

	// Column is the 1-based position of the token within its row
	Column int

	// Token is the raw text that failed to parse
	Token string

	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: invalid value %q: %v", e.Line, e.Column, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FetchError reports a failure to retrieve the raw series text
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
