package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Series is an ordered sequence of samples taken from one chunk (row) of
// a sensor readout file
type Series []float64

// Order controls which band each sample is drawn into
type Order int

const (
	// OrderForward maps sample i to band i (top to bottom)
	OrderForward Order = iota

	// OrderFlipped maps sample i to band N-1-i so the series reads
	// bottom to top
	OrderFlipped
)

// String returns the configuration spelling of the order
func (o Order) String() string {
	switch o {
	case OrderForward:
		return "forward"
	case OrderFlipped:
		return "flipped"
	default:
		return "unknown"
	}
}

// ParseOrder converts "forward" or "flipped" into an Order
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward":
		return OrderForward, nil
	case "flipped", "flip", "reverse":
		return OrderFlipped, nil
	default:
		return OrderForward, errors.Errorf("invalid order: %s (must be forward or flipped)", s)
	}
}

// Band is the half-open row range [StartRow, EndRow) owned by one sample
type Band struct {
	// Sample is the index of the band in the partition
	Sample int

	StartRow int
	EndRow   int
}

// Rows returns the number of rows in the band
func (b Band) Rows() int {
	return b.EndRow - b.StartRow
}
