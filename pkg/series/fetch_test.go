package series

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadFile verifies the full load path from a local file
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("1,2\n\n0,10,20\n"), 0644); err != nil {
		t.Fatalf("Failed to write data file: %v", err)
	}

	s, err := Load(context.Background(), LoadOptions{
		Source:         path,
		Chunk:          1,
		ResampleLength: 5,
	})
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	expected := []float64{0, 5, 10, 15, 20}
	if len(s) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(s))
	}
	for i, v := range expected {
		if s[i] != v {
			t.Errorf("Sample %d: expected %g, got %g", i, v, s[i])
		}
	}
}

// TestLoadHTTP verifies URL sources
func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "3,1,2\n")
	}))
	defer srv.Close()

	s, err := Load(context.Background(), LoadOptions{Source: srv.URL + "/data.csv"})
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(s) != 3 || s[0] != 3 {
		t.Errorf("Expected [3 1 2], got %v", s)
	}
}

// TestFetchErrors verifies that failures are reported as *FetchError
func TestFetchErrors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	testCases := []struct {
		name    string
		source  string
		timeout time.Duration
	}{
		{"missing file", filepath.Join(t.TempDir(), "missing.csv"), time.Second},
		{"empty source", "", time.Second},
		{"http status", notFound.URL, time.Second},
		{"timeout", slow.URL, 50 * time.Millisecond},
	}

	for _, tc := range testCases {
		_, err := Fetch(context.Background(), tc.source, tc.timeout)
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			t.Errorf("%s: expected *FetchError, got %v", tc.name, err)
		}
	}
}

// TestLoadParseError verifies parse errors surface through Load
func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("1,two,3\n"), 0644); err != nil {
		t.Fatalf("Failed to write data file: %v", err)
	}

	_, err := Load(context.Background(), LoadOptions{Source: path})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Expected *ParseError, got %v", err)
	}
}
