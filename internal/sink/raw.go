// Package sink implements the raw-payload archive: every successfully
// fetched response body is persisted before transformation so a run can be
// replayed or audited. Archive failures are reported to the caller but are
// never fatal to the fetch that produced the payload.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RawSink persists one location's raw payload and returns a storage handle
// (a file path or object URI).
type RawSink interface {
	Save(ctx context.Context, city string, payload []byte) (string, error)
}

// rawTimestampLayout is the UTC compact timestamp used in archive names.
const rawTimestampLayout = "20060102T150405Z"

// fileName builds the canonical archive name for a city at a given time,
// e.g. "new_delhi_raw_20240101T050000Z.json".
func fileName(city string, now time.Time) string {
	slug := strings.ToLower(strings.ReplaceAll(city, " ", "_"))
	return fmt.Sprintf("%s_raw_%s.json", slug, now.UTC().Format(rawTimestampLayout))
}

// FileSink archives raw payloads as JSON files under a local directory.
type FileSink struct {
	dir   string
	nowFn func() time.Time // for testability; defaults to time.Now
}

// NewFileSink creates a FileSink rooted at dir, creating it if necessary.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating raw dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, nowFn: time.Now}, nil
}

// WithNowFunc overrides the clock used for archive names. Test hook.
func (s *FileSink) WithNowFunc(fn func() time.Time) *FileSink {
	s.nowFn = fn
	return s
}

// Save writes the payload to disk and returns the absolute file path.
func (s *FileSink) Save(_ context.Context, city string, payload []byte) (string, error) {
	path := filepath.Join(s.dir, fileName(city, s.nowFn()))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("writing raw payload for %s: %w", city, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
