// Package store persists what the pipeline fetches: raw payload files kept
// verbatim for replay, and normalized records in SQLite.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

const rawStampLayout = "20060102T150405.000"

// Raw is an append-only directory of upstream payload envelopes, one JSON
// document per fetch. Files are the source material for offline re-ingestion,
// so they are written before any parsing happens and never modified after.
type Raw struct {
	dir    string
	logger *slog.Logger
}

// NewRaw opens (creating if needed) the raw payload directory.
func NewRaw(dir string, logger *slog.Logger) (*Raw, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw payload dir %s: %w", dir, err)
	}
	return &Raw{dir: dir, logger: logger}, nil
}

// Save writes the payload envelope to disk and returns the file name.
// The name sorts chronologically: <endpoint>_<slug>_<UTC stamp>.json.
func (r *Raw) Save(p domain.RawPayload) (string, error) {
	if p.Endpoint == "" || p.LocationSlug == "" {
		return "", fmt.Errorf("raw payload missing endpoint or location slug")
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode raw payload: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.json", p.Endpoint, p.LocationSlug, p.FetchedAt.UTC().Format(rawStampLayout))
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write raw payload %s: %w", name, err)
	}
	r.logger.Debug("saved raw payload", "file", name, "bytes", len(data))
	return name, nil
}

// List returns the stored payload file names in chronological order.
func (r *Raw) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list raw payload dir %s: %w", r.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads one stored payload envelope by file name.
func (r *Raw) Read(name string) (domain.RawPayload, error) {
	if name != filepath.Base(name) {
		return domain.RawPayload{}, fmt.Errorf("invalid raw payload name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("read raw payload %s: %w", name, err)
	}
	var p domain.RawPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.RawPayload{}, fmt.Errorf("decode raw payload %s: %w", name, err)
	}
	return p, nil
}
