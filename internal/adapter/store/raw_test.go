package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload(endpoint string, fetchedAt time.Time) domain.RawPayload {
	return domain.RawPayload{
		Endpoint:     endpoint,
		LocationSlug: "paris-france",
		FetchedAt:    fetchedAt,
		Body:         json.RawMessage(`{"hourly": {"time": []}}`),
	}
}

func TestRaw_SaveAndRead(t *testing.T) {
	raw, err := NewRaw(t.TempDir(), discardLogger())
	require.NoError(t, err)

	fetchedAt := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	name, err := raw.Save(testPayload(domain.EndpointForecast, fetchedAt))
	require.NoError(t, err)
	assert.Equal(t, "forecast_paris-france_20240515T103000.000.json", name)

	got, err := raw.Read(name)
	require.NoError(t, err)
	assert.Equal(t, domain.EndpointForecast, got.Endpoint)
	assert.Equal(t, "paris-france", got.LocationSlug)
	assert.True(t, got.FetchedAt.Equal(fetchedAt))
	assert.JSONEq(t, `{"hourly": {"time": []}}`, string(got.Body), "body must survive verbatim")
}

func TestRaw_ListSortsChronologically(t *testing.T) {
	raw, err := NewRaw(t.TempDir(), discardLogger())
	require.NoError(t, err)

	base := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	_, err = raw.Save(testPayload(domain.EndpointForecast, base.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = raw.Save(testPayload(domain.EndpointForecast, base))
	require.NoError(t, err)
	_, err = raw.Save(testPayload(domain.EndpointForecast, base.Add(time.Hour)))
	require.NoError(t, err)

	names, err := raw.List()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.Contains(t, names[0], "T100000")
	assert.Contains(t, names[1], "T110000")
	assert.Contains(t, names[2], "T120000")
}

func TestRaw_ListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	raw, err := NewRaw(dir, discardLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	_, err = raw.Save(testPayload(domain.EndpointArchive, time.Now()))
	require.NoError(t, err)

	names, err := raw.List()
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestRaw_SaveRejectsIncompleteEnvelope(t *testing.T) {
	raw, err := NewRaw(t.TempDir(), discardLogger())
	require.NoError(t, err)

	_, err = raw.Save(domain.RawPayload{Endpoint: domain.EndpointForecast})
	require.Error(t, err)
}

func TestRaw_ReadRejectsPathEscapes(t *testing.T) {
	raw, err := NewRaw(t.TempDir(), discardLogger())
	require.NoError(t, err)

	_, err = raw.Read("../outside.json")
	require.Error(t, err)
}
