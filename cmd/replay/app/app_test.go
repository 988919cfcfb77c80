package app

import (
	"context"
	"flag"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/render"
	"github.com/roman-kulish/waterfall/internal/storage"
	"github.com/roman-kulish/waterfall/internal/waterfall"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, n, width int) (string, int64) {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "waterfall.sqlite")
	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	session, err := store.CreateSession(ctx, "synthetic", 100e6, 2e6, nil)
	require.NoError(t, err)

	lines := make([]storage.Line, n)
	for i := range lines {
		power := make([]float32, width)
		for j := range power {
			power[j] = -100 + float32(j%40)
		}
		lines[i] = storage.Line{
			Timestamp:       testStart.Add(time.Duration(i) * time.Second),
			CenterFrequency: 100e6,
			Bandwidth:       2e6,
			Power:           power,
		}
	}
	require.NoError(t, store.StoreLines(ctx, session.ID, lines))

	return dbPath, session.ID
}

func testConfig(dbPath string, session int64, output string) *Config {
	c := NewConfig()
	c.DBPath = dbPath
	c.SessionID = session
	c.OutputFile = output
	c.TimeZone = time.UTC
	return c
}

func TestRun(t *testing.T) {
	dbPath, session := newTestSession(t, 50, 320)
	output := filepath.Join(t.TempDir(), "out.png")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, Run(context.Background(), testConfig(dbPath, session, output), logger))

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 320)
	assert.Greater(t, img.Bounds().Dy(), 50)
}

func TestRunMissingDatabase(t *testing.T) {
	config := testConfig(filepath.Join(t.TempDir(), "missing.sqlite"), 1, "out.png")
	err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSession(t *testing.T) {
	dbPath, session := newTestSession(t, 30, 100)
	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("all lines", func(t *testing.T) {
		snapshot, err := readSession(context.Background(), store, testConfig(dbPath, session, ""), logger)
		require.NoError(t, err)
		assert.Equal(t, 30, snapshot.Rows)
		assert.Equal(t, 100, snapshot.Image.Rect.Dx())
		assert.Equal(t, 99e6, snapshot.FrequencyMin)
		assert.Equal(t, 101e6, snapshot.FrequencyMax)
		assert.True(t, snapshot.TimestampStart.Equal(testStart))
		assert.True(t, snapshot.TimestampEnd.Equal(testStart.Add(29*time.Second)))
	})

	t.Run("time range and limit", func(t *testing.T) {
		config := testConfig(dbPath, session, "")
		from, to := testStart.Add(10*time.Second), testStart.Add(25*time.Second)
		config.From, config.To = &from, &to
		config.MaxLines = 5

		snapshot, err := readSession(context.Background(), store, config, logger)
		require.NoError(t, err)
		assert.Equal(t, 5, snapshot.Rows)
		assert.True(t, snapshot.TimestampStart.Equal(from))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := readSession(context.Background(), store, testConfig(dbPath, 42, ""), logger)
		require.Error(t, err)
	})
}

func TestComposeManualLevels(t *testing.T) {
	lines := []*storage.Line{
		{Timestamp: testStart, CenterFrequency: 100e6, Bandwidth: 2e6, Power: []float32{-100, -50, 0}},
		{Timestamp: testStart.Add(time.Second), CenterFrequency: 100e6, Bandwidth: 2e6, Power: []float32{0, -50, -100}},
	}

	lo, hi := -100.0, 0.0
	config := NewConfig()
	config.Theme = palette.GrayscaleTheme
	config.MinPower, config.MaxPower = &lo, &hi

	snapshot, levels := compose(lines, waterfall.Levels{Min: -80, Max: -20}, config)
	assert.Equal(t, float32(-100), levels.Min)
	assert.Equal(t, float32(0), levels.Max)
	require.Equal(t, 2, snapshot.Rows)

	// The newest line is on top: its first pixel is the loudest.
	top := snapshot.Image.RGBAAt(0, 0)
	bottom := snapshot.Image.RGBAAt(0, 1)
	assert.Greater(t, top.R, bottom.R)
}

func TestParseFlags(t *testing.T) {
	c, err := parseFlags(flag.NewFlagSet("replay", flag.ContinueOnError),
		[]string{"-db", "w.sqlite", "-s", "3", "-o", "out", "-f", "JPG", "-theme", "marine", "-min-power", "-90", "-from", "2024-05-01T12:00:00Z", "-tz", "UTC"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), c.SessionID)
	assert.Equal(t, render.FormatJPEG, c.Format)
	assert.Equal(t, "out."+string(render.FormatJPEG), c.OutputFile)
	assert.Equal(t, palette.MarineTheme, c.Theme)
	require.NotNil(t, c.MinPower)
	assert.Equal(t, -90.0, *c.MinPower)
	assert.Nil(t, c.MaxPower)
	require.NotNil(t, c.From)
	assert.True(t, c.From.Equal(testStart))
	assert.Nil(t, c.To)
	assert.Equal(t, time.UTC, c.TimeZone)

	tests := map[string][]string{
		"db path is required":      {"-o", "out"},
		"output file is required":  {"-db", "w.sqlite"},
		"unsupported image format": {"-db", "w.sqlite", "-o", "out", "-f", "gif"},
		"unknown color theme":      {"-db", "w.sqlite", "-o", "out", "-theme", "sepia"},
		"min power must be less":   {"-db", "w.sqlite", "-o", "out", "-min-power", "0", "-max-power", "-10"},
		"invalid -from":            {"-db", "w.sqlite", "-o", "out", "-from", "yesterday"},
	}
	for want, args := range tests {
		_, err := parseFlags(flag.NewFlagSet("replay", flag.ContinueOnError), args)
		assert.ErrorContains(t, err, want, args)
	}
}
