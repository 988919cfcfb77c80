package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/waterfall/internal/source"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "settings:\n  logLevel: debug\n"))
	require.NoError(t, err)

	level, err := config.Settings.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	assert.Equal(t, SourceSynthetic, config.Source.Type)
	require.NotNil(t, config.Source.Synthetic)
	assert.Equal(t, 8192, config.Source.Synthetic.Size)
	assert.Equal(t, defaultWidth, config.Display.Width)
	assert.Equal(t, defaultHeight, config.Display.Height)
	assert.Equal(t, defaultFrameInterval, config.Display.FrameInterval.Duration())
	assert.Equal(t, 10*time.Second, config.Settings.StatsInterval.Duration())
	assert.Equal(t, 1.0, config.Display.Zoom)
	assert.Empty(t, config.Export.Format)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: warn
  statsInterval: 1m
source:
  type: rtl_power
  rtlPower:
    frequencyStart: 430000000
    frequencyEnd: 440000000
    binWidth: 10000
    interval: 2s
display:
  width: 800
  height: 600
  frameInterval: 50ms
  theme: thermal
  hold: true
  holdSpeed: 0.1
  zoom: 0.5
vfos:
  - name: A
    reference: lower
    offset: 12500
    bandwidth: 25000
bookmarks:
  items:
    - name: ism
      frequency: 433920000
      bandwidth: 200000
  apply: ism
export:
  path: out.jpg
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, SourceRTLPower, config.Source.Type)
	require.NotNil(t, config.Source.RTLPower)
	assert.Equal(t, source.NewDuration(2*time.Second), config.Source.RTLPower.Interval)
	assert.Equal(t, 50*time.Millisecond, config.Display.FrameInterval.Duration())
	assert.Equal(t, time.Minute, config.Settings.StatsInterval.Duration())
	assert.Equal(t, 0.5, config.Display.Zoom)
	assert.True(t, config.Display.Hold)
	require.Len(t, config.VFOs, 1)
	assert.Equal(t, "lower", config.VFOs[0].Reference)
	assert.Equal(t, "ism", config.Bookmarks.Apply)
	assert.Equal(t, "png", config.Export.Format)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config")

	_, err = LoadConfig(writeConfig(t, "settings: [\n"))
	require.ErrorContains(t, err, "parsing config")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "settings:\n  logLevel: loud\n", "invalid log level"},
		{"source type", "source:\n  type: hackrf\n", "unknown source type"},
		{"rtl_power config", "source:\n  type: rtl_power\n", "rtl_power source requires configuration"},
		{"hackrf_sweep config", "source:\n  type: hackrf_sweep\n  hackrf:\n    frequencyStart: 2400000000\n    frequencyEnd: 2400500000\n", "at least 1 MHz"},
		{"synthetic size", "source:\n  synthetic:\n    sampleRate: 1e6\n    size: 1000\n", "power of two"},
		{"zoom", "display:\n  zoom: 2\n", "zoom must be between 0 and 1"},
		{"hold and smoothing", "display:\n  hold: true\n  smoothing: true\n", "mutually exclusive"},
		{"theme", "display:\n  theme: sepia\n", "sepia"},
		{"levels", "display:\n  waterfallMin: -20\n  waterfallMax: -80\n", "waterfall min must be less than max"},
		{"vfo name", "vfos:\n  - reference: center\n", "vfo name must not be empty"},
		{"vfo duplicate", "vfos:\n  - name: A\n  - name: A\n", "duplicate vfo"},
		{"vfo reference", "vfos:\n  - name: A\n    reference: middle\n", "unknown VFO reference"},
		{"bookmark", "bookmarks:\n  items:\n    - name: x\n", "invalid bookmark"},
		{"export format", "export:\n  path: out.gif\n  format: gif\n", "gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "display:\n  zoom: -1\n  hold: true\n  smoothing: true\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "zoom")
	assert.ErrorContains(t, err, "mutually exclusive")
}
