package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/render"
	"github.com/roman-kulish/waterfall/internal/source"
	"github.com/roman-kulish/waterfall/internal/vfo"
)

const (
	SourceSynthetic SourceType = "synthetic"
	SourceRTLPower  SourceType = "rtl_power"
	SourceHackRF    SourceType = "hackrf_sweep"

	defaultFrameInterval = 33 * time.Millisecond
	defaultWidth         = 1060
	defaultHeight        = 849
)

type SourceType string

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Source    SourceConfig    `yaml:"source"`
	Display   DisplayConfig   `yaml:"display"`
	VFOs      []VFOConfig     `yaml:"vfos"`
	Bookmarks BookmarksConfig `yaml:"bookmarks"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel      string          `yaml:"logLevel"`
	StatsInterval source.Duration `yaml:"statsInterval"`
}

// SourceConfig selects and configures the FFT producer
type SourceConfig struct {
	Type      SourceType               `yaml:"type"`
	Synthetic *source.SyntheticConfig `yaml:"synthetic"`
	RTLPower  *source.RTLPowerConfig  `yaml:"rtlPower"`
	HackRF    *source.HackRFConfig    `yaml:"hackrf"`
}

// DisplayConfig represents the waterfall widget settings
type DisplayConfig struct {
	Width         int             `yaml:"width"`
	Height        int             `yaml:"height"`
	FFTHeight     int             `yaml:"fftHeight"`
	FFTLines      int             `yaml:"fftLines"`
	Workers       int             `yaml:"workers"`
	FrameInterval source.Duration `yaml:"frameInterval"`
	Theme         string          `yaml:"theme"`

	WaterfallMin float32 `yaml:"waterfallMin"`
	WaterfallMax float32 `yaml:"waterfallMax"`
	AutoLevels   bool    `yaml:"autoLevels"`
	FullUpdate   bool    `yaml:"fullUpdate"`

	Hold           bool    `yaml:"hold"`
	HoldSpeed      float32 `yaml:"holdSpeed"`
	Smoothing      bool    `yaml:"smoothing"`
	SmoothingSpeed float32 `yaml:"smoothingSpeed"`

	Zoom             float64 `yaml:"zoom"`
	CenterFreqLocked bool    `yaml:"centerFrequencyLocked"`
}

// VFOConfig represents a single VFO
type VFOConfig struct {
	Name         string  `yaml:"name"`
	Reference    string  `yaml:"reference"`
	Offset       float64 `yaml:"offset"`
	Bandwidth    float64 `yaml:"bandwidth"`
	MinBandwidth float64 `yaml:"minBandwidth"`
	MaxBandwidth float64 `yaml:"maxBandwidth"`
	Locked       bool    `yaml:"bandwidthLocked"`
	SnapInterval float64 `yaml:"snapInterval"`
}

// BookmarkConfig represents a predefined bookmark
type BookmarkConfig struct {
	Name      string  `yaml:"name"`
	Frequency float64 `yaml:"frequency"`
	Bandwidth float64 `yaml:"bandwidth"`
}

// BookmarksConfig represents bookmark settings
type BookmarksConfig struct {
	Items []BookmarkConfig `yaml:"items"`
	Apply string           `yaml:"apply"`      // Bookmark to tune to on start
	Save  bool             `yaml:"saveOnExit"` // Bookmark the selected VFO on exit
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
	Record        bool   `yaml:"record"`
}

// ExportConfig represents the snapshot written on exit
type ExportConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Level parses the configured log level.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.setDefaults()
	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
	if c.Settings.StatsInterval == 0 {
		c.Settings.StatsInterval = source.NewDuration(10 * time.Second)
	}
	if c.Source.Type == "" {
		c.Source.Type = SourceSynthetic
	}
	if c.Source.Type == SourceSynthetic && c.Source.Synthetic == nil {
		c.Source.Synthetic = &source.SyntheticConfig{
			CenterFrequency: 100e6,
			SampleRate:      2.4e6,
			Size:            8192,
			NoiseLevel:      0.001,
			Tones:           []source.Tone{{Offset: 250e3, Amplitude: 0.1}},
		}
	}
	if c.Display.Width == 0 {
		c.Display.Width = defaultWidth
	}
	if c.Display.Height == 0 {
		c.Display.Height = defaultHeight
	}
	if c.Display.FrameInterval == 0 {
		c.Display.FrameInterval = source.NewDuration(defaultFrameInterval)
	}
	if c.Display.Zoom == 0 {
		c.Display.Zoom = 1
	}
	if c.Export.Path != "" && c.Export.Format == "" {
		c.Export.Format = string(render.FormatPNG)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}

	switch c.Source.Type {
	case SourceSynthetic:
		if c.Source.Synthetic == nil {
			errs = append(errs, errors.New("synthetic source requires configuration"))
		} else if err := c.Source.Synthetic.Validate(); err != nil {
			errs = append(errs, err)
		}
	case SourceRTLPower:
		if c.Source.RTLPower == nil {
			errs = append(errs, errors.New("rtl_power source requires configuration"))
		} else if err := c.Source.RTLPower.Validate(); err != nil {
			errs = append(errs, err)
		}
	case SourceHackRF:
		if c.Source.HackRF == nil {
			errs = append(errs, errors.New("hackrf_sweep source requires configuration"))
		} else if err := c.Source.HackRF.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source type: %q", c.Source.Type))
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid display size: %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.Display.FrameInterval < 0 {
		errs = append(errs, fmt.Errorf("frame interval must not be negative: %s", c.Display.FrameInterval))
	}
	if c.Display.Zoom < 0 || c.Display.Zoom > 1 {
		errs = append(errs, fmt.Errorf("zoom must be between 0 and 1: %0.2f given", c.Display.Zoom))
	}
	if c.Display.Hold && c.Display.Smoothing {
		errs = append(errs, errors.New("hold and smoothing are mutually exclusive"))
	}
	if c.Display.Theme != "" {
		if _, err := palette.ParseTheme(c.Display.Theme); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Display.WaterfallMin != 0 || c.Display.WaterfallMax != 0 {
		if c.Display.WaterfallMin >= c.Display.WaterfallMax {
			errs = append(errs, fmt.Errorf("waterfall min must be less than max: %0.1f >= %0.1f",
				c.Display.WaterfallMin, c.Display.WaterfallMax))
		}
	}

	names := make(map[string]struct{}, len(c.VFOs))
	for _, v := range c.VFOs {
		if v.Name == "" {
			errs = append(errs, errors.New("vfo name must not be empty"))
			continue
		}
		if _, ok := names[v.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate vfo: %q", v.Name))
		}
		names[v.Name] = struct{}{}

		if _, err := vfo.ParseReference(v.Reference); err != nil {
			errs = append(errs, err)
		}
		if v.Bandwidth < 0 {
			errs = append(errs, fmt.Errorf("vfo %q: bandwidth must not be negative", v.Name))
		}
	}

	for _, b := range c.Bookmarks.Items {
		if b.Name == "" || b.Frequency <= 0 {
			errs = append(errs, fmt.Errorf("invalid bookmark: %q at %0.0f Hz", b.Name, b.Frequency))
		}
	}

	if c.Storage.MaxBatchSize < 0 {
		errs = append(errs, fmt.Errorf("max batch size must not be negative: %d", c.Storage.MaxBatchSize))
	}

	if c.Export.Path != "" {
		if _, err := render.ParseFormat(c.Export.Format); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
