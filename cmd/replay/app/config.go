package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/render"
)

const defaultMaxLines = 4096

type Config struct {
	DBPath     string
	SessionID  int64
	OutputFile string
	Format     render.Format
	Theme      palette.Theme
	MaxPower   *float64
	MinPower   *float64
	From       *time.Time
	To         *time.Time
	MaxLines   int
	TimeZone   *time.Location
	Verbose    bool
}

func NewConfig() *Config {
	return &Config{
		Format:   render.FormatPNG,
		Theme:    palette.DefaultTheme,
		MaxLines: defaultMaxLines,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, from, to, timeZone string
	var minPower, maxPower float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(render.FormatPNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(palette.DefaultTheme), "Colour theme")
	fs.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	fs.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	fs.StringVar(&from, "from", "", "Skip lines recorded before this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Skip lines recorded after this time (RFC 3339)")
	fs.IntVar(&c.MaxLines, "n", defaultMaxLines, "Maximum number of lines to render")
	fs.StringVar(&timeZone, "tz", "", "Time zone of the time scale, e.g. Europe/London")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-power" {
			c.MinPower = &minPower
		}
		if f.Name == "max-power" {
			c.MaxPower = &maxPower
		}
	})

	var err error
	if c.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if c.SessionID <= 0 {
		return nil, errors.New("session id is required")
	}
	if c.OutputFile == "" {
		return nil, errors.New("output file is required")
	}
	if c.MaxLines <= 0 {
		return nil, fmt.Errorf("invalid number of lines: %d", c.MaxLines)
	}
	if c.MinPower != nil && c.MaxPower != nil && *c.MinPower >= *c.MaxPower {
		return nil, fmt.Errorf("min power must be less than max power: %0.1f >= %0.1f", *c.MinPower, *c.MaxPower)
	}
	if c.Format, err = render.ParseFormat(imageFormat); err != nil {
		return nil, err
	}
	if c.Theme, err = palette.ParseTheme(theme); err != nil {
		return nil, err
	}
	if c.From, err = parseTime(from); err != nil {
		return nil, fmt.Errorf("invalid -from: %w", err)
	}
	if c.To, err = parseTime(to); err != nil {
		return nil, fmt.Errorf("invalid -to: %w", err)
	}
	if timeZone != "" {
		if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
			return nil, fmt.Errorf("invalid time zone: %w", err)
		}
	}

	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
