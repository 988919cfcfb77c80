package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/render"
	"github.com/roman-kulish/waterfall/internal/source"
	"github.com/roman-kulish/waterfall/internal/storage"
	"github.com/roman-kulish/waterfall/internal/waterfall"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	snapshot, err := readSession(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(render.Config{Location: config.TimeZone})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering waterfall",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", snapshot.Image.Rect.Dx()),
			slog.Int("height", snapshot.Rows),
		))

	img, err := renderer.Render(snapshot)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if err = render.Encode(out, img, config.Format); err != nil {
		return err
	}
	return out.Close()
}

// readSession replays the recorded lines of a session through a waterfall
// history sized to fit all of them.
func readSession(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*render.Snapshot, error) {
	opts := []storage.ReaderOption{storage.WithLimit(config.MaxLines)}
	var filters []any
	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(config.From.UTC(), config.To.UTC()))

		filters = append(filters,
			slog.String("from", config.From.UTC().Format(time.DateTime)),
			slog.String("to", config.To.UTC().Format(time.DateTime)))

	case config.From != nil:
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
		filters = append(filters, slog.String("from", config.From.UTC().Format(time.DateTime)))

	case config.To != nil:
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
		filters = append(filters, slog.String("to", config.To.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadLines(ctx, config.SessionID, opts...)
	if err != nil {
		if errors.Is(err, storage.ErrNoData) {
			return nil, fmt.Errorf("session %d: %w", config.SessionID, err)
		}
		return nil, err
	}
	defer reader.Close()

	var lines []*storage.Line
	hist := waterfall.NewHistogram()
	for reader.Next(ctx) {
		line := reader.Current()
		lines = append(lines, line)

		for _, p := range line.Power {
			if p > source.MissingPower {
				hist.Update(p)
			}
		}
	}
	if err = reader.Error(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("session %d: %w", config.SessionID, storage.ErrNoData)
	}

	snapshot, levels := compose(lines, hist.Levels(), config)

	logger.Info("finished reading lines",
		slog.Group("stats",
			slog.String("lines", humanize.Comma(int64(len(lines)))),
			slog.String("from", snapshot.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("to", snapshot.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minFreq", humanize.SIWithDigits(snapshot.FrequencyMin, 4, "Hz")),
			slog.String("maxFreq", humanize.SIWithDigits(snapshot.FrequencyMax, 4, "Hz")),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", levels.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", levels.Max)),
		))

	return snapshot, nil
}

// compose colour-maps lines, oldest first, into a snapshot with the newest row
// on top. Manual power limits override the histogram levels.
func compose(lines []*storage.Line, levels waterfall.Levels, config *Config) (*render.Snapshot, waterfall.Levels) {
	if config.MinPower != nil {
		levels.Min = float32(*config.MinPower)
	}
	if config.MaxPower != nil {
		levels.Max = float32(*config.MaxPower)
	}
	if levels.Min >= levels.Max {
		levels.Max = levels.Min + 1
	}

	width := 0
	lower, upper := math.Inf(1), math.Inf(-1)
	for _, l := range lines {
		width = max(width, len(l.Power))
		lower = min(lower, l.CenterFrequency-l.Bandwidth/2)
		upper = max(upper, l.CenterFrequency+l.Bandwidth/2)
	}

	acc := waterfall.NewAccumulator(width, len(lines), palette.FromTheme(config.Theme))
	acc.SetRange(levels.Min, levels.Max)
	for _, l := range lines {
		if len(l.Power) == width {
			acc.Append(l.Power)
		}
	}

	return &render.Snapshot{
		Image:          acc.Image(),
		Rows:           acc.Len(),
		FrequencyMin:   lower,
		FrequencyMax:   upper,
		TimestampStart: lines[0].Timestamp,
		TimestampEnd:   lines[len(lines)-1].Timestamp,
	}, levels
}
