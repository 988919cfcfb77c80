package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roman-kulish/waterfall/internal/bookmark"
	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/render"
	"github.com/roman-kulish/waterfall/internal/source"
	"github.com/roman-kulish/waterfall/internal/storage"
	"github.com/roman-kulish/waterfall/internal/vfo"
	"github.com/roman-kulish/waterfall/internal/waterfall"
)

const (
	storageDir  = "data"
	storageFile = "waterfall.sqlite"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var store *storage.SqliteStore
	if config.Storage.Record || config.Bookmarks.Save {
		var err error
		if store, err = createStorage(&config.Storage); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()
	}

	bookmarks, err := createBookmarks(ctx, config.Bookmarks, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create bookmarks: %w", err)
	}

	wf, err := createWaterfall(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create waterfall: %w", err)
	}
	defer wf.Close()

	if err = createVFOs(wf, config.VFOs, logger); err != nil {
		return fmt.Errorf("failed to create VFOs: %w", err)
	}

	if name := config.Bookmarks.Apply; name != "" {
		if err = bookmarks.Apply(name, wf); err != nil {
			return fmt.Errorf("failed to apply bookmark: %w", err)
		}
		if config.Source.Synthetic != nil {
			config.Source.Synthetic.CenterFrequency = wf.CenterFrequency()
		}
	}

	producer, err := createProducer(&config.Source, logger)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	options := []func(*Orchestrator){
		WithFrameInterval(config.Display.FrameInterval.Duration()),
		WithStatsInterval(config.Settings.StatsInterval.Duration()),
		WithAutoLevels(config.Display.AutoLevels),
		WithMaxBatchSize(config.Storage.MaxBatchSize),
	}

	if config.Storage.Record {
		session, err := store.CreateSession(ctx, producer.Name(), wf.CenterFrequency(), wf.Bandwidth(), sourceConfig(&config.Source))
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		logger.Info("recording", slog.Int64("session", session.ID), slog.String("run", session.RunID))
		options = append(options, WithRecorder(store, session))
	}

	orchestrator := NewOrchestrator(producer, wf, logger, options...)
	runErr := orchestrator.Run(ctx)

	// The run context is done at this point.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if config.Bookmarks.Save {
		if b, err := bookmarks.AddFromTuner(ctx, wf); err != nil {
			errs = append(errs, fmt.Errorf("saving bookmark: %w", err))
		} else {
			logger.Info("bookmark saved", slog.String("name", b.Name), slog.String("frequency", bookmark.FormatFrequency(b.Frequency)))
		}
	}

	if config.Export.Path != "" {
		if err = export(orchestrator, &config.Export); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("snapshot exported", slog.String("path", config.Export.Path))
		}
	}

	return errors.Join(runErr, errors.Join(errs...))
}

func createWaterfall(config *Config, logger *slog.Logger) (*waterfall.Waterfall, error) {
	wfConfig := waterfall.Config{
		FFTLines:         config.Display.FFTLines,
		Workers:          config.Display.Workers,
		Widget:           image.Rect(0, 0, config.Display.Width, config.Display.Height),
		FFTHeight:        config.Display.FFTHeight,
		WaterfallVisible: true,
		WaterfallMin:     config.Display.WaterfallMin,
		WaterfallMax:     config.Display.WaterfallMax,
		FullUpdate:       config.Display.FullUpdate,
	}

	switch config.Source.Type {
	case SourceSynthetic:
		wfConfig.CenterFrequency = config.Source.Synthetic.CenterFrequency
		wfConfig.Bandwidth = config.Source.Synthetic.SampleRate
		wfConfig.RawFFTSize = config.Source.Synthetic.Size

	case SourceRTLPower:
		c := config.Source.RTLPower
		wfConfig.CenterFrequency = float64(c.FrequencyStart+c.FrequencyEnd) / 2
		wfConfig.Bandwidth = float64(c.FrequencyEnd - c.FrequencyStart)
		wfConfig.RawFFTSize = int((c.FrequencyEnd - c.FrequencyStart) / c.BinWidth)

	case SourceHackRF:
		// The line size is only known from the first sweep; the buffer
		// resizes itself when it arrives.
		c := config.Source.HackRF
		wfConfig.CenterFrequency = float64(c.FrequencyStart+c.FrequencyEnd) / 2
		wfConfig.Bandwidth = float64(c.FrequencyEnd - c.FrequencyStart)
	}

	if config.Display.Theme != "" {
		theme, err := palette.ParseTheme(config.Display.Theme)
		if err != nil {
			return nil, err
		}
		wfConfig.Palette = palette.FromTheme(theme)
	}

	wf, err := waterfall.New(wfConfig, waterfall.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	wf.SetHold(config.Display.Hold)
	if config.Display.HoldSpeed > 0 {
		wf.SetHoldSpeed(config.Display.HoldSpeed)
	}
	wf.SetSmoothing(config.Display.Smoothing)
	if config.Display.SmoothingSpeed > 0 {
		wf.SetSmoothingSpeed(config.Display.SmoothingSpeed)
	}
	wf.SetZoom(config.Display.Zoom)
	wf.SetCenterFrequencyLocked(config.Display.CenterFreqLocked)

	return wf, nil
}

func createVFOs(wf *waterfall.Waterfall, config []VFOConfig, logger *slog.Logger) error {
	for _, c := range config {
		ref, err := vfo.ParseReference(c.Reference)
		if err != nil {
			return err
		}

		opts := vfo.Options{
			Reference:       ref,
			Offset:          c.Offset,
			Bandwidth:       c.Bandwidth,
			MinBandwidth:    c.MinBandwidth,
			MaxBandwidth:    c.MaxBandwidth,
			BandwidthLocked: c.Locked,
			SnapInterval:    c.SnapInterval,
		}
		if err = wf.CreateVFO(c.Name, opts); err != nil {
			return fmt.Errorf("creating VFO %q: %w", c.Name, err)
		}
	}

	wf.VFOs().OnUserChange(func(e vfo.Event) {
		logger.Info("vfo changed",
			slog.String("vfo", e.VFO),
			slog.Float64("offset", e.Offset),
			slog.Float64("bandwidth", e.Bandwidth))
	})

	return nil
}

func createBookmarks(ctx context.Context, config BookmarksConfig, store *storage.SqliteStore, logger *slog.Logger) (*bookmark.Manager, error) {
	options := []func(*bookmark.Manager){bookmark.WithLogger(logger)}
	if store != nil {
		options = append(options, bookmark.WithStore(store))
	}

	manager := bookmark.NewManager(options...)
	if err := manager.Load(ctx); err != nil {
		return nil, err
	}

	for _, item := range config.Items {
		b := bookmark.Bookmark{
			Name:      item.Name,
			Frequency: item.Frequency,
			Bandwidth: item.Bandwidth,
		}
		if err := manager.Add(ctx, b); err != nil && !errors.Is(err, bookmark.ErrExists) {
			return nil, err
		}
	}

	return manager, nil
}

func createProducer(config *SourceConfig, logger *slog.Logger) (Producer, error) {
	switch config.Type {
	case SourceSynthetic:
		s, err := source.NewSynthetic(*config.Synthetic, source.WithSyntheticLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("creating synthetic source: %w", err)
		}
		return s, nil

	case SourceRTLPower:
		h, err := source.NewRTLPower(config.RTLPower)
		if err != nil {
			return nil, fmt.Errorf("creating rtl_power source: %w", err)
		}
		return &commandProducer{cmd: source.NewCommand(h, source.WithLogger(logger))}, nil

	case SourceHackRF:
		h, err := source.NewHackRF(config.HackRF)
		if err != nil {
			return nil, fmt.Errorf("creating hackrf_sweep source: %w", err)
		}
		return &commandProducer{cmd: source.NewCommand(h, source.WithLogger(logger))}, nil

	default:
		return nil, fmt.Errorf("creating source: unknown type '%s'", config.Type)
	}
}

func sourceConfig(config *SourceConfig) any {
	switch config.Type {
	case SourceRTLPower:
		return config.RTLPower
	case SourceHackRF:
		return config.HackRF
	default:
		return config.Synthetic
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = config.DataDirectory
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(wd, dbPath)
		}
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	return storage.NewSqliteStore(filepath.Join(dbPath, storageFile)), nil
}

func export(o *Orchestrator, config *ExportConfig) error {
	snapshot, ok := o.Snapshot()
	if !ok {
		return fmt.Errorf("exporting snapshot: %w", render.ErrEmptySnapshot)
	}

	format, err := render.ParseFormat(config.Format)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(render.Config{})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	img, err := renderer.Render(snapshot)
	if err != nil {
		return fmt.Errorf("rendering snapshot: %w", err)
	}

	f, err := os.Create(config.Path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	if err = render.Encode(f, img, format); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return f.Close()
}
