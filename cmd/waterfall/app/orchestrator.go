package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/waterfall/internal/render"
	"github.com/roman-kulish/waterfall/internal/source"
	"github.com/roman-kulish/waterfall/internal/storage"
	"github.com/roman-kulish/waterfall/internal/waterfall"
)

const (
	maxBatchSize       = 100
	lineQueueSize      = 64
	autoLevelsInterval = time.Second
	autoLevelsAlpha    = 0.3
)

// Producer emits FFT lines until ctx is done or it fails.
type Producer interface {
	Name() string
	Run(ctx context.Context, lines chan<- source.Line) error
}

// commandProducer adapts an external command to Producer.
type commandProducer struct {
	cmd *source.Command
}

func (p *commandProducer) Name() string {
	return p.cmd.Name()
}

func (p *commandProducer) Run(ctx context.Context, lines chan<- source.Line) error {
	done, err := p.cmd.BeginSampling(ctx, lines)
	if err != nil {
		return err
	}
	return <-done // nil once closed without an error
}

// WithMaxBatchSize sets the maximum number of recorded lines to store within
// a single database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if size > 0 {
			o.maxBatchSize = size
		}
	}
}

// WithRecorder records every display line into a storage session.
func WithRecorder(store storage.Store, session *storage.Session) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.session = session
	}
}

// WithFrameInterval sets the refresh period.
func WithFrameInterval(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if d > 0 {
			o.frameInterval = d
		}
	}
}

// WithAutoLevels adjusts the waterfall range once a second from the
// smoothed percentiles of the recent display lines.
func WithAutoLevels(enabled bool) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if enabled {
			o.levels = waterfall.NewSmoothLevels(autoLevelsAlpha)
		} else {
			o.levels = nil
		}
	}
}

// WithStatsInterval sets how often progress is logged.
func WithStatsInterval(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.statsInterval = d
	}
}

// Orchestrator drives the pipeline: a producer goroutine feeds FFT lines into
// the waterfall, the render loop refreshes it once per frame, and a recorder
// goroutine stores the appended display lines in batches.
type Orchestrator struct {
	producer Producer
	wf       *waterfall.Waterfall

	store   storage.Store
	session *storage.Session

	frameInterval time.Duration
	statsInterval time.Duration
	levels        *waterfall.SmoothLevels
	maxBatchSize  int

	pushed   atomic.Int64
	recorded atomic.Int64

	mu       sync.Mutex
	last     *waterfall.Frame
	rowTimes []time.Time // Timestamps of the history rows, oldest first

	logger *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(p Producer, wf *waterfall.Waterfall, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		producer:      p,
		wf:            wf,
		frameInterval: defaultFrameInterval,
		maxBatchSize:  maxBatchSize,
		logger:        logger,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run blocks until ctx is done or the producer fails. Lines still queued for
// recording are flushed before it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	lines := make(chan source.Line, lineQueueSize)
	var producerErr error

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		defer close(lines)
		defer o.cancel() // nothing left to render once the producer is gone

		if err := o.producer.Run(ctx, lines); err != nil {
			producerErr = fmt.Errorf("%s: %w", o.producer.Name(), err)
			o.logger.Error(producerErr.Error())
		}
	}()
	go o.handleLines(lines)

	var records chan []storage.Line
	var recorder sync.WaitGroup
	if o.store != nil {
		records = make(chan []storage.Line, lineQueueSize)
		recorder.Add(1)
		go func() {
			defer recorder.Done()
			o.handleRecords(context.WithoutCancel(ctx), records)
		}()
	}

	err := o.renderLoop(ctx, records)

	o.cancel()
	o.wg.Wait()
	if records != nil {
		close(records)
		recorder.Wait()
	}

	o.logger.Info("stopped",
		slog.String("pushed", humanize.Comma(o.pushed.Load())),
		slog.String("recorded", humanize.Comma(o.recorded.Load())))

	return errors.Join(err, producerErr)
}

// handleLines retunes the waterfall when the producer changes frequency and
// pushes the line. It never blocks on the render loop.
func (o *Orchestrator) handleLines(lines <-chan source.Line) {
	defer o.wg.Done()

	for line := range lines {
		if center := line.CenterFrequency(); center != o.wf.CenterFrequency() {
			o.wf.SetCenterFrequency(center)
		}
		if bw := line.Bandwidth(); bw != o.wf.Bandwidth() {
			o.wf.SetBandwidth(bw)
			o.logger.Info("bandwidth changed", slog.String("bandwidth", humanize.SIWithDigits(bw, 3, "Hz")))
		}

		if o.wf.PushLine(line.Power) {
			o.pushed.Add(1)
		}
	}
}

func (o *Orchestrator) renderLoop(ctx context.Context, records chan<- []storage.Line) error {
	ticker := time.NewTicker(o.frameInterval)
	defer ticker.Stop()

	var levelsAt, statsAt time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			frame, err := o.wf.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("refreshing waterfall: %w", err)
			}
			o.update(frame, now)

			if records != nil && len(frame.Lines) > 0 {
				records <- o.toRecords(frame, now)
			}

			if o.levels != nil {
				for _, line := range frame.Lines {
					o.levels.Update(line)
				}
				if now.Sub(levelsAt) >= autoLevelsInterval {
					levelsAt = now
					levels := o.levels.Current()
					o.wf.SetWaterfallRange(levels.Min, levels.Max)
					o.logger.Debug("levels",
						slog.Float64("min", float64(levels.Min)),
						slog.Float64("max", float64(levels.Max)),
						slog.Float64("mean", float64(levels.Mean)))
				}
			}

			if o.statsInterval > 0 && now.Sub(statsAt) >= o.statsInterval {
				statsAt = now
				o.logStats(frame)
			}
		}
	}
}

// update keeps the newest frame and the row timestamps for the snapshot.
func (o *Orchestrator) update(frame *waterfall.Frame, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.last = frame
	if frame.FullRedraw && len(frame.Lines) == 0 {
		o.rowTimes = o.rowTimes[:0]
	}
	for range frame.Lines {
		o.rowTimes = append(o.rowTimes, now)
	}
	if h := frame.Image.Rect.Dy(); len(o.rowTimes) > h {
		o.rowTimes = slices.Delete(o.rowTimes, 0, len(o.rowTimes)-h)
	}
}

func (o *Orchestrator) toRecords(frame *waterfall.Frame, now time.Time) []storage.Line {
	records := make([]storage.Line, len(frame.Lines))
	for i, l := range frame.Lines {
		records[i] = storage.Line{
			Timestamp:       now.UTC(),
			CenterFrequency: (frame.LowerFrequency + frame.UpperFrequency) / 2,
			Bandwidth:       frame.UpperFrequency - frame.LowerFrequency,
			Power:           l,
		}
	}
	return records
}

func (o *Orchestrator) handleRecords(ctx context.Context, records <-chan []storage.Line) {
	var batch []storage.Line

	flush := func() {
		for chunk := range slices.Chunk(batch, o.maxBatchSize) {
			if err := o.store.StoreLines(ctx, o.session.ID, chunk); err != nil {
				o.logger.Error(fmt.Sprintf("storing lines: %s", err.Error()))
				continue
			}
			o.recorded.Add(int64(len(chunk)))
		}
		batch = batch[:0]
	}

	for r := range records {
		batch = append(batch, r...)
		if len(batch) >= o.maxBatchSize {
			flush()
		}
	}
	flush()
}

func (o *Orchestrator) logStats(frame *waterfall.Frame) {
	attrs := []any{
		slog.String("pushed", humanize.Comma(o.pushed.Load())),
		slog.String("dropped", humanize.Comma(frame.Dropped)),
		slog.String("span", fmt.Sprintf("%s - %s",
			humanize.SIWithDigits(frame.LowerFrequency, 4, "Hz"),
			humanize.SIWithDigits(frame.UpperFrequency, 4, "Hz"))),
	}
	if o.store != nil {
		attrs = append(attrs, slog.String("recorded", humanize.Comma(o.recorded.Load())))
	}
	if frame.SelectedVFO != "" {
		attrs = append(attrs,
			slog.String("vfo", frame.SelectedVFO),
			slog.String("snr", fmt.Sprintf("%0.1fdB", frame.SelectedSNR)))
	}

	o.logger.Info("waterfall", attrs...)
}

// Snapshot returns the newest frame as a still image source, or false when no
// frame was rendered yet.
func (o *Orchestrator) Snapshot() (*render.Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.last == nil || len(o.rowTimes) == 0 {
		return nil, false
	}

	return &render.Snapshot{
		Image:          o.last.Image,
		Rows:           len(o.rowTimes),
		FrequencyMin:   o.last.LowerFrequency,
		FrequencyMax:   o.last.UpperFrequency,
		TimestampStart: o.rowTimes[0],
		TimestampEnd:   o.rowTimes[len(o.rowTimes)-1],
	}, true
}
