package waterfall

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/roman-kulish/waterfall/internal/fft"
	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/view"
	"github.com/roman-kulish/waterfall/internal/vfo"
	"github.com/roman-kulish/waterfall/internal/zoom"
)

const (
	DefaultFFTLines   = 1024
	DefaultRawFFTSize = 8192
	DefaultFFTMin     = -70.0
	DefaultFFTMax     = 0.0
)

var ErrClosed = errors.New("waterfall closed")

// Config is the initial state of a Waterfall. Zero values take defaults.
type Config struct {
	CenterFrequency float64 // Hz
	Bandwidth       float64 // Hz, span of the raw FFT lines

	RawFFTSize int // Samples per raw line
	FFTLines   int // Raw lines kept by the ring buffer
	Workers    int // Decimation workers

	Widget           image.Rectangle
	FFTHeight        int
	WaterfallVisible bool
	BandplanVisible  bool
	BandplanPosition view.BandplanPosition

	Palette      *palette.Palette
	FFTMin       float32
	FFTMax       float32
	WaterfallMin float32
	WaterfallMax float32
	FullUpdate   bool
}

// Frame is the output of one refresh cycle.
type Frame struct {
	Layout view.Layout

	Image      *image.RGBA // Copy of the waterfall bitmap, newest row on top
	NewRows    int         // Rows at the top of Image changed since the previous frame
	FullRedraw bool        // Every row of Image changed
	Lines      [][]float32 // Display lines appended in this cycle, oldest first
	Spectrum   []float32   // Instantaneous curve after hold or smoothing
	Ticks      []view.Tick // Frequency scale
	VFOs       map[string]vfo.Geometry

	CenterFrequency float64
	LowerFrequency  float64
	UpperFrequency  float64
	LowClamped      bool
	HighClamped     bool

	FFTMin       float32
	FFTMax       float32
	WaterfallMin float32
	WaterfallMax float32

	SelectedVFO          string
	SelectedSNR          float64 // dB, NaN when unknown
	SelectedVFOChanged   bool
	CenterFrequencyMoved bool

	Dropped int64 // Raw lines dropped by the ring buffer so far
}

// WithLogger sets the logger for the waterfall
func WithLogger(logger *slog.Logger) func(*Waterfall) {
	return func(w *Waterfall) {
		w.logger = logger
	}
}

// Waterfall owns every component of the pipeline: the raw line ring, the
// decimation workers, the history bitmap, the frequency view and the VFOs.
// Producers call PushLine from any goroutine; a single render goroutine calls
// Refresh once per frame. Setters may be called from any goroutine.
type Waterfall struct {
	mu sync.Mutex

	buffer    *fft.LineBuffer
	decimator *zoom.Decimator
	acc       *Accumulator
	view      *view.FrequencyView
	vfos      *vfo.Set

	widget     image.Rectangle
	layoutOpts view.LayoutOptions
	layout     view.Layout

	fftMin float32
	fftMax float32

	lastSeq     int64
	bufferGen   uint64
	viewChanged bool
	mark        Mark

	centerLocked    bool
	centerFreqMoved bool

	closed bool
	logger *slog.Logger
}

// New creates a waterfall and starts its decimation workers. Close must be
// called to stop them.
func New(config Config, options ...func(*Waterfall)) (*Waterfall, error) {
	if config.RawFFTSize == 0 {
		config.RawFFTSize = DefaultRawFFTSize
	}
	if config.FFTLines == 0 {
		config.FFTLines = DefaultFFTLines
	}
	if config.FFTMin == 0 && config.FFTMax == 0 {
		config.FFTMin, config.FFTMax = DefaultFFTMin, DefaultFFTMax
	}

	buffer, err := fft.NewLineBuffer(config.FFTLines, config.RawFFTSize)
	if err != nil {
		return nil, fmt.Errorf("creating line buffer: %w", err)
	}

	w := &Waterfall{
		buffer: buffer,
		view:   view.New(config.CenterFrequency, config.Bandwidth),
		vfos:   vfo.NewSet(),
		widget: config.Widget,
		layoutOpts: view.LayoutOptions{
			FFTHeight:        config.FFTHeight,
			WaterfallVisible: config.WaterfallVisible,
			BandplanVisible:  config.BandplanVisible,
			BandplanPosition: config.BandplanPosition,
		},
		fftMin:      config.FFTMin,
		fftMax:      config.FFTMax,
		lastSeq:     -1,
		bufferGen:   buffer.Generation(),
		viewChanged: true,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(w)
	}
	base := w.logger
	w.logger = base.With(slog.String("component", "waterfall"))

	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	w.decimator = zoom.NewDecimator(config.Workers, zoom.WithLogger(base))

	w.layout = view.ComputeLayout(w.widget, w.layoutOpts)
	w.acc = NewAccumulator(w.layout.DataWidth(), w.layout.WaterfallHeight(), config.Palette)
	w.acc.SetFullUpdate(config.FullUpdate)
	if config.WaterfallMin != 0 || config.WaterfallMax != 0 {
		w.acc.SetRange(config.WaterfallMin, config.WaterfallMax)
	}
	w.mark = w.acc.Mark()

	w.logger.Debug("waterfall created",
		slog.Int("rawFFTSize", config.RawFFTSize),
		slog.Int("fftLines", config.FFTLines),
		slog.Int("workers", w.decimator.Workers()),
		slog.Int("width", w.layout.DataWidth()),
		slog.Int("height", w.layout.WaterfallHeight()))

	return w, nil
}

// Close stops the decimation workers. Refresh fails afterwards.
func (w *Waterfall) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.decimator.Stop()
}

// PushLine copies a raw FFT line into the ring buffer. It never blocks on the
// render goroutine and reports false when the line was dropped.
func (w *Waterfall) PushLine(samples []float32) bool {
	return w.buffer.Push(samples)
}

// Refresh runs one render cycle: raw lines pushed since the previous cycle are
// decimated to display width and appended to the history, the instantaneous
// curve is updated from the newest line and the VFO geometry is recomputed.
//
// At most one waterfall height of lines is consumed per cycle; older lines
// would scroll out of the history anyway. When the view changed and full
// update is enabled, the history is rebuilt from every buffered line.
func (w *Waterfall) Refresh(ctx context.Context) (*Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if gen := w.buffer.Generation(); gen != w.bufferGen {
		w.bufferGen = gen
		w.lastSeq = -1
		w.viewChanged = true
	}

	width, height := w.layout.DataWidth(), w.layout.WaterfallHeight()
	w.decimator.SetOutputWidth(width)
	rawSize := -1

	since := w.lastSeq
	rebuild := w.viewChanged && w.acc.FullUpdate()
	if rebuild {
		w.acc.Clear()
		since = -1
	}

	limit := max(height, 1)
	lines := w.buffer.AcquireSince(since, limit)
	defer func() {
		for _, l := range lines {
			l.Release()
		}
	}()

	frame := &Frame{}
	prev := w.lastSeq
	var newest []float32

	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.lastSeq = max(w.lastSeq, l.Seq)
		if width == 0 {
			continue
		}

		if l.Width() != rawSize {
			rawSize = l.Width()
			w.decimator.SetWindow(w.view.RawWindow(rawSize))
		}

		out := make([]float32, width)
		if err := w.decimator.Zoom(l.Data, out); err != nil {
			return nil, fmt.Errorf("decimating line %d: %w", l.Seq, err)
		}
		if height > 0 {
			w.acc.Append(out)
		}
		if l.Seq > prev {
			frame.Lines = append(frame.Lines, out)
		}
		newest = out
	}

	if latest, ok := w.buffer.AcquireLatest(); ok {
		switch {
		case newest != nil:
			frame.Spectrum = w.acc.UpdateSpectrum(newest)
		case w.viewChanged && width > 0:
			// redraw the curve at the new zoom
			w.decimator.SetWindow(w.view.RawWindow(latest.Width()))
			out := make([]float32, width)
			if err := w.decimator.Zoom(latest.Data, out); err != nil {
				latest.Release()
				return nil, fmt.Errorf("decimating line %d: %w", latest.Seq, err)
			}
			frame.Spectrum = w.acc.UpdateSpectrum(out)
		default:
			frame.Spectrum = w.acc.Spectrum()
		}
		w.vfos.UpdateSignal(latest.Data, w.view.Bandwidth())
		latest.Release()
	}
	w.viewChanged = false

	w.view.SetGeometry(w.layout.FFT.Min.X, width)
	w.vfos.UpdateGeometry(w.view, w.layout)

	frame.NewRows, frame.FullRedraw = w.acc.RowsSince(w.mark)
	w.mark = w.acc.Mark()

	frame.Layout = w.layout
	frame.Image = w.acc.Image()
	frame.Ticks = w.view.Ticks()
	frame.VFOs = w.vfos.Geometries()
	frame.CenterFrequency = w.view.CenterFrequency()
	frame.LowerFrequency = w.view.LowerFrequency()
	frame.UpperFrequency = w.view.UpperFrequency()
	frame.LowClamped, frame.HighClamped = w.view.Clamped()
	frame.FFTMin, frame.FFTMax = w.fftMin, w.fftMax
	frame.WaterfallMin, frame.WaterfallMax = w.acc.Range()
	frame.SelectedVFO = w.vfos.Selected()
	frame.SelectedSNR = w.vfos.SelectedSNR()
	frame.SelectedVFOChanged = w.vfos.TakeSelectedChanged()
	frame.CenterFrequencyMoved = w.centerFreqMoved
	frame.Dropped = w.buffer.Dropped()
	w.centerFreqMoved = false

	if rebuild {
		w.logger.Debug("history rebuilt", slog.Int("lines", len(lines)))
	}

	return frame, nil
}

// relayout recomputes the screen areas and resizes the history when the data
// area changed. Must be called with w.mu held.
func (w *Waterfall) relayout() {
	w.layout = view.ComputeLayout(w.widget, w.layoutOpts)

	width, height := w.layout.DataWidth(), w.layout.WaterfallHeight()
	if aw, ah := w.acc.Size(); aw != width || ah != height {
		w.acc.Reset(width, height)
		w.viewChanged = true
	}
	w.view.SetGeometry(w.layout.FFT.Min.X, width)
}

// View returns a copy of the frequency view, for pixel and frequency
// conversions.
func (w *Waterfall) View() view.FrequencyView {
	w.mu.Lock()
	defer w.mu.Unlock()

	return *w.view
}

// VFOs returns the VFO set. It is safe for concurrent use.
func (w *Waterfall) VFOs() *vfo.Set {
	return w.vfos
}

// Buffer returns the raw line ring buffer.
func (w *Waterfall) Buffer() *fft.LineBuffer {
	return w.buffer
}

// Accumulator returns the waterfall history.
func (w *Waterfall) Accumulator() *Accumulator {
	return w.acc
}

// Layout returns the current screen areas.
func (w *Waterfall) Layout() view.Layout {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.layout
}
