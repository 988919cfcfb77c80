package waterfall

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/roman-kulish/waterfall/internal/palette"
	"github.com/roman-kulish/waterfall/internal/view"
)

// SetPalette replaces the colour table.
func (w *Waterfall) SetPalette(p *palette.Palette) {
	w.acc.SetPalette(p)
}

func (w *Waterfall) Palette() *palette.Palette {
	return w.acc.Palette()
}

// SetRawFFTSize reallocates the ring buffer for lines of n samples, dropping
// every buffered line.
func (w *Waterfall) SetRawFFTSize(n int) error {
	if err := w.buffer.Resize(w.buffer.Capacity(), n); err != nil {
		return fmt.Errorf("resizing line buffer: %w", err)
	}
	return nil
}

func (w *Waterfall) RawFFTSize() int {
	return w.buffer.Size()
}

// SetFFTLines sets the ring buffer capacity, dropping every buffered line.
func (w *Waterfall) SetFFTLines(n int) error {
	if err := w.buffer.Resize(n, w.buffer.Size()); err != nil {
		return fmt.Errorf("resizing line buffer: %w", err)
	}
	return nil
}

func (w *Waterfall) FFTLines() int {
	return w.buffer.Capacity()
}

// SetWidget sets the screen rectangle of the whole widget. The display width
// and the waterfall height follow from it.
func (w *Waterfall) SetWidget(r image.Rectangle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r == w.widget {
		return
	}
	w.widget = r
	w.relayout()
}

func (w *Waterfall) Widget() image.Rectangle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.widget
}

// DisplayWidth returns the number of pixels per display line.
func (w *Waterfall) DisplayWidth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layout.DataWidth()
}

// WaterfallHeight returns the number of history rows.
func (w *Waterfall) WaterfallHeight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layout.WaterfallHeight()
}

// SetFFTHeight sets the height of the spectrum area.
func (w *Waterfall) SetFFTHeight(h int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.layoutOpts.FFTHeight = max(h, 0)
	w.relayout()
}

func (w *Waterfall) FFTHeight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layoutOpts.FFTHeight
}

// SetWaterfallVisible shows or hides the history; a hidden history gives its
// area to the spectrum.
func (w *Waterfall) SetWaterfallVisible(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.layoutOpts.WaterfallVisible = visible
	w.relayout()
}

func (w *Waterfall) WaterfallVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layoutOpts.WaterfallVisible
}

func (w *Waterfall) SetBandplanVisible(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.layoutOpts.BandplanVisible = visible
	w.relayout()
}

func (w *Waterfall) BandplanVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layoutOpts.BandplanVisible
}

func (w *Waterfall) SetBandplanPosition(pos view.BandplanPosition) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.layoutOpts.BandplanPosition = pos
	w.relayout()
}

func (w *Waterfall) BandplanPosition() view.BandplanPosition {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layoutOpts.BandplanPosition
}

// SetFFTRange sets the power range of the spectrum area scale.
func (w *Waterfall) SetFFTRange(lo, hi float32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fftMin, w.fftMax = lo, hi
}

func (w *Waterfall) FFTRange() (lo, hi float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fftMin, w.fftMax
}

// SetWaterfallRange sets the power range mapped onto the palette.
func (w *Waterfall) SetWaterfallRange(lo, hi float32) {
	w.acc.SetRange(lo, hi)
}

func (w *Waterfall) WaterfallRange() (lo, hi float32) {
	return w.acc.Range()
}

// AutoLevels sets the waterfall range to the extremes of the newest window
// rows, or of the spectrum curve when window <= 0. It reports false and keeps
// the range when there is no data.
func (w *Waterfall) AutoLevels(window int) (lo, hi float32, ok bool) {
	lo, hi, ok = w.acc.Autorange(window)
	if !ok {
		return 0, 0, false
	}
	if lo == hi {
		hi = lo + 1
	}
	w.acc.SetRange(lo, hi)

	w.logger.Debug("levels adjusted",
		slog.Float64("min", float64(lo)),
		slog.Float64("max", float64(hi)))
	return lo, hi, true
}

// AutoLevelsPercentile sets the waterfall range from the 5th and 95th
// percentiles of the newest window rows.
func (w *Waterfall) AutoLevelsPercentile(window int) Levels {
	levels := w.acc.AutorangePercentile(window)
	w.acc.SetRange(levels.Min, levels.Max)
	return levels
}

// SetWorkers resizes the decimation worker pool.
func (w *Waterfall) SetWorkers(n int) error {
	if err := w.decimator.SetWorkers(n); err != nil {
		return fmt.Errorf("resizing zoom pool: %w", err)
	}
	return nil
}

func (w *Waterfall) Workers() int {
	return w.decimator.Workers()
}

func (w *Waterfall) SetHold(enabled bool)        { w.acc.SetHold(enabled) }
func (w *Waterfall) Hold() bool                  { return w.acc.Hold() }
func (w *Waterfall) SetHoldSpeed(speed float32)  { w.acc.SetHoldSpeed(speed) }
func (w *Waterfall) HoldSpeed() float32          { return w.acc.HoldSpeed() }
func (w *Waterfall) SetSmoothing(enabled bool)   { w.acc.SetSmoothing(enabled) }
func (w *Waterfall) Smoothing() bool             { return w.acc.Smoothing() }
func (w *Waterfall) SetSmoothingSpeed(s float32) { w.acc.SetSmoothingSpeed(s) }
func (w *Waterfall) SmoothingSpeed() float32     { return w.acc.SmoothingSpeed() }

// SetFullUpdate selects whether view, palette and range changes redraw the
// whole history.
func (w *Waterfall) SetFullUpdate(enabled bool) {
	w.acc.SetFullUpdate(enabled)
}

func (w *Waterfall) FullUpdate() bool {
	return w.acc.FullUpdate()
}
