package waterfall

import (
	"fmt"
	"log/slog"

	"github.com/roman-kulish/waterfall/internal/vfo"
)

// SetCenterFrequency retunes the view. Buffered lines keep their old
// frequency until they scroll out.
func (w *Waterfall) SetCenterFrequency(f float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view.SetCenterFrequency(f)
}

func (w *Waterfall) CenterFrequency() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.CenterFrequency()
}

// SetBandwidth sets the span of the raw lines.
func (w *Waterfall) SetBandwidth(bw float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view.SetBandwidth(bw)
	w.viewChanged = true
}

func (w *Waterfall) Bandwidth() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.Bandwidth()
}

// SetViewBandwidth sets the displayed span, clamped to the raw span.
func (w *Waterfall) SetViewBandwidth(bw float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view.SetViewBandwidth(bw)
	w.viewChanged = true
}

func (w *Waterfall) ViewBandwidth() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.ViewBandwidth()
}

// SetViewOffset pans the view, clamped to the raw span.
func (w *Waterfall) SetViewOffset(offset float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view.SetViewOffset(offset)
	w.viewChanged = true
}

func (w *Waterfall) ViewOffset() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.ViewOffset()
}

// SetZoom sets the view bandwidth from a zoom control value in [0, 1].
func (w *Waterfall) SetZoom(z float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view.SetZoom(z)
	w.viewChanged = true
}

func (w *Waterfall) Zoom() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view.Zoom()
}

// SetCenterFrequencyLocked stops Pan from retuning the centre frequency.
func (w *Waterfall) SetCenterFrequencyLocked(locked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.centerLocked = locked
}

func (w *Waterfall) CenterFrequencyLocked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.centerLocked
}

// Pan moves the spectrum by dx pixels, as a pointer drag on the spectrum
// would. A zoomed in view scrolls within the raw span; a full view retunes the
// centre frequency unless it is locked, and the next frame reports the move.
func (w *Waterfall) Pan(dx float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delta := dx * w.view.HzPerPixel()
	if delta == 0 {
		return
	}

	if w.view.ViewBandwidth() < w.view.Bandwidth() {
		w.view.SetViewOffset(w.view.ViewOffset() - delta)
		w.viewChanged = true
		return
	}
	if w.centerLocked {
		return
	}

	w.view.SetCenterFrequency(w.view.CenterFrequency() - delta)
	w.centerFreqMoved = true
}

// PixelToOffset converts a screen X into an offset from the centre frequency,
// the unit of VFO drags.
func (w *Waterfall) PixelToOffset(x float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.view.PixelToFreq(x) - w.view.CenterFrequency()
}

// SelectedVFO returns the selected VFO name, empty when none is selected.
func (w *Waterfall) SelectedVFO() string {
	return w.vfos.Selected()
}

// VFOFrequency returns the absolute centre frequency and the bandwidth of a
// VFO.
func (w *Waterfall) VFOFrequency(name string) (freq, bandwidth float64, ok bool) {
	v, ok := w.vfos.Get(name)
	if !ok {
		return 0, 0, false
	}
	return w.CenterFrequency() + v.CenterOffset(), v.Bandwidth(), true
}

// TuneVFO moves the centre of a VFO to an absolute frequency. A positive
// bandwidth also resizes it.
func (w *Waterfall) TuneVFO(name string, freq, bandwidth float64) error {
	offset := freq - w.CenterFrequency()

	if bandwidth > 0 {
		if err := w.vfos.SetBandwidth(name, bandwidth); err != nil {
			return fmt.Errorf("tuning: %w", err)
		}
	}
	if err := w.vfos.SetCenterOffset(name, offset); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	w.logger.Debug("vfo tuned",
		slog.String("vfo", name),
		slog.Float64("frequency", freq),
		slog.Float64("bandwidth", bandwidth))
	return nil
}

// CreateVFO adds a VFO and selects it when it is the only one.
func (w *Waterfall) CreateVFO(name string, opts vfo.Options) error {
	if err := w.vfos.Create(name, opts); err != nil {
		return err
	}
	if w.vfos.Selected() == "" {
		w.vfos.SelectFirst()
	}
	return nil
}
