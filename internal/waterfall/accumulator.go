package waterfall

import (
	"image"
	"math"
	"sync"

	"github.com/roman-kulish/waterfall/internal/palette"
)

const (
	DefaultHoldSpeed      = 0.3
	DefaultSmoothingSpeed = 0.5
)

// Accumulator owns the waterfall history: the float rows of the most recent
// display lines and their colour-mapped bitmap, newest row at the top. It also
// keeps the instantaneous spectrum curve with optional peak hold or smoothing.
//
// The bitmap and the spectrum curve are guarded by separate mutexes so that
// composing rows never waits on a curve update and vice versa.
type Accumulator struct {
	mu sync.Mutex

	width  int
	height int

	palette    *palette.Palette
	min        float32
	max        float32
	fullUpdate bool

	rows  [][]float32 // Ring of height rows, rows[head] is the newest
	head  int
	count int

	img     *image.RGBA
	gen     uint64 // Rows appended since creation
	redraws uint64 // Full redraws and resizes since creation

	specMu         sync.Mutex
	hold           bool
	holdSpeed      float32
	smoothing      bool
	smoothingSpeed float32
	holdBuf        []float32
	smoothBuf      []float32
	curve          []float32
}

// NewAccumulator creates a waterfall history of height rows, width pixels
// each, colour-mapped through p.
func NewAccumulator(width, height int, p *palette.Palette) *Accumulator {
	if p == nil {
		p = palette.FromTheme(palette.DefaultTheme)
	}

	a := &Accumulator{
		palette:        p,
		min:            defaultMinLevel,
		max:            defaultMaxLevel,
		holdSpeed:      DefaultHoldSpeed,
		smoothingSpeed: DefaultSmoothingSpeed,
	}
	a.reset(width, height)
	return a
}

func (a *Accumulator) reset(width, height int) {
	a.width = max(width, 0)
	a.height = max(height, 0)

	a.rows = make([][]float32, a.height)
	for i := range a.rows {
		a.rows[i] = make([]float32, a.width)
	}
	a.head = 0
	a.count = 0

	a.img = image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	a.redraws++
}

// Reset resizes the history, dropping every row.
func (a *Accumulator) Reset(width, height int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset(width, height)
}

// Clear drops every row, keeping the dimensions.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset(a.width, a.height)
}

// Size returns the bitmap dimensions.
func (a *Accumulator) Size() (width, height int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.width, a.height
}

// Len returns the number of rows held.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.count
}

// Append colour-maps a display line and pushes it as the newest row, evicting
// the oldest row at capacity. A line of a different width resets the history
// to the new width first.
func (a *Accumulator) Append(line []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.height == 0 || len(line) == 0 {
		return
	}
	if len(line) != a.width {
		a.reset(len(line), a.height)
	}

	a.head = (a.head + 1) % a.height
	copy(a.rows[a.head], line)
	a.count = min(a.count+1, a.height)
	a.gen++

	// scroll the bitmap down by one row and paint the new one on top
	stride := a.img.Stride
	copy(a.img.Pix[stride:], a.img.Pix[:(a.height-1)*stride])
	a.paintRow(0, a.rows[a.head])
}

func (a *Accumulator) paintRow(y int, row []float32) {
	pix := a.img.Pix[y*a.img.Stride : y*a.img.Stride+a.width*4]
	for x, v := range row {
		c := a.palette.Map(v, a.min, a.max)
		pix[x*4+0] = c.R
		pix[x*4+1] = c.G
		pix[x*4+2] = c.B
		pix[x*4+3] = c.A
	}
}

// row returns the row of the given age, 0 being the newest.
func (a *Accumulator) row(age int) []float32 {
	return a.rows[(a.head-age+a.height)%a.height]
}

func (a *Accumulator) recolor() {
	for y := 0; y < a.count; y++ {
		a.paintRow(y, a.row(y))
	}
	clear(a.img.Pix[a.count*a.img.Stride:])
	a.redraws++
}

// Recolor colour-maps every historical row with the current range and palette.
func (a *Accumulator) Recolor() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recolor()
}

// SetFullUpdate selects whether range and palette changes recolour the whole
// history or only rows appended afterwards.
func (a *Accumulator) SetFullUpdate(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fullUpdate = enabled
}

// FullUpdate reports whether full update is enabled.
func (a *Accumulator) FullUpdate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.fullUpdate
}

// SetRange sets the power range mapped onto the palette.
func (a *Accumulator) SetRange(lo, hi float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lo == a.min && hi == a.max {
		return
	}
	a.min, a.max = lo, hi
	if a.fullUpdate {
		a.recolor()
	}
}

// Range returns the current power range.
func (a *Accumulator) Range() (lo, hi float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.min, a.max
}

// SetPalette replaces the palette.
func (a *Accumulator) SetPalette(p *palette.Palette) {
	if p == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.palette = p
	if a.fullUpdate {
		a.recolor()
	}
}

// Palette returns the current palette.
func (a *Accumulator) Palette() *palette.Palette {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.palette
}

// Image returns a copy of the composed bitmap.
func (a *Accumulator) Image() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()

	img := image.NewRGBA(a.img.Rect)
	copy(img.Pix, a.img.Pix)
	return img
}

// Rows returns a copy of up to n of the newest float rows, newest first.
func (a *Accumulator) Rows(n int) [][]float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	n = min(max(n, 0), a.count)
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = append([]float32(nil), a.row(i)...)
	}
	return rows
}

// Mark identifies a state of the bitmap for incremental uploads.
type Mark struct {
	Rows    uint64 // Rows appended
	Redraws uint64 // Full redraws
}

// Mark returns the current state of the bitmap.
func (a *Accumulator) Mark() Mark {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Mark{Rows: a.gen, Redraws: a.redraws}
}

// RowsSince reports how many rows at the top of the bitmap changed since m.
// full is set when the whole bitmap was redrawn or resized in the meantime and
// must be uploaded again.
func (a *Accumulator) RowsSince(m Mark) (rows int, full bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m.Redraws != a.redraws || m.Rows > a.gen {
		return a.height, true
	}
	delta := a.gen - m.Rows
	if delta >= uint64(a.height) {
		return a.height, true
	}
	return int(delta), false
}

// Autorange returns the extremes of the newest window rows, or of the current
// spectrum curve when window <= 0. Non-finite samples are ignored. ok is false
// when there is no data.
func (a *Accumulator) Autorange(window int) (lo, hi float32, ok bool) {
	if window <= 0 {
		a.specMu.Lock()
		defer a.specMu.Unlock()

		return extremes(a.curve)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for i := 0; i < min(window, a.count); i++ {
		l, h, found := extremes(a.row(i))
		if found {
			lo, hi, ok = min(lo, l), max(hi, h), true
		}
	}
	return lo, hi, ok
}

// AutorangePercentile returns histogram levels over the newest window rows,
// or over the current spectrum curve when window <= 0.
func (a *Accumulator) AutorangePercentile(window int) Levels {
	h := NewHistogram()

	if window <= 0 {
		a.specMu.Lock()
		h.UpdateLine(a.curve)
		a.specMu.Unlock()

		return h.Levels()
	}

	a.mu.Lock()
	for i := 0; i < min(window, a.count); i++ {
		h.UpdateLine(a.row(i))
	}
	a.mu.Unlock()

	return h.Levels()
}

func extremes(line []float32) (lo, hi float32, ok bool) {
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range line {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		lo, hi, ok = min(lo, v), max(hi, v), true
	}
	return lo, hi, ok
}

// SetHold enables the decayed peak hold. Enabling it disables smoothing.
func (a *Accumulator) SetHold(enabled bool) {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	a.hold = enabled
	if enabled {
		a.smoothing = false
		a.holdBuf = append(a.holdBuf[:0], a.curve...)
	}
}

// Hold reports whether peak hold is enabled.
func (a *Accumulator) Hold() bool {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	return a.hold
}

// SetHoldSpeed sets the fraction of the gap between the held and the current
// value that decays per refresh, clamped to [0, 1].
func (a *Accumulator) SetHoldSpeed(speed float32) {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	a.holdSpeed = clampUnit(speed)
}

// HoldSpeed returns the hold decay speed.
func (a *Accumulator) HoldSpeed() float32 {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	return a.holdSpeed
}

// SetSmoothing enables exponential smoothing. Enabling it disables hold.
func (a *Accumulator) SetSmoothing(enabled bool) {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	a.smoothing = enabled
	if enabled {
		a.hold = false
		a.smoothBuf = append(a.smoothBuf[:0], a.curve...)
	}
}

// Smoothing reports whether smoothing is enabled.
func (a *Accumulator) Smoothing() bool {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	return a.smoothing
}

// SetSmoothingSpeed sets the weight of the newest line, clamped to [0, 1].
func (a *Accumulator) SetSmoothingSpeed(speed float32) {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	a.smoothingSpeed = clampUnit(speed)
}

// SmoothingSpeed returns the smoothing speed.
func (a *Accumulator) SmoothingSpeed() float32 {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	return a.smoothingSpeed
}

// UpdateSpectrum feeds the newest display line to the instantaneous curve and
// returns a copy of the curve after hold or smoothing.
//
// Hold rises to a new peak at once and otherwise decays towards the current
// value by holdSpeed of the gap. Smoothing blends the current value with
// weight speed into the previous curve.
func (a *Accumulator) UpdateSpectrum(line []float32) []float32 {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	if len(line) != len(a.curve) {
		a.curve = append(a.curve[:0], line...)
		a.holdBuf = append(a.holdBuf[:0], line...)
		a.smoothBuf = append(a.smoothBuf[:0], line...)
		return append([]float32(nil), a.curve...)
	}

	switch {
	case a.hold:
		for i, cur := range line {
			held := a.holdBuf[i]
			if cur >= held {
				a.holdBuf[i] = cur
			} else {
				a.holdBuf[i] = held - (held-cur)*a.holdSpeed
			}
		}
		copy(a.curve, a.holdBuf)

	case a.smoothing:
		alpha, beta := a.smoothingSpeed, 1-a.smoothingSpeed
		for i, cur := range line {
			a.smoothBuf[i] = alpha*cur + beta*a.smoothBuf[i]
		}
		copy(a.curve, a.smoothBuf)

	default:
		copy(a.curve, line)
	}

	return append([]float32(nil), a.curve...)
}

// Spectrum returns a copy of the instantaneous curve.
func (a *Accumulator) Spectrum() []float32 {
	a.specMu.Lock()
	defer a.specMu.Unlock()

	return append([]float32(nil), a.curve...)
}

func clampUnit(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return min(max(v, 0), 1)
}
