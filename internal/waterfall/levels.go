package waterfall

import "math"

const (
	defaultMinLevel = -120.0 // dB
	defaultMaxLevel = -20.0  // dB

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	minimumLevelSpan = 30 // dB
)

// Levels is a colour-mapping range suggested by the level histogram.
type Levels struct {
	Min  float32 // 5th percentile power level minus margin
	Max  float32 // 95th percentile power level plus margin
	Mean float32 // Mean power level
}

// DefaultLevels returns the range used until enough samples were seen.
func DefaultLevels() Levels {
	return Levels{
		Min:  defaultMinLevel,
		Max:  defaultMaxLevel,
		Mean: (defaultMinLevel + defaultMaxLevel) / 2,
	}
}

// Histogram maintains a histogram of power values with 1 dB bins
type Histogram struct {
	bins       map[int]uint32 // Map of bin index to count
	totalCount uint64         // Total number of samples
	minBin     int            // Cache for min bin
	maxBin     int            // Cache for max bin
}

// NewHistogram creates a new histogram
func NewHistogram() *Histogram {
	return &Histogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// scaleDown scales all bin counts down by factor of 2
func (h *Histogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Update adds a power reading to the histogram. Non-finite values are ignored.
func (h *Histogram) Update(power float32) {
	p := float64(power)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return
	}

	bin := int(math.Floor(p))

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

// UpdateLine adds every sample of a line.
func (h *Histogram) UpdateLine(line []float32) {
	for _, v := range line {
		h.Update(v)
	}
}

// Count returns the number of samples in the histogram.
func (h *Histogram) Count() uint64 {
	return h.totalCount
}

// Clear resets the histogram
func (h *Histogram) Clear() {
	h.bins = make(map[int]uint32)
	h.totalCount = 0
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32
}

// Levels returns a range based on the 5th and 95th percentiles, widened to at
// least 30 dB and padded by a 10% margin on each side.
func (h *Histogram) Levels() Levels {
	if h.totalCount < minimumSampleCount {
		return DefaultLevels()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var min5th, max95th int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			min5th = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			max95th = bin
			break
		}
	}

	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	if max95th-min5th < minimumLevelSpan {
		center := (max95th + min5th) / 2
		min5th = center - minimumLevelSpan/2
		max95th = center + minimumLevelSpan/2
	}

	margin := (max95th - min5th) / 10
	return Levels{
		Min:  float32(min5th - margin),
		Max:  float32(max95th + margin),
		Mean: float32(mean),
	}
}

// SmoothLevels tracks histogram levels with exponential smoothing, so that a
// continuously auto-ranged waterfall does not flicker.
type SmoothLevels struct {
	hist    *Histogram
	alpha   float32 // Smoothing factor (0-1)
	current Levels
}

// NewSmoothLevels creates a new level smoother
func NewSmoothLevels(alpha float32) *SmoothLevels {
	return &SmoothLevels{
		hist:    NewHistogram(),
		alpha:   min(max(alpha, 0), 1),
		current: DefaultLevels(),
	}
}

// Update adds a line to the histogram and returns the smoothed levels
func (s *SmoothLevels) Update(line []float32) Levels {
	if len(line) == 0 {
		return s.current
	}

	s.hist.UpdateLine(line)
	next := s.hist.Levels()

	s.current.Min = s.current.Min*(1-s.alpha) + next.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + next.Max*s.alpha
	s.current.Mean = next.Mean

	return s.current
}

// Current returns the current smoothed levels
func (s *SmoothLevels) Current() Levels {
	return s.current
}

// Clear resets the histogram and levels
func (s *SmoothLevels) Clear() {
	s.hist.Clear()
	s.current = DefaultLevels()
}
