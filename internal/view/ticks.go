package view

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const pixelsPerLabel = 150.0

// Tick is a labelled mark of the frequency scale.
type Tick struct {
	Frequency float64
	X         float64 // Screen X
	Label     string
}

// Ticks returns the frequency scale marks of the current view, one per nice
// frequency step, spaced roughly pixelsPerLabel apart.
func (v *FrequencyView) Ticks() []Tick {
	if v.viewBandwidth <= 0 || v.width <= 0 {
		return nil
	}

	lower, upper := v.LowerFrequency(), v.UpperFrequency()
	step := NiceFrequencyStep(v.viewBandwidth, int(v.width))

	var ticks []Tick
	for f := math.Ceil(lower/step) * step; f <= upper; f += step {
		ticks = append(ticks, Tick{
			Frequency: f,
			X:         v.FreqToPixel(f),
			Label:     FormatFrequency(f),
		})
	}
	return ticks
}

// NiceFrequencyStep returns a 1-2-5 step in Hz that fits about one label per
// pixelsPerLabel pixels over span Hz.
func NiceFrequencyStep(span float64, width int) float64 {
	if span <= 0 {
		return 1
	}

	desiredSteps := math.Max(float64(width)/pixelsPerLabel, 1)
	target := span / desiredSteps

	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}

// FormatFrequency formats f with an SI prefix, e.g. "145.5 MHz".
func FormatFrequency(f float64) string {
	value, prefix := humanize.ComputeSI(f)
	return humanize.FtoaWithDigits(value, 3) + " " + prefix + "Hz"
}

// FormatSpan formats a frequency range, e.g. "Freq: 144 MHz - 146 MHz".
func FormatSpan(lower, upper float64) string {
	return fmt.Sprintf("Freq: %s - %s", FormatFrequency(lower), FormatFrequency(upper))
}
