package vfo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SignalInfo measures the signal inside a VFO on a raw FFT line that spans
// wholeBandwidth Hz centred on the tuned frequency.
//
// strength is the strongest sample inside [lowerOffset, upperOffset]. snr is
// strength minus the median of the samples one bandwidth to either side of the
// band, in dB. ok is false when the band lies outside the line or no samples
// are left for the noise floor estimate.
func SignalInfo(line []float32, wholeBandwidth float64, v *VFO) (strength, snr float64, ok bool) {
	n := len(line)
	if n == 0 || wholeBandwidth <= 0 {
		return 0, 0, false
	}

	bin := func(offset float64) int {
		return int(math.Floor((offset/wholeBandwidth + 0.5) * float64(n)))
	}

	lo, hi := bin(v.lowerOffset), bin(v.upperOffset)
	if hi < 0 || lo >= n {
		return 0, 0, false
	}
	lo, hi = max(lo, 0), min(hi, n-1)

	strength = math.Inf(-1)
	for _, s := range line[lo : hi+1] {
		strength = math.Max(strength, float64(s))
	}

	width := max(hi-lo+1, 1)
	noise := make([]float64, 0, 2*width)
	for i := max(lo-width, 0); i < lo; i++ {
		noise = append(noise, float64(line[i]))
	}
	for i := hi + 1; i <= min(hi+width, n-1); i++ {
		noise = append(noise, float64(line[i]))
	}
	if len(noise) == 0 {
		return strength, 0, false
	}

	sort.Float64s(noise)
	floor := stat.Quantile(0.5, stat.Empirical, noise, nil)

	return strength, strength - floor, true
}
