package waterfall

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/waterfall/internal/palette"
)

func grayPalette(t *testing.T) *palette.Palette {
	t.Helper()

	p, err := palette.New([]color.Color{color.Black, color.White})
	require.NoError(t, err)
	return p
}

func TestAccumulator_AppendNewestOnTop(t *testing.T) {
	a := NewAccumulator(2, 3, grayPalette(t))
	a.SetRange(0, 1)

	a.Append([]float32{0, 0})
	a.Append([]float32{1, 1})

	img := a.Image()
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0), "newest row")
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 1), "previous row")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 2), "unused row")
	assert.Equal(t, 2, a.Len())
}

func TestAccumulator_EvictsOldest(t *testing.T) {
	a := NewAccumulator(1, 3, grayPalette(t))
	for i := 0; i < 5; i++ {
		a.Append([]float32{float32(i)})
	}

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, [][]float32{{4}, {3}, {2}}, a.Rows(10))
}

func TestAccumulator_WidthChangeResets(t *testing.T) {
	a := NewAccumulator(2, 3, grayPalette(t))
	a.Append([]float32{1, 1})
	a.Append([]float32{1, 1, 1})

	w, h := a.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, 1, a.Len())
}

func TestAccumulator_RangeChange(t *testing.T) {
	testCases := []struct {
		name       string
		fullUpdate bool
		want       color.RGBA
	}{
		{"incremental keeps old colors", false, color.RGBA{255, 255, 255, 255}},
		{"full update recolors history", true, color.RGBA{0, 0, 0, 255}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAccumulator(1, 2, grayPalette(t))
			a.SetFullUpdate(tc.fullUpdate)
			a.SetRange(0, 1)
			a.Append([]float32{1})

			a.SetRange(10, 20)
			assert.Equal(t, tc.want, a.Image().RGBAAt(0, 0))
		})
	}
}

func TestAccumulator_RowsSince(t *testing.T) {
	a := NewAccumulator(1, 4, grayPalette(t))
	m := a.Mark()

	a.Append([]float32{1})
	a.Append([]float32{2})

	rows, full := a.RowsSince(m)
	assert.Equal(t, 2, rows)
	assert.False(t, full)

	m = a.Mark()
	rows, full = a.RowsSince(m)
	assert.Equal(t, 0, rows)
	assert.False(t, full)

	a.Recolor()
	rows, full = a.RowsSince(m)
	assert.Equal(t, 4, rows)
	assert.True(t, full)

	m = a.Mark()
	for i := 0; i < 6; i++ {
		a.Append([]float32{0})
	}
	_, full = a.RowsSince(m)
	assert.True(t, full, "more rows than the bitmap holds")
}

func TestAccumulator_Hold(t *testing.T) {
	a := NewAccumulator(2, 1, nil)
	a.SetHoldSpeed(0.5)
	a.SetSmoothing(true)
	a.SetHold(true)

	assert.True(t, a.Hold())
	assert.False(t, a.Smoothing(), "hold disables smoothing")

	a.UpdateSpectrum([]float32{10, 0})
	assert.Equal(t, []float32{5, 0}, a.UpdateSpectrum([]float32{0, 0}))
	assert.Equal(t, []float32{20, 0}, a.UpdateSpectrum([]float32{20, 0}), "rises instantly")
	assert.Equal(t, []float32{15, 0}, a.UpdateSpectrum([]float32{10, 0}))
}

func TestAccumulator_Smoothing(t *testing.T) {
	a := NewAccumulator(1, 1, nil)
	a.SetHold(true)
	a.SetSmoothingSpeed(0.25)
	a.SetSmoothing(true)

	assert.False(t, a.Hold(), "smoothing disables hold")

	a.UpdateSpectrum([]float32{0})
	assert.Equal(t, []float32{2}, a.UpdateSpectrum([]float32{8}))
	assert.Equal(t, []float32{3.5}, a.UpdateSpectrum([]float32{8}))

	a.SetSmoothing(false)
	assert.Equal(t, []float32{-1}, a.UpdateSpectrum([]float32{-1}))
}

func TestAccumulator_SpeedClamp(t *testing.T) {
	a := NewAccumulator(1, 1, nil)

	a.SetHoldSpeed(3)
	assert.Equal(t, float32(1), a.HoldSpeed())

	a.SetSmoothingSpeed(-1)
	assert.Equal(t, float32(0), a.SmoothingSpeed())
}

func TestAccumulator_Autorange(t *testing.T) {
	a := NewAccumulator(3, 4, nil)

	_, _, ok := a.Autorange(2)
	assert.False(t, ok, "no rows yet")

	a.Append([]float32{-100, -50, -90})
	a.Append([]float32{-95, float32(math.NaN()), -40})
	a.Append([]float32{-80, -70, -75})

	lo, hi, ok := a.Autorange(2)
	require.True(t, ok)
	assert.Equal(t, float32(-95), lo)
	assert.Equal(t, float32(-40), hi)

	lo, hi, ok = a.Autorange(10)
	require.True(t, ok)
	assert.Equal(t, float32(-100), lo)
	assert.Equal(t, float32(-40), hi)

	a.UpdateSpectrum([]float32{-60, -30, float32(math.Inf(1))})
	lo, hi, ok = a.Autorange(0)
	require.True(t, ok)
	assert.Equal(t, float32(-60), lo)
	assert.Equal(t, float32(-30), hi)
}

func TestAccumulator_AutorangePercentile(t *testing.T) {
	a := NewAccumulator(100, 4, nil)

	assert.Equal(t, DefaultLevels(), a.AutorangePercentile(4), "too few samples")

	line := make([]float32, 100)
	for i := range line {
		line[i] = -80
	}
	a.Append(line)

	levels := a.AutorangePercentile(4)
	assert.Equal(t, float32(-98), levels.Min)
	assert.Equal(t, float32(-62), levels.Max)
	assert.Equal(t, float32(-80), levels.Mean)
}
