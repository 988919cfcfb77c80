package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Resolution is the number of entries in every palette.
const Resolution = 1_000_000

// ErrNoColors is returned when a palette is built from an empty table.
var ErrNoColors = errors.New("palette needs at least one color")

// Palette maps a normalized power level to a color. It is built once from a
// small table of control points and never modified afterwards, so it can be
// shared between goroutines without locking.
type Palette struct {
	colors []color.RGBA
	name   string
}

// New builds a palette by linear interpolation between points, ordered from
// the weakest to the strongest signal.
func New(points []color.Color) (*Palette, error) {
	if len(points) == 0 {
		return nil, ErrNoColors
	}

	stops := make([]colorful.Color, len(points))
	for i, p := range points {
		c, ok := colorful.MakeColor(p)
		if !ok {
			return nil, fmt.Errorf("color %d has zero alpha", i)
		}
		stops[i] = c
	}
	return build(stops), nil
}

// FromRGB builds a palette from a table of RGB triples in the 0..255 range.
func FromRGB(table [][3]float32) (*Palette, error) {
	if len(table) == 0 {
		return nil, ErrNoColors
	}

	stops := make([]colorful.Color, len(table))
	for i, rgb := range table {
		stops[i] = colorful.Color{
			R: clamp01(float64(rgb[0]) / 255),
			G: clamp01(float64(rgb[1]) / 255),
			B: clamp01(float64(rgb[2]) / 255),
		}
	}
	return build(stops), nil
}

func build(stops []colorful.Color) *Palette {
	p := &Palette{colors: make([]color.RGBA, Resolution)}

	if len(stops) == 1 {
		r, g, b := stops[0].RGB255()
		for i := range p.colors {
			p.colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
		}
		return p
	}

	segments := float64(len(stops) - 1)
	for i := range p.colors {
		pos := float64(i) / float64(Resolution-1) * segments

		seg := int(pos)
		if seg >= len(stops)-1 {
			seg = len(stops) - 2
		}

		c := stops[seg].BlendRgb(stops[seg+1], pos-float64(seg)).Clamped()
		r, g, b := c.RGB255()
		p.colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p
}

// Name returns the theme name, empty for custom palettes.
func (p *Palette) Name() string {
	return p.name
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return len(p.colors)
}

// At returns entry i, clamped to the palette bounds.
func (p *Palette) At(i int) color.RGBA {
	return p.colors[min(max(i, 0), len(p.colors)-1)]
}

// Index returns the palette entry for v within [lo, hi]. Values outside the
// range are clamped to the first or last entry. A degenerate range maps
// everything to the first entry.
func Index(v, lo, hi float32) int {
	span := hi - lo
	if !(span > 0) || math.IsNaN(float64(v)) {
		return 0
	}

	idx := int(float64(v-lo) / float64(span) * (Resolution - 1))
	return min(max(idx, 0), Resolution-1)
}

// Map returns the color for v within [lo, hi].
func (p *Palette) Map(v, lo, hi float32) color.RGBA {
	return p.colors[Index(v, lo, hi)]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
