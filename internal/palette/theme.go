package palette

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme represents a predefined color scheme for power visualization.
// Each theme is optimized for different visualization needs:
// - DefaultTheme: Dark blue noise floor through white to deep red peaks
// - ClassicTheme: Traditional spectrum display (blue to red)
// - GrayscaleTheme: Monochrome visualization
// - JungleTheme: Nature-inspired colors for better contrast
// - ThermalTheme: Heat map visualization
// - MarineTheme: Water-depth inspired colors
// - EnhancedTheme: Blue to red with a boosted mid range
type Theme string

const (
	DefaultTheme   Theme = "default"   // Dark blue to white to red
	ClassicTheme   Theme = "classic"   // Blue to red transition
	GrayscaleTheme Theme = "grayscale" // Black to white transition
	JungleTheme    Theme = "jungle"    // Dark green to yellow transition
	ThermalTheme   Theme = "thermal"   // Black to red to yellow to white
	MarineTheme    Theme = "marine"    // Deep blue to cyan to white
	EnhancedTheme  Theme = "enhanced"  // Blue to cyan to yellow to red

	themeStops = 64 // Control points sampled from generated themes
)

// Themes lists every built-in theme.
var Themes = []Theme{
	DefaultTheme,
	ClassicTheme,
	GrayscaleTheme,
	JungleTheme,
	ThermalTheme,
	MarineTheme,
	EnhancedTheme,
}

var defaultStops = []string{
	"#000020", "#000030", "#000050", "#000091", "#1e90ff", "#ffffff", "#ffff00",
	"#fe6d16", "#ff0000", "#c60000", "#9f0000", "#750000", "#4a0000",
}

// ParseTheme validates a theme name.
func ParseTheme(name string) (Theme, error) {
	for _, t := range Themes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown color theme: %q", name)
}

// FromTheme builds the palette of a built-in theme. Unknown names fall back to
// the default theme.
func FromTheme(theme Theme) *Palette {
	var stops []colorful.Color

	if fn := themeFunc(theme); fn != nil {
		stops = make([]colorful.Color, themeStops)
		for i := range stops {
			stops[i] = fn(float64(i) / float64(themeStops-1)).Clamped()
		}
	} else {
		theme = DefaultTheme
		stops = make([]colorful.Color, len(defaultStops))
		for i, hex := range defaultStops {
			stops[i], _ = colorful.Hex(hex)
		}
	}

	p := build(stops)
	p.name = string(theme)
	return p
}

// themeFunc returns the generator of a computed theme, nil for table themes.
func themeFunc(theme Theme) func(float64) colorful.Color {
	switch theme {
	case ClassicTheme:
		return func(power float64) colorful.Color {
			return colorful.Hsv(240-(power*240), 0.9+(power*0.1), math.Pow(power, 0.7))
		}

	case GrayscaleTheme:
		return func(power float64) colorful.Color {
			v := math.Pow(power, 0.7)
			return colorful.Color{R: v, G: v, B: v}
		}

	case JungleTheme:
		return func(power float64) colorful.Color {
			return colorful.Hsv(120-(power*60), 1.0, 0.3+(math.Pow(power, 0.6)*0.7))
		}

	case ThermalTheme:
		return func(power float64) colorful.Color {
			if power < 0.33 {
				return colorful.Color{R: power * 3}
			}
			if power < 0.66 {
				return colorful.Color{R: 1, G: (power - 0.33) * 3}
			}
			return colorful.Color{R: 1, G: 1, B: (power - 0.66) * 3}
		}

	case MarineTheme:
		return func(power float64) colorful.Color {
			return colorful.Hsv(240-(power*60), 1.0-(power*0.8), 0.3+(math.Pow(power, 0.6)*0.7))
		}

	case EnhancedTheme:
		return func(power float64) colorful.Color {
			enhanced := math.Pow(power, 0.7)

			switch {
			case power < 0.25:
				return colorful.Hsv(240, 1.0, math.Min(1.0, enhanced*4))
			case power < 0.5:
				return colorful.Hsv(240-((power-0.25)*240), 1.0, math.Min(1.0, enhanced*1.5))
			case power < 0.75:
				p := (power - 0.5) * 4
				return colorful.Hsv(180-(p*120), 1.0, math.Min(1.0, enhanced*1.5))
			default:
				p := (power - 0.75) * 4
				return colorful.Hsv(60-(p*60), 1.0, 1.0)
			}
		}

	default:
		return nil
	}
}
