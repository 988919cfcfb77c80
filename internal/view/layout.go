package view

import "image"

const (
	leftMargin  = 50 // dB scale labels
	rightMargin = 10
	topMargin   = 9
	scaleHeight = 40 // Frequency scale below the FFT area

	DefaultFFTHeight      = 300
	DefaultBandplanHeight = 20
)

// BandplanPosition places the band-plan strip inside the FFT area.
type BandplanPosition int

const (
	BandplanBottom BandplanPosition = iota
	BandplanTop
)

// LayoutOptions configures how the widget area is split.
type LayoutOptions struct {
	FFTHeight        int  // Height of the spectrum area when the waterfall is shown
	WaterfallVisible bool // When false the spectrum takes the whole widget
	BandplanVisible  bool
	BandplanPosition BandplanPosition
	BandplanHeight   int
}

// Layout holds the screen areas of one widget.
type Layout struct {
	Widget    image.Rectangle
	FFT       image.Rectangle // Instantaneous spectrum curve
	Scale     image.Rectangle // Frequency scale
	Waterfall image.Rectangle // Empty when the waterfall is hidden
	Bandplan  image.Rectangle // Empty when the band plan is hidden
}

// DataWidth returns the number of data pixels per line.
func (l Layout) DataWidth() int {
	return l.FFT.Dx()
}

// WaterfallHeight returns the number of waterfall rows.
func (l Layout) WaterfallHeight() int {
	return l.Waterfall.Dy()
}

// ComputeLayout splits the widget into the spectrum, scale, waterfall and
// band-plan areas. Areas that do not fit are empty rather than negative.
func ComputeLayout(widget image.Rectangle, opts LayoutOptions) Layout {
	widget = widget.Canon()
	l := Layout{Widget: widget}

	fftHeight := opts.FFTHeight
	if fftHeight <= 0 {
		fftHeight = DefaultFFTHeight
	}
	if !opts.WaterfallVisible {
		fftHeight = widget.Dy() - topMargin - scaleHeight
	}

	l.FFT = rect(
		widget.Min.X+leftMargin,
		widget.Min.Y+topMargin,
		widget.Max.X-rightMargin,
		widget.Min.Y+topMargin+max(fftHeight, 0),
	).Intersect(widget)

	if !l.FFT.Empty() {
		l.Scale = rect(l.FFT.Min.X, l.FFT.Max.Y, l.FFT.Max.X, l.FFT.Max.Y+scaleHeight).Intersect(widget)
	}
	if opts.WaterfallVisible && !l.Scale.Empty() {
		l.Waterfall = rect(l.FFT.Min.X, l.Scale.Max.Y, l.FFT.Max.X, widget.Max.Y).Intersect(widget)
	}

	if opts.BandplanVisible {
		h := opts.BandplanHeight
		if h <= 0 {
			h = DefaultBandplanHeight
		}
		switch opts.BandplanPosition {
		case BandplanTop:
			l.Bandplan = rect(l.FFT.Min.X, l.FFT.Min.Y, l.FFT.Max.X, l.FFT.Min.Y+h)
		default:
			l.Bandplan = rect(l.FFT.Min.X, l.FFT.Max.Y-h, l.FFT.Max.X, l.FFT.Max.Y)
		}
		l.Bandplan = l.Bandplan.Intersect(l.FFT)
	}

	return l
}

// rect builds a rectangle without swapping inverted coordinates, so that an
// area squeezed below zero size comes out empty.
func rect(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rectangle{Min: image.Pt(x0, y0), Max: image.Pt(x1, y1)}
}
