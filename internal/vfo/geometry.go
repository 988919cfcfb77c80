package vfo

import (
	"image"
	"math"

	"github.com/roman-kulish/waterfall/internal/view"
)

const (
	edgeSelectWidth = 2  // Half width of the bandwidth edge grab areas
	notchHalfWidth  = 15 // Half width of the notch marker
)

// Geometry holds the screen areas of one VFO for the current view.
type Geometry struct {
	Visible     bool // Some part of the band is inside the view
	LineVisible bool // The reference line is inside the view

	Rect          image.Rectangle // Band in the FFT area
	WaterfallRect image.Rectangle // Band in the waterfall area
	Line          image.Rectangle // Reference line in the FFT area, one pixel wide
	WaterfallLine image.Rectangle

	LowerEdge          image.Rectangle // Grab areas of the bandwidth edges
	UpperEdge          image.Rectangle
	WaterfallLowerEdge image.Rectangle
	WaterfallUpperEdge image.Rectangle

	Notch image.Rectangle // Empty unless the notch is visible

	LeftClamped  bool // The lower edge is left of the view
	RightClamped bool // The upper edge is right of the view
}

// Update recomputes the screen geometry from the view and layout.
func (v *VFO) Update(fv *view.FrequencyView, l view.Layout) {
	var g Geometry

	px := func(offset float64) int {
		return int(math.Round(fv.OffsetToPixel(offset))) - l.FFT.Min.X
	}

	dataWidth := l.DataWidth()
	center := px(v.centerOffset)
	left := px(v.lowerOffset)
	right := px(v.upperOffset)
	notch := px(v.centerOffset + v.notchOffset)

	line := center
	switch v.reference {
	case Lower:
		line = left
	case Upper:
		line = right
	}
	g.LineVisible = line >= 0 && line < dataWidth
	g.Visible = right >= 0 && left < dataWidth && dataWidth > 0

	g.LeftClamped = left < 0
	g.RightClamped = right >= dataWidth
	left = min(max(left, 0), dataWidth)
	right = min(max(right, 0), max(dataWidth-1, 0))

	fft, wf := l.FFT, l.Waterfall
	x0, x1 := fft.Min.X+left, fft.Min.X+right+1

	if g.Visible {
		g.Rect = image.Rect(x0, fft.Min.Y+1, x1, fft.Max.Y)
		g.LowerEdge = image.Rect(x0-edgeSelectWidth, g.Rect.Min.Y, x0+edgeSelectWidth, g.Rect.Max.Y)
		g.UpperEdge = image.Rect(x1-edgeSelectWidth, g.Rect.Min.Y, x1+edgeSelectWidth, g.Rect.Max.Y)

		if !wf.Empty() {
			g.WaterfallRect = image.Rect(x0, wf.Min.Y, x1, wf.Max.Y)
			g.WaterfallLowerEdge = image.Rect(x0-edgeSelectWidth, wf.Min.Y, x0+edgeSelectWidth, wf.Max.Y)
			g.WaterfallUpperEdge = image.Rect(x1-edgeSelectWidth, wf.Min.Y, x1+edgeSelectWidth, wf.Max.Y)
		}
	}

	if g.LineVisible {
		lx := fft.Min.X + line
		g.Line = image.Rect(lx, fft.Min.Y, lx+1, fft.Max.Y)
		if !wf.Empty() {
			g.WaterfallLine = image.Rect(lx, wf.Min.Y, lx+1, wf.Max.Y)
		}
	}

	if v.notchVisible {
		nx := fft.Min.X + notch
		g.Notch = image.Rect(nx-notchHalfWidth, fft.Min.Y, nx+notchHalfWidth, fft.Max.Y).Intersect(fft)
	}

	v.geom = g
}
