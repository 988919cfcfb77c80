package view

import "math"

// MinViewBandwidth is the narrowest bandwidth reachable through the zoom
// control, in Hz.
const MinViewBandwidth = 1000.0

// FrequencyView converts between absolute frequencies and screen pixels. The
// raw spectrum spans Bandwidth Hz around CenterFrequency; the visible part is
// ViewBandwidth Hz wide, shifted by ViewOffset from the centre.
//
// A FrequencyView is not safe for concurrent use, its owner serializes access.
type FrequencyView struct {
	centerFrequency float64
	wholeBandwidth  float64
	viewBandwidth   float64
	viewOffset      float64

	x     float64 // Screen X of the first data pixel
	width float64 // Data width in pixels

	lowClamped  bool
	highClamped bool
}

// New returns a view covering the whole bandwidth around center.
func New(center, bandwidth float64) *FrequencyView {
	v := &FrequencyView{centerFrequency: center}
	v.SetBandwidth(bandwidth)
	v.SetViewBandwidth(bandwidth)
	return v
}

// SetCenterFrequency sets the tuned frequency in Hz.
func (v *FrequencyView) SetCenterFrequency(f float64) {
	v.centerFrequency = f
}

// CenterFrequency returns the tuned frequency in Hz.
func (v *FrequencyView) CenterFrequency() float64 {
	return v.centerFrequency
}

// SetBandwidth sets the bandwidth of the raw spectrum. The view bandwidth and
// offset are clamped into the new range.
func (v *FrequencyView) SetBandwidth(bw float64) {
	v.wholeBandwidth = math.Max(bw, 0)
	v.SetViewBandwidth(v.viewBandwidth)
}

// Bandwidth returns the bandwidth of the raw spectrum.
func (v *FrequencyView) Bandwidth() float64 {
	return v.wholeBandwidth
}

// SetViewBandwidth sets the visible bandwidth, clamped to [0, Bandwidth].
func (v *FrequencyView) SetViewBandwidth(bw float64) {
	v.viewBandwidth = math.Min(math.Max(bw, 0), v.wholeBandwidth)
	v.SetViewOffset(v.viewOffset)
}

// ViewBandwidth returns the visible bandwidth.
func (v *FrequencyView) ViewBandwidth() float64 {
	return v.viewBandwidth
}

// SetViewOffset moves the view relative to the centre frequency. The offset is
// clamped so that the view stays within the raw spectrum and the clamp flag of
// the edge it reached is raised.
func (v *FrequencyView) SetViewOffset(offset float64) {
	half := v.wholeBandwidth / 2
	viewHalf := v.viewBandwidth / 2

	offset = math.Max(offset, viewHalf-half)
	offset = math.Min(offset, half-viewHalf)

	v.lowClamped = offset <= viewHalf-half
	v.highClamped = offset >= half-viewHalf
	v.viewOffset = offset
}

// ViewOffset returns the offset of the view centre from the centre frequency.
func (v *FrequencyView) ViewOffset() float64 {
	return v.viewOffset
}

// Clamped reports whether the view touches the lower or upper edge of the raw
// spectrum.
func (v *FrequencyView) Clamped() (low, high bool) {
	return v.lowClamped, v.highClamped
}

// SetZoom sets the view bandwidth from a linear zoom control value in [0, 1]:
// 0 is MinViewBandwidth and 1 is the whole bandwidth.
func (v *FrequencyView) SetZoom(z float64) {
	v.SetViewBandwidth(ZoomToBandwidth(z, v.wholeBandwidth))
}

// Zoom returns the zoom control value of the current view bandwidth.
func (v *FrequencyView) Zoom() float64 {
	return BandwidthToZoom(v.viewBandwidth, v.wholeBandwidth)
}

// ZoomToBandwidth maps a zoom value to a view bandwidth. The mapping is
// quadratic so that the control is fine grained near full zoom-in.
func ZoomToBandwidth(z, whole float64) float64 {
	if whole <= MinViewBandwidth {
		return whole
	}
	z = math.Min(math.Max(z, 0), 1)
	return math.Min(MinViewBandwidth+z*z*(whole-MinViewBandwidth), whole)
}

// BandwidthToZoom is the inverse of ZoomToBandwidth.
func BandwidthToZoom(bw, whole float64) float64 {
	if whole <= MinViewBandwidth {
		return 1
	}
	r := (bw - MinViewBandwidth) / (whole - MinViewBandwidth)
	return math.Sqrt(math.Min(math.Max(r, 0), 1))
}

// SetGeometry sets the screen X of the first data pixel and the data width.
func (v *FrequencyView) SetGeometry(x, width int) {
	v.x = float64(x)
	v.width = float64(max(width, 0))
}

// Geometry returns the screen X of the first data pixel and the data width.
func (v *FrequencyView) Geometry() (x, width int) {
	return int(v.x), int(v.width)
}

// LowerFrequency returns the frequency at the left edge of the view.
func (v *FrequencyView) LowerFrequency() float64 {
	return v.centerFrequency + v.viewOffset - v.viewBandwidth/2
}

// UpperFrequency returns the frequency at the right edge of the view.
func (v *FrequencyView) UpperFrequency() float64 {
	return v.centerFrequency + v.viewOffset + v.viewBandwidth/2
}

// FreqToPixel returns the screen X of frequency f. Frequencies outside the
// view map outside the data area.
func (v *FrequencyView) FreqToPixel(f float64) float64 {
	if v.viewBandwidth == 0 {
		return v.x + v.width/2
	}
	return v.x + (f-v.LowerFrequency())/v.viewBandwidth*v.width
}

// PixelToFreq returns the frequency at screen X px.
func (v *FrequencyView) PixelToFreq(px float64) float64 {
	if v.width == 0 {
		return v.centerFrequency + v.viewOffset
	}
	return v.LowerFrequency() + (px-v.x)/v.width*v.viewBandwidth
}

// OffsetToPixel returns the screen X of an offset from the centre frequency.
func (v *FrequencyView) OffsetToPixel(offset float64) float64 {
	return v.FreqToPixel(v.centerFrequency + offset)
}

// HzPerPixel returns the frequency span of one data pixel.
func (v *FrequencyView) HzPerPixel() float64 {
	if v.width == 0 {
		return 0
	}
	return v.viewBandwidth / v.width
}

// RawWindow returns the raw FFT bin range [offset, offset+width) shown by the
// view, for a raw line of rawSize bins spanning the whole bandwidth.
func (v *FrequencyView) RawWindow(rawSize int) (offset, width int) {
	if rawSize <= 0 || v.wholeBandwidth == 0 {
		return 0, 0
	}

	size := v.viewBandwidth / v.wholeBandwidth * float64(rawSize)
	ratio := v.viewOffset / (v.wholeBandwidth / 2)
	start := float64(rawSize)/2*(ratio+1) - size/2

	offset = min(max(int(math.Round(start)), 0), rawSize-1)
	width = min(max(int(math.Round(size)), 1), rawSize-offset)
	return offset, width
}
