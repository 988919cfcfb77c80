package vfo

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// Reference selects which point of the band the general offset anchors. The
// zero value anchors the centre.
type Reference int

const (
	Center Reference = iota
	Lower
	Upper
)

func (r Reference) String() string {
	switch r {
	case Lower:
		return "lower"
	case Center:
		return "center"
	case Upper:
		return "upper"
	default:
		return fmt.Sprintf("Reference(%d)", int(r))
	}
}

// ParseReference converts a reference name to a Reference.
func ParseReference(s string) (Reference, error) {
	switch strings.ToLower(s) {
	case "lower":
		return Lower, nil
	case "center", "centre", "":
		return Center, nil
	case "upper":
		return Upper, nil
	default:
		return 0, fmt.Errorf("unknown VFO reference: %q", s)
	}
}

// DefaultSnapInterval is the offset grid applied to user drags, in Hz.
const DefaultSnapInterval = 5000

// Options holds the initial state of a VFO.
type Options struct {
	Reference       Reference
	Offset          float64 // General offset from the centre frequency, Hz
	Bandwidth       float64
	MinBandwidth    float64
	MaxBandwidth    float64
	BandwidthLocked bool
	SnapInterval    float64 // Zero disables snapping
	Color           color.RGBA
}

// Changes is a set of VFO properties modified since the flags were last
// cleared.
type Changes uint8

const (
	CenterOffsetChanged Changes = 1 << iota
	LowerOffsetChanged
	UpperOffsetChanged
	BandwidthChanged
)

// VFO is a tunable band within the spectrum. All offsets are relative to the
// centre frequency. The general offset is the user facing position; the band
// edges and centre are derived from it and the bandwidth according to the
// reference point.
type VFO struct {
	Name  string
	Color color.RGBA

	generalOffset float64
	centerOffset  float64
	lowerOffset   float64
	upperOffset   float64
	bandwidth     float64
	reference     Reference

	snapInterval float64
	notchOffset  float64
	notchVisible bool

	minBandwidth    float64
	maxBandwidth    float64
	bandwidthLocked bool

	changes Changes
	geom    Geometry
}

// New creates a VFO from options.
func New(name string, opts Options) *VFO {
	v := &VFO{
		Name:            name,
		Color:           opts.Color,
		reference:       opts.Reference,
		snapInterval:    math.Max(opts.SnapInterval, 0),
		minBandwidth:    opts.MinBandwidth,
		maxBandwidth:    opts.MaxBandwidth,
		bandwidthLocked: opts.BandwidthLocked,
	}
	if v.Color == (color.RGBA{}) {
		v.Color = color.RGBA{R: 255, G: 255, B: 255, A: 50}
	}
	if v.reference < Center || v.reference > Upper {
		v.reference = Center
	}

	v.bandwidth = v.clampBandwidth(math.Max(opts.Bandwidth, 0))
	v.generalOffset = opts.Offset
	v.recompute()
	return v
}

// recompute derives the centre and edge offsets from the general offset,
// bandwidth and reference.
func (v *VFO) recompute() {
	switch v.reference {
	case Lower:
		v.lowerOffset = v.generalOffset
		v.centerOffset = v.generalOffset + v.bandwidth/2
		v.upperOffset = v.generalOffset + v.bandwidth
	case Upper:
		v.upperOffset = v.generalOffset
		v.centerOffset = v.generalOffset - v.bandwidth/2
		v.lowerOffset = v.generalOffset - v.bandwidth
	default:
		v.centerOffset = v.generalOffset
		v.lowerOffset = v.generalOffset - v.bandwidth/2
		v.upperOffset = v.generalOffset + v.bandwidth/2
	}
	v.changes |= CenterOffsetChanged | LowerOffsetChanged | UpperOffsetChanged
}

// anchor returns the offset of the reference point.
func (v *VFO) anchor(ref Reference) float64 {
	switch ref {
	case Lower:
		return v.lowerOffset
	case Upper:
		return v.upperOffset
	default:
		return v.centerOffset
	}
}

// SetOffset moves the reference point to offset.
func (v *VFO) SetOffset(offset float64) {
	v.generalOffset = offset
	v.recompute()
}

// SetCenterOffset moves the band so that its centre is at offset.
func (v *VFO) SetCenterOffset(offset float64) {
	switch v.reference {
	case Lower:
		v.SetOffset(offset - v.bandwidth/2)
	case Upper:
		v.SetOffset(offset + v.bandwidth/2)
	default:
		v.SetOffset(offset)
	}
}

// SetBandwidth changes the bandwidth around the reference point. Negative
// values are ignored; a locked VFO clamps into [MinBandwidth, MaxBandwidth].
func (v *VFO) SetBandwidth(bw float64) {
	if bw < 0 || math.IsNaN(bw) {
		return
	}
	bw = v.clampBandwidth(bw)
	if bw == v.bandwidth {
		return
	}

	v.bandwidth = bw
	v.recompute()
	v.changes |= BandwidthChanged
}

func (v *VFO) clampBandwidth(bw float64) float64 {
	if !v.bandwidthLocked {
		return bw
	}
	if v.maxBandwidth > 0 {
		bw = math.Min(bw, v.maxBandwidth)
	}
	return math.Max(bw, v.minBandwidth)
}

// SetReference changes the reference point. The band does not move: the
// general offset is re-anchored to the new reference point.
func (v *VFO) SetReference(ref Reference) {
	if ref < Center || ref > Upper || ref == v.reference {
		return
	}
	v.reference = ref
	v.generalOffset = v.anchor(ref)
	v.recompute()
}

// SetSnapInterval sets the offset grid of user drags. Zero disables snapping.
func (v *VFO) SetSnapInterval(interval float64) {
	v.snapInterval = math.Max(interval, 0)
}

// SetNotchOffset places the notch relative to the VFO centre.
func (v *VFO) SetNotchOffset(offset float64) {
	v.notchOffset = offset
}

// SetNotchVisible shows or hides the notch marker.
func (v *VFO) SetNotchVisible(visible bool) {
	v.notchVisible = visible
}

// SetBandwidthLimits sets the bandwidth range enforced while locked.
func (v *VFO) SetBandwidthLimits(minBW, maxBW float64, locked bool) {
	v.minBandwidth, v.maxBandwidth, v.bandwidthLocked = minBW, maxBW, locked
	v.SetBandwidth(v.bandwidth)
}

// Snap rounds offset to the nearest multiple of the snap interval.
func (v *VFO) Snap(offset float64) float64 {
	if v.snapInterval <= 0 {
		return offset
	}
	return math.Round(offset/v.snapInterval) * v.snapInterval
}

// Offset returns the general offset, the position of the reference point.
func (v *VFO) Offset() float64 {
	return v.generalOffset
}

// CenterOffset returns the offset of the band centre.
func (v *VFO) CenterOffset() float64 {
	return v.centerOffset
}

// LowerOffset returns the offset of the lower band edge.
func (v *VFO) LowerOffset() float64 {
	return v.lowerOffset
}

// UpperOffset returns the offset of the upper band edge.
func (v *VFO) UpperOffset() float64 {
	return v.upperOffset
}

// Bandwidth returns the bandwidth in Hz.
func (v *VFO) Bandwidth() float64 {
	return v.bandwidth
}

func (v *VFO) Reference() Reference {
	return v.reference
}

func (v *VFO) SnapInterval() float64 {
	return v.snapInterval
}

func (v *VFO) NotchOffset() float64 {
	return v.notchOffset
}

func (v *VFO) NotchVisible() bool {
	return v.notchVisible
}

// BandwidthLocked reports whether the bandwidth is clamped to its limits.
func (v *VFO) BandwidthLocked() bool {
	return v.bandwidthLocked
}

func (v *VFO) MinBandwidth() float64 {
	return v.minBandwidth
}

func (v *VFO) MaxBandwidth() float64 {
	return v.maxBandwidth
}

// Geometry returns the screen geometry computed by the last Update.
func (v *VFO) Geometry() Geometry {
	return v.geom
}

// Changes returns the properties modified since the last ClearChanges.
func (v *VFO) Changes() Changes {
	return v.changes
}

func (v *VFO) ClearChanges() {
	v.changes = 0
}

// Has reports whether flag is set.
func (c Changes) Has(flag Changes) bool {
	return c&flag != 0
}
