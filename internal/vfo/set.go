package vfo

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	"github.com/roman-kulish/waterfall/internal/view"
)

var (
	ErrExists   = errors.New("vfo already exists")
	ErrNotFound = errors.New("vfo not found")
	ErrNoDrag   = errors.New("no drag in progress")
)

// Hit identifies the part of a VFO under a screen point.
type Hit int

const (
	HitNone Hit = iota
	HitBody
	HitLowerEdge
	HitUpperEdge
)

// Set is a collection of named VFOs with at most one selected. Names are
// unique and case-sensitive. A Set is safe for concurrent use.
type Set struct {
	mu sync.Mutex

	vfos            map[string]*VFO
	selected        string
	selectedChanged bool
	selectedSNR     float64

	drag     *drag
	handlers []func(Event)
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		vfos:        make(map[string]*VFO),
		selectedSNR: math.NaN(),
	}
}

// Create adds a VFO.
func (s *Set) Create(name string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vfos[name]; ok {
		return fmt.Errorf("creating %q: %w", name, ErrExists)
	}
	s.vfos[name] = New(name, opts)
	return nil
}

// Delete removes a VFO. Deleting the selected VFO clears the selection.
func (s *Set) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vfos[name]; !ok {
		return fmt.Errorf("deleting %q: %w", name, ErrNotFound)
	}
	delete(s.vfos, name)

	if s.selected == name {
		s.selected = ""
		s.selectedChanged = true
		s.selectedSNR = math.NaN()
	}
	if s.drag != nil && s.drag.name == name {
		s.drag = nil
	}
	return nil
}

// Get returns a copy of a VFO.
func (s *Set) Get(name string) (VFO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vfos[name]
	if !ok {
		return VFO{}, false
	}
	return *v, true
}

// Names returns the VFO names in sorted order.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.names()
}

func (s *Set) names() []string {
	names := make([]string, 0, len(s.vfos))
	for name := range s.vfos {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of VFOs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.vfos)
}

func (s *Set) with(name string, fn func(v *VFO)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vfos[name]
	if !ok {
		return fmt.Errorf("vfo %q: %w", name, ErrNotFound)
	}
	fn(v)
	return nil
}

// SetOffset moves the reference point of a VFO.
func (s *Set) SetOffset(name string, offset float64) error {
	return s.with(name, func(v *VFO) { v.SetOffset(offset) })
}

// SetCenterOffset moves the centre of a VFO.
func (s *Set) SetCenterOffset(name string, offset float64) error {
	return s.with(name, func(v *VFO) { v.SetCenterOffset(offset) })
}

// SetBandwidth changes the bandwidth of a VFO.
func (s *Set) SetBandwidth(name string, bw float64) error {
	return s.with(name, func(v *VFO) { v.SetBandwidth(bw) })
}

// SetReference changes the reference point of a VFO.
func (s *Set) SetReference(name string, ref Reference) error {
	return s.with(name, func(v *VFO) { v.SetReference(ref) })
}

// SetSnapInterval sets the drag snap grid of a VFO.
func (s *Set) SetSnapInterval(name string, interval float64) error {
	return s.with(name, func(v *VFO) { v.SetSnapInterval(interval) })
}

// SetNotchOffset places the notch of a VFO.
func (s *Set) SetNotchOffset(name string, offset float64) error {
	return s.with(name, func(v *VFO) { v.SetNotchOffset(offset) })
}

// SetNotchVisible shows or hides the notch of a VFO.
func (s *Set) SetNotchVisible(name string, visible bool) error {
	return s.with(name, func(v *VFO) { v.SetNotchVisible(visible) })
}

// SetBandwidthLimits sets the bandwidth limits of a VFO.
func (s *Set) SetBandwidthLimits(name string, minBW, maxBW float64, locked bool) error {
	return s.with(name, func(v *VFO) { v.SetBandwidthLimits(minBW, maxBW, locked) })
}

// TakeChanges returns and clears the change flags of a VFO.
func (s *Set) TakeChanges(name string) (Changes, error) {
	var c Changes
	err := s.with(name, func(v *VFO) {
		c = v.Changes()
		v.ClearChanges()
	})
	return c, err
}

// Select makes name the selected VFO.
func (s *Set) Select(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vfos[name]; !ok {
		return fmt.Errorf("selecting %q: %w", name, ErrNotFound)
	}
	s.selectLocked(name)
	return nil
}

func (s *Set) selectLocked(name string) {
	if s.selected == name {
		return
	}
	s.selected = name
	s.selectedChanged = true
	s.selectedSNR = math.NaN()
}

// SelectFirst selects the first VFO by name when none is selected.
func (s *Set) SelectFirst() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vfos[s.selected]; ok {
		return
	}
	if names := s.names(); len(names) > 0 {
		s.selectLocked(names[0])
	}
}

// Selected returns the name of the selected VFO, empty when none is.
func (s *Set) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selected
}

// TakeSelectedChanged reports whether the selection changed since the last
// call and clears the flag.
func (s *Set) TakeSelectedChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.selectedChanged
	s.selectedChanged = false
	return changed
}

// UpdateSignal measures the selected VFO on a raw FFT line and stores the SNR.
func (s *Set) UpdateSignal(line []float32, wholeBandwidth float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vfos[s.selected]
	if !ok {
		s.selectedSNR = math.NaN()
		return
	}

	_, snr, ok := SignalInfo(line, wholeBandwidth, v)
	if !ok {
		snr = math.NaN()
	}
	s.selectedSNR = snr
}

// SelectedSNR returns the SNR of the selected VFO in dB, NaN when unknown.
func (s *Set) SelectedSNR() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedSNR
}

// UpdateGeometry recomputes the screen geometry of every VFO.
func (s *Set) UpdateGeometry(fv *view.FrequencyView, l view.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.vfos {
		v.Update(fv, l)
	}
}

// Geometries returns the geometry of every VFO by name.
func (s *Set) Geometries() map[string]Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()

	geoms := make(map[string]Geometry, len(s.vfos))
	for name, v := range s.vfos {
		geoms[name] = v.geom
	}
	return geoms
}

// HitTest returns the VFO and part under pt. The selected VFO wins over the
// others, and bandwidth edges win over band bodies.
func (s *Set) HitTest(pt image.Point) (string, Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.names()
	if i := slices.Index(order, s.selected); i > 0 {
		order = append([]string{s.selected}, slices.Delete(order, i, i+1)...)
	}

	for _, name := range order {
		g := s.vfos[name].geom
		if !g.Visible {
			continue
		}
		switch {
		case pt.In(g.LowerEdge) || pt.In(g.WaterfallLowerEdge):
			return name, HitLowerEdge
		case pt.In(g.UpperEdge) || pt.In(g.WaterfallUpperEdge):
			return name, HitUpperEdge
		}
	}
	for _, name := range order {
		g := s.vfos[name].geom
		if pt.In(g.Rect) || pt.In(g.WaterfallRect) {
			return name, HitBody
		}
	}
	return "", HitNone
}

// OnUserChange registers a handler called once per completed drag.
func (s *Set) OnUserChange(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, fn)
}
