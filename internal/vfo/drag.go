package vfo

import (
	"fmt"
	"math"
	"slices"
)

// DragKind is what a drag moves.
type DragKind int

const (
	DragOffset DragKind = iota
	DragLowerEdge
	DragUpperEdge
)

// State is the drag state of a Set.
type State int

const (
	Idle State = iota
	DraggingOffset
	DraggingBandwidthEdge
)

func (s State) String() string {
	switch s {
	case DraggingOffset:
		return "dragging offset"
	case DraggingBandwidthEdge:
		return "dragging bandwidth edge"
	default:
		return "idle"
	}
}

// Event notifies a completed user drag with the final, snapped values.
type Event struct {
	VFO       string
	Kind      DragKind
	Offset    float64 // General offset after the drag
	Bandwidth float64
}

type drag struct {
	name        string
	kind        DragKind
	startOffset float64 // General offset when the drag began
	grab        float64 // Pointer offset from the centre frequency when the drag began
	lower       float64 // Band edges when the drag began
	upper       float64
}

// BeginDrag starts dragging a VFO. at is the pointer position expressed as an
// offset from the centre frequency in Hz. A drag already in progress is
// abandoned without notification.
func (s *Set) BeginDrag(name string, kind DragKind, at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vfos[name]
	if !ok {
		return fmt.Errorf("dragging %q: %w", name, ErrNotFound)
	}

	s.drag = &drag{
		name:        name,
		kind:        kind,
		startOffset: v.generalOffset,
		grab:        at,
		lower:       v.lowerOffset,
		upper:       v.upperOffset,
	}
	s.selectLocked(name)
	return nil
}

// DragTo moves the dragged VFO to follow the pointer. Offsets are not snapped
// until the drag ends.
func (s *Set) DragTo(at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag == nil {
		return ErrNoDrag
	}
	v := s.vfos[s.drag.name]

	switch d := s.drag; {
	case d.kind == DragOffset:
		v.SetOffset(d.startOffset + at - d.grab)

	// The anchored edge follows the pointer and the opposite edge stays put.
	case d.kind == DragLowerEdge && v.reference == Lower:
		v.SetBandwidth(math.Max(d.upper-at, 0))
		v.SetOffset(d.upper - v.bandwidth)
	case d.kind == DragUpperEdge && v.reference == Upper:
		v.SetBandwidth(math.Max(at-d.lower, 0))
		v.SetOffset(d.lower + v.bandwidth)

	default:
		v.SetBandwidth(edgeBandwidth(v, at))
	}
	return nil
}

// edgeBandwidth returns the bandwidth that puts a dragged edge at the pointer
// while the reference point stays fixed.
func edgeBandwidth(v *VFO, at float64) float64 {
	switch v.reference {
	case Lower:
		return math.Abs(at - v.lowerOffset)
	case Upper:
		return math.Abs(v.upperOffset - at)
	default:
		return 2 * math.Abs(at-v.centerOffset)
	}
}

// EndDrag finishes the drag: the offset is snapped and exactly one Event is
// delivered to the registered handlers. It reports false when no drag was in
// progress.
func (s *Set) EndDrag() (Event, bool) {
	s.mu.Lock()

	if s.drag == nil {
		s.mu.Unlock()
		return Event{}, false
	}
	d := s.drag
	s.drag = nil

	v := s.vfos[d.name]
	if d.kind == DragOffset {
		v.SetOffset(v.Snap(v.generalOffset))
	}

	ev := Event{
		VFO:       d.name,
		Kind:      d.kind,
		Offset:    v.generalOffset,
		Bandwidth: v.bandwidth,
	}
	handlers := slices.Clone(s.handlers)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return ev, true
}

// DragState returns the current drag state and the dragged VFO.
func (s *Set) DragState() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.drag == nil:
		return Idle, ""
	case s.drag.kind == DragOffset:
		return DraggingOffset, s.drag.name
	default:
		return DraggingBandwidthEdge, s.drag.name
	}
}
