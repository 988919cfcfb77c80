package source

import (
	"cmp"
	"slices"
)

// sweep joins the hops of a frequency sweep into one line. Sweep tools report
// a wide range as several narrower rows, possibly out of frequency order; the
// sweep is complete when a hop starts at a frequency already seen.
type sweep struct {
	hops []Line
}

// add appends a hop and returns the previous sweep when the hop begins a new
// one.
func (s *sweep) add(hop Line) (Line, bool) {
	var done Line
	var ok bool

	if slices.ContainsFunc(s.hops, func(l Line) bool { return l.FrequencyStart == hop.FrequencyStart }) {
		done, ok = s.flush()
	}
	s.hops = append(s.hops, hop)
	return done, ok
}

// flush returns the pending hops as one line.
func (s *sweep) flush() (Line, bool) {
	if len(s.hops) == 0 {
		return Line{}, false
	}

	slices.SortStableFunc(s.hops, func(a, b Line) int {
		return cmp.Compare(a.FrequencyStart, b.FrequencyStart)
	})

	n := 0
	for _, h := range s.hops {
		n += len(h.Power)
	}

	line := s.hops[0]
	line.Power = make([]float32, 0, n)
	for _, h := range s.hops {
		line.Power = append(line.Power, h.Power...)
		line.FrequencyEnd = h.FrequencyEnd
		if h.Timestamp.Before(line.Timestamp) {
			line.Timestamp = h.Timestamp
		}
	}

	s.hops = s.hops[:0]
	return line, true
}
