package fft

import (
	"sync"
	"testing"
)

func filledLine(size int, value float32) []float32 {
	line := make([]float32, size)
	for i := range line {
		line[i] = value
	}
	return line
}

func TestLineBuffer_LatestAfterWrap(t *testing.T) {
	lb, err := NewLineBuffer(10, 8)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	for i := 0; i < 15; i++ {
		if !lb.Push(filledLine(8, float32(i))) {
			t.Fatalf("Push %d dropped with no reader holding a slot", i)
		}
	}

	line, ok := lb.AcquireLatest()
	if !ok {
		t.Fatal("Expected a line after 15 pushes")
	}
	defer line.Release()

	if line.Seq != 14 {
		t.Errorf("Expected latest sequence 14, got %d", line.Seq)
	}
	if line.Data[0] != 14 {
		t.Errorf("Expected latest line value 14, got %v", line.Data[0])
	}
	if n := lb.Len(); n != 10 {
		t.Errorf("Expected buffer to hold 10 lines, got %d", n)
	}

	lines := lb.AcquireSince(-1, 0)
	if len(lines) != 10 {
		t.Fatalf("Expected 10 acquirable lines, got %d", len(lines))
	}
	for i, l := range lines {
		want := int64(5 + i)
		if l.Seq != want || l.Data[0] != float32(want) {
			t.Errorf("Line %d: expected sequence %d, got %d (value %v)", i, want, l.Seq, l.Data[0])
		}
		l.Release()
	}
}

func TestLineBuffer_EmptyAcquire(t *testing.T) {
	lb, err := NewLineBuffer(4, 4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	if _, ok := lb.AcquireLatest(); ok {
		t.Error("AcquireLatest on empty buffer should report false")
	}
	if lines := lb.AcquireSince(-1, 0); lines != nil {
		t.Errorf("AcquireSince on empty buffer should return nil, got %d lines", len(lines))
	}
	if lb.Latest() != -1 {
		t.Errorf("Expected latest -1, got %d", lb.Latest())
	}
}

func TestLineBuffer_AcquiredSlotIsNotOverwritten(t *testing.T) {
	lb, err := NewLineBuffer(2, 4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	lb.Push(filledLine(4, 1)) // slot 0
	held, _ := lb.AcquireLatest()

	lb.Push(filledLine(4, 2)) // slot 1
	if lb.Push(filledLine(4, 3)) {
		t.Error("Push into an acquired slot should be dropped")
	}
	if held.Data[0] != 1 {
		t.Errorf("Acquired line was overwritten: got %v", held.Data[0])
	}
	if lb.Dropped() != 1 {
		t.Errorf("Expected 1 dropped line, got %d", lb.Dropped())
	}

	held.Release()
	held.Release() // idempotent

	if !lb.Push(filledLine(4, 3)) {
		t.Error("Push should succeed after release")
	}
	latest, _ := lb.AcquireLatest()
	defer latest.Release()
	if latest.Data[0] != 3 || latest.Seq != 2 {
		t.Errorf("Expected line 2 with value 3, got line %d with %v", latest.Seq, latest.Data[0])
	}
}

func TestLineBuffer_ResizeOnLengthChange(t *testing.T) {
	lb, err := NewLineBuffer(3, 4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	lb.Push(filledLine(4, 1))
	old, _ := lb.AcquireLatest()

	lb.Push(filledLine(6, 2))
	if lb.Size() != 6 {
		t.Errorf("Expected size 6 after resize, got %d", lb.Size())
	}
	if lb.Len() != 1 {
		t.Errorf("Expected a single line after resize, got %d", lb.Len())
	}

	// old line still readable and its release does not disturb the new slots
	if old.Width() != 4 || old.Data[0] != 1 {
		t.Errorf("Line acquired before resize changed: width=%d value=%v", old.Width(), old.Data[0])
	}
	old.Release()

	latest, ok := lb.AcquireLatest()
	if !ok {
		t.Fatal("Expected latest line after resize")
	}
	defer latest.Release()
	if latest.Width() != 6 || latest.Seq != 0 {
		t.Errorf("Expected width 6 sequence 0, got width %d sequence %d", latest.Width(), latest.Seq)
	}
}

func TestLineBuffer_AcquireSinceLimit(t *testing.T) {
	lb, _ := NewLineBuffer(8, 2)
	for i := 0; i < 6; i++ {
		lb.Push(filledLine(2, float32(i)))
	}

	lines := lb.AcquireSince(1, 3)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	for i, want := range []int64{3, 4, 5} {
		if lines[i].Seq != want {
			t.Errorf("Line %d: expected sequence %d, got %d", i, want, lines[i].Seq)
		}
		lines[i].Release()
	}

	if lines := lb.AcquireSince(5, 0); lines != nil {
		t.Errorf("Expected no lines newer than the latest, got %d", len(lines))
	}
}

func TestLineBuffer_InvalidParameters(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		size     int
	}{
		{"zero capacity", 0, 16},
		{"zero size", 16, 0},
		{"negative capacity", -1, 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLineBuffer(tc.capacity, tc.size); err == nil {
				t.Error("Expected error for invalid parameters")
			}
		})
	}
}

func TestLineBuffer_ConcurrentProducerConsumer(t *testing.T) {
	lb, _ := NewLineBuffer(4, 64)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			lb.Push(filledLine(64, float32(i)))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			line, ok := lb.AcquireLatest()
			if !ok {
				continue
			}
			first := line.Data[0]
			for _, v := range line.Data {
				if v != first {
					t.Errorf("Torn read in line %d: %v != %v", line.Seq, v, first)
					break
				}
			}
			line.Release()
		}
	}()

	wg.Wait()
}
