package fft

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Line is a read handle on one ring slot. The slot cannot be overwritten by the
// producer until Release is called.
type Line struct {
	Data []float32 // Power samples of the line, len(Data) == raw FFT size
	Seq  int64     // Sequence number of the line, 0-based count of pushes

	buf      *LineBuffer
	slot     int
	gen      uint64
	released atomic.Bool
}

// Width returns the number of samples in the line.
func (l *Line) Width() int {
	return len(l.Data)
}

// Release gives the slot back to the producer. It is safe to call more than once.
func (l *Line) Release() {
	if l == nil || l.buf == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.buf.release(l.slot, l.gen)
}

// LineBuffer implements a fixed-capacity ring of raw FFT lines shared between a
// single producer and any number of readers. Readers always see either a fully
// written slot or nothing: a slot is published by advancing the write cursor
// only after the copy completes, and a slot under acquire is never overwritten.
// When the producer catches up with an acquired slot the new line is dropped,
// the buffer favours recency over completeness and never blocks the producer.
type LineBuffer struct {
	mu sync.Mutex

	capacity int // Number of slots (fftLines)
	size     int // Samples per line (rawFFTSize)

	data []float32 // capacity*size samples, slot i at [i*size:(i+1)*size]
	refs []int32   // Outstanding acquires per slot
	gen  uint64    // Incremented on every reallocation

	written atomic.Int64 // Number of completed pushes since the last reallocation
	dropped atomic.Int64 // Lines dropped because their slot was acquired
}

// NewLineBuffer creates a ring of capacity lines of size samples each.
//
// Parameters:
//   - capacity: number of lines kept by the ring
//   - size: number of samples per raw FFT line
//
// Returns an error if parameters are invalid.
func NewLineBuffer(capacity, size int) (*LineBuffer, error) {
	if capacity <= 0 || size <= 0 {
		return nil, fmt.Errorf("invalid buffer parameters: capacity=%d, size=%d", capacity, size)
	}

	lb := &LineBuffer{}
	lb.allocate(capacity, size)
	return lb, nil
}

func (lb *LineBuffer) allocate(capacity, size int) {
	lb.capacity = capacity
	lb.size = size
	lb.data = make([]float32, capacity*size)
	lb.refs = make([]int32, capacity)
	lb.gen++
	lb.written.Store(0)
}

// Push copies a completed line into the next slot and advances the write
// cursor. A line whose length differs from the configured size resizes the
// buffer first, dropping all previous lines. Push reports false when the line
// was dropped because the target slot is held by a reader.
func (lb *LineBuffer) Push(samples []float32) bool {
	if len(samples) == 0 {
		return false
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(samples) != lb.size {
		lb.allocate(lb.capacity, len(samples))
	}

	written := lb.written.Load()
	slot := int(written % int64(lb.capacity))
	if lb.refs[slot] > 0 {
		lb.dropped.Add(1)
		return false
	}

	copy(lb.data[slot*lb.size:(slot+1)*lb.size], samples)
	lb.written.Store(written + 1) // publish
	return true
}

// AcquireLatest returns the most recently completed line. The caller must call
// Release on the returned line once done with it. It never blocks on the
// producer and reports false when no line has been pushed yet.
func (lb *LineBuffer) AcquireLatest() (*Line, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	written := lb.written.Load()
	if written == 0 {
		return nil, false
	}
	return lb.acquire(written - 1), true
}

// AcquireSince acquires every line newer than seq that is still held by the
// ring, oldest first. At most limit lines are returned; when more are
// available the newest ones win. A non-positive limit means no limit.
func (lb *LineBuffer) AcquireSince(seq int64, limit int) []*Line {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	written := lb.written.Load()
	if written == 0 {
		return nil
	}

	first := max(seq+1, written-int64(lb.capacity), 0)
	if limit > 0 {
		first = max(first, written-int64(limit))
	}
	if first >= written {
		return nil
	}

	lines := make([]*Line, 0, written-first)
	for s := first; s < written; s++ {
		lines = append(lines, lb.acquire(s))
	}
	return lines
}

func (lb *LineBuffer) acquire(seq int64) *Line {
	slot := int(seq % int64(lb.capacity))
	lb.refs[slot]++

	return &Line{
		Data: lb.data[slot*lb.size : (slot+1)*lb.size : (slot+1)*lb.size],
		Seq:  seq,
		buf:  lb,
		slot: slot,
		gen:  lb.gen,
	}
}

func (lb *LineBuffer) release(slot int, gen uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Lines acquired before a reallocation keep the old backing array alive
	// and have nothing to give back.
	if gen != lb.gen || lb.refs[slot] == 0 {
		return
	}
	lb.refs[slot]--
}

// Resize reallocates every slot. Outstanding lines stay valid for reading.
func (lb *LineBuffer) Resize(capacity, size int) error {
	if capacity <= 0 || size <= 0 {
		return fmt.Errorf("invalid buffer parameters: capacity=%d, size=%d", capacity, size)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if capacity == lb.capacity && size == lb.size {
		return nil
	}
	lb.allocate(capacity, size)
	return nil
}

// Latest returns the sequence number of the newest line, or -1 if the buffer is empty.
func (lb *LineBuffer) Latest() int64 {
	return lb.written.Load() - 1
}

// Len returns the number of lines currently held by the ring.
func (lb *LineBuffer) Len() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	return int(min(lb.written.Load(), int64(lb.capacity)))
}

// Capacity returns the number of slots.
func (lb *LineBuffer) Capacity() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.capacity
}

// Size returns the number of samples per line.
func (lb *LineBuffer) Size() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.size
}

// Generation changes every time the slots are reallocated, which restarts the
// sequence numbers at 0.
func (lb *LineBuffer) Generation() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.gen
}

// Dropped returns the number of lines dropped because their slot was acquired.
func (lb *LineBuffer) Dropped() int64 {
	return lb.dropped.Load()
}

// Clear forgets every line. Slots are reallocated so that lines still held by
// readers are not zeroed under them.
func (lb *LineBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.allocate(lb.capacity, lb.size)
}
