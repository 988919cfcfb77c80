package zoom

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPartition(t *testing.T) {
	testCases := []struct {
		total int
		parts int
		want  []Span
	}{
		{10, 3, []Span{{0, 4}, {4, 7}, {7, 10}}},
		{4, 4, []Span{{0, 1}, {1, 2}, {2, 3}, {3, 4}}},
		{2, 4, []Span{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
		{0, 2, []Span{{0, 0}, {0, 0}}},
		{5, 0, nil},
	}

	for _, tc := range testCases {
		got := Partition(tc.total, tc.parts)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Partition(%d, %d) mismatch (-want +got):\n%s", tc.total, tc.parts, diff)
		}
	}
}

func TestPool_DispatchMatchesSerial(t *testing.T) {
	data := randomLine(8192, 2)

	want := make([]float32, 1920)
	Decimate(data, 0, len(data), want)

	pool := NewPool(4)
	defer pool.Stop()

	got := make([]float32, 1920)
	if err := pool.Dispatch(&Job{Data: data, Width: len(data), Out: got}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pool output differs from serial decimation (-want +got):\n%s", diff)
	}
}

func TestPool_ResizeIsBitIdentical(t *testing.T) {
	data := randomLine(65536, 3)

	d := NewDecimator(1)
	defer d.Stop()
	d.SetWindow(1000, 50000)
	d.SetOutputWidth(1366)

	want := make([]float32, 1366)
	if err := d.Zoom(data, want); err != nil {
		t.Fatalf("Zoom failed: %v", err)
	}

	for _, workers := range []int{2, 3, 16, 1, 2000} {
		if err := d.SetWorkers(workers); err != nil {
			t.Fatalf("SetWorkers(%d) failed: %v", workers, err)
		}
		if d.Workers() != workers {
			t.Errorf("Expected %d workers, got %d", workers, d.Workers())
		}

		got := make([]float32, 1366)
		if err := d.Zoom(data, got); err != nil {
			t.Fatalf("Zoom with %d workers failed: %v", workers, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Output with %d workers differs (-want +got):\n%s", workers, diff)
		}
	}
}

func TestPool_ConcurrentDispatchAndResize(t *testing.T) {
	data := randomLine(4096, 4)
	want := make([]float32, 512)
	Decimate(data, 0, len(data), want)

	pool := NewPool(2)
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			out := make([]float32, 512)
			if err := pool.Dispatch(&Job{Data: data, Width: len(data), Out: out}); err != nil {
				t.Errorf("Dispatch failed: %v", err)
				return
			}
			if !cmp.Equal(want, out) {
				t.Errorf("Dispatch %d produced a different line", i)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := pool.Resize(1 + i%7); err != nil {
				t.Errorf("Resize failed: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}

func TestPool_Stop(t *testing.T) {
	pool := NewPool(3)
	pool.Stop()
	pool.Stop() // idempotent

	err := pool.Dispatch(&Job{Data: []float32{1}, Width: 1, Out: make([]float32, 1)})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped from Dispatch, got %v", err)
	}
	if err := pool.Resize(2); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped from Resize, got %v", err)
	}
	if pool.Workers() != 0 {
		t.Errorf("Expected no workers after stop, got %d", pool.Workers())
	}
}

func TestDecimator_ZeroOutputWidth(t *testing.T) {
	d := NewDecimator(2)
	defer d.Stop()

	out := []float32{5, 5}
	if err := d.Zoom([]float32{1, 2, 3}, out); err != nil {
		t.Fatalf("Zoom failed: %v", err)
	}
	if diff := cmp.Diff([]float32{5, 5}, out); diff != "" {
		t.Errorf("Zero output width should not write (-want +got):\n%s", diff)
	}
}
