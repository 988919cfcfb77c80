package zoom

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func randomLine(n int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	line := make([]float32, n)
	for i := range line {
		line[i] = rng.Float32()*100 - 120
	}
	return line
}

func TestDecimate_MaxOfWindow(t *testing.T) {
	testCases := []struct {
		name   string
		data   []float32
		offset int
		width  int
		out    int
		want   []float32
	}{
		{
			name:  "integer factor",
			data:  []float32{1, 5, 2, 2, 9, 0, 3, 4},
			width: 8, out: 4,
			want: []float32{5, 2, 9, 4},
		},
		{
			name:  "identity",
			data:  []float32{3, 1, 2},
			width: 3, out: 3,
			want: []float32{3, 1, 2},
		},
		{
			name:   "offset window",
			data:   []float32{100, 100, 1, 7, 3, 2, 100},
			offset: 2, width: 4, out: 2,
			want: []float32{7, 3},
		},
		{
			name:  "zoomed in repeats samples",
			data:  []float32{1, 2},
			width: 2, out: 4,
			want: []float32{1, 1, 2, 2},
		},
		{
			name:  "window clipped at end",
			data:  []float32{1, 2, 3},
			width: 10, out: 2,
			want: []float32{3, 3},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := make([]float32, tc.out)
			Decimate(tc.data, tc.offset, tc.width, out)
			if diff := cmp.Diff(tc.want, out); diff != "" {
				t.Errorf("Decimate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecimate_WindowsCoverInput(t *testing.T) {
	const n = 1000
	for _, outWidth := range []int{1, 3, 7, 333, 999, 1000} {
		next := 0
		for i := 0; i < outWidth; i++ {
			start, end := window(0, n, outWidth, i, n)
			if start != next {
				t.Fatalf("outWidth=%d pixel %d: window starts at %d, expected %d", outWidth, i, start, next)
			}
			if end <= start {
				t.Fatalf("outWidth=%d pixel %d: empty window [%d,%d)", outWidth, i, start, end)
			}
			next = end
		}
		if next != n {
			t.Errorf("outWidth=%d: windows end at %d, expected %d", outWidth, next, n)
		}
	}
}

func TestDecimate_PeakSurvives(t *testing.T) {
	data := make([]float32, 2_000_000)
	data[999_999] = 1.0

	out := make([]float32, 1000)
	Decimate(data, 0, len(data), out)

	for i, v := range out {
		want := float32(0)
		if i == 499 {
			want = 1.0
		}
		if v != want {
			t.Errorf("Pixel %d: expected %v, got %v", i, want, v)
		}
	}
}

func TestDecimate_WindowCap(t *testing.T) {
	data := make([]float32, 2*MaxZoomWindow)
	data[len(data)-1] = 1

	out := make([]float32, 1)
	Decimate(data, 0, len(data), out)

	if out[0] != 0 {
		t.Errorf("Expected samples past MaxZoomWindow to be ignored, got %v", out[0])
	}
}

func TestDecimate_WideLineWithinCap(t *testing.T) {
	data := make([]float32, 2*MaxZoomWindow)
	data[len(data)-1] = 1

	out := make([]float32, 4)
	Decimate(data, 0, len(data), out)

	if out[3] != 1 {
		t.Errorf("Expected the peak at the end of a wide line to survive, got %v", out[3])
	}
}

func TestDecimateRange_MatchesFullDecimation(t *testing.T) {
	data := randomLine(4096, 1)

	for _, outWidth := range []int{17, 640, 1920, 5000} {
		want := make([]float32, outWidth)
		Decimate(data, 100, 3000, want)

		for _, parts := range []int{1, 2, 3, 8, 64} {
			got := make([]float32, outWidth)
			for _, s := range Partition(outWidth, parts) {
				DecimateRange(data, 100, 3000, outWidth, s.From, s.To, got)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("outWidth=%d parts=%d mismatch (-want +got):\n%s", outWidth, parts, diff)
			}
		}
	}
}

func TestDecimate_DegenerateInput(t *testing.T) {
	out := []float32{7, 7}

	Decimate(nil, 0, 10, out)
	if diff := cmp.Diff([]float32{7, 7}, out); diff != "" {
		t.Errorf("Empty data should leave output untouched (-want +got):\n%s", diff)
	}

	Decimate([]float32{1, 2, 3}, 10, 5, out)
	if diff := cmp.Diff([]float32{3, 3}, out); diff != "" {
		t.Errorf("Offset past the end should clamp to the last sample (-want +got):\n%s", diff)
	}

	Decimate([]float32{4, 2, 3}, -5, 0, out)
	if diff := cmp.Diff([]float32{4, 4}, out); diff != "" {
		t.Errorf("Negative offset and zero width should read the first sample (-want +got):\n%s", diff)
	}
}
