package zoom

// MaxZoomWindow bounds the number of input samples scanned for a single output
// pixel. Wider windows are truncated, never rejected. The total width of a
// zoom is not capped: a line far wider than MaxZoomWindow still decimates
// across its whole width as long as each pixel's share stays under the bound.
const MaxZoomWindow = 524288

// Decimate reduces data[offset:offset+width] to len(out) pixels. Each output
// pixel is the maximum of its input window so that narrow peaks survive the
// reduction. When width is smaller than len(out) (zoomed in) windows shrink to
// a single sample and neighbouring pixels repeat it.
//
// Out-of-range geometry is clamped: a negative offset starts at 0 and windows
// are clipped to the end of data.
func Decimate(data []float32, offset, width int, out []float32) {
	DecimateRange(data, offset, width, len(out), 0, len(out), out)
}

// DecimateRange computes output pixels [from, to) of a decimation to outWidth
// pixels, writing out[from:to]. The result for every pixel is identical to the
// same pixel of a full Decimate call, which makes it safe to split a line
// between workers.
func DecimateRange(data []float32, offset, width, outWidth, from, to int, out []float32) {
	if len(data) == 0 || outWidth <= 0 {
		return
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(data) {
		offset = len(data) - 1
	}
	if width < 0 {
		width = 0
	}
	from = max(from, 0)
	to = min(to, outWidth, len(out))

	for i := from; i < to; i++ {
		start, end := window(offset, width, outWidth, i, len(data))

		maxVal := data[start]
		for _, v := range data[start+1 : end] {
			if v > maxVal {
				maxVal = v
			}
		}
		out[i] = maxVal
	}
}

// window returns the input range [start, end) covered by output pixel i, that
// is [offset+floor(i*width/outWidth), offset+floor((i+1)*width/outWidth)).
// Consecutive windows are contiguous when width >= outWidth; below that every
// window holds exactly one sample.
func window(offset, width, outWidth, i, n int) (int, int) {
	start := offset + i*width/outWidth
	end := offset + (i+1)*width/outWidth

	if start >= n {
		start = n - 1
	}
	if end-start > MaxZoomWindow {
		end = start + MaxZoomWindow
	}
	if end <= start {
		end = start + 1
	}
	if end > n {
		end = n
	}
	return start, end
}
