package zoom

import "sync"

// Decimator binds a worker pool to the current zoom window: the raw bin
// offset and width to display and the output width in pixels. Parameter
// changes wait for the line being decimated, so a line is always reduced with
// one consistent set of dimensions.
type Decimator struct {
	mu sync.Mutex

	pool     *Pool
	offset   int
	width    int
	outWidth int
}

// NewDecimator creates a decimator backed by a pool of workers.
func NewDecimator(workers int, options ...func(*Pool)) *Decimator {
	return &Decimator{pool: NewPool(workers, options...)}
}

// SetWindow sets the raw bin range to decimate.
func (d *Decimator) SetWindow(offset, width int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.offset = offset
	d.width = width
}

// SetOutputWidth sets the display width in pixels.
func (d *Decimator) SetOutputWidth(width int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.outWidth = max(width, 0)
}

// Window returns the current raw offset, raw width and output width.
func (d *Decimator) Window() (offset, width, outWidth int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.offset, d.width, d.outWidth
}

// SetWorkers resizes the worker pool.
func (d *Decimator) SetWorkers(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pool.Resize(n)
}

// Workers returns the size of the worker pool.
func (d *Decimator) Workers() int {
	return d.pool.Workers()
}

// Zoom decimates data into out[:outWidth]. out must hold at least the output
// width; a shorter out is only filled up to its length.
func (d *Decimator) Zoom(data, out []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := min(d.outWidth, len(out))
	return d.pool.Dispatch(&Job{
		Data:   data,
		Offset: d.offset,
		Width:  d.width,
		Out:    out[:n],
	})
}

// Stop terminates the worker pool.
func (d *Decimator) Stop() {
	d.pool.Stop()
}
