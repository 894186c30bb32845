package pipeline

// Window is a fixed-capacity FIFO of the most recent corrected samples.
type Window struct {
	data []Vector
	pos  int
	full bool
	cap  int
}

// NewWindow creates a Window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		data: make([]Vector, capacity),
		cap:  capacity,
	}
}

// Push appends v, evicting the oldest sample once the window is full.
func (w *Window) Push(v Vector) {
	w.data[w.pos] = v
	w.pos++
	if w.pos >= w.cap {
		w.pos = 0
		w.full = true
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	if w.full {
		return w.cap
	}
	return w.pos
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.cap
}

// Full reports whether the window holds Cap samples.
func (w *Window) Full() bool {
	return w.full
}

// Slice returns the samples in insertion order, oldest first.
func (w *Window) Slice() []Vector {
	out := make([]Vector, w.Len())
	if w.full {
		copy(out, w.data[w.pos:])
		copy(out[w.cap-w.pos:], w.data[:w.pos])
	} else {
		copy(out, w.data[:w.pos])
	}
	return out
}

// Reset empties the window
func (w *Window) Reset() {
	clear(w.data)
	w.pos = 0
	w.full = false
}
