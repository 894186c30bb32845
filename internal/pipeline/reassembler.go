package pipeline

import "strings"

// FrameDelimiter terminates every telemetry frame on the wire.
const FrameDelimiter = "\n"

// MaxPendingBytes caps the unterminated remainder. A telemetry frame is well
// under 100 bytes, so anything longer is a stream that lost its delimiter.
const MaxPendingBytes = 4096

// Reassembler buffers partial notification chunks and yields complete
// newline-delimited frames in arrival order.
type Reassembler struct {
	buf       string
	overflows int
}

// NewReassembler creates an empty reassembler
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends chunk to the buffer and returns every complete frame. The
// trailing segment (possibly empty) is kept for the next call unless it
// exceeds MaxPendingBytes, in which case it is discarded.
func (r *Reassembler) Feed(chunk []byte) []string {
	r.buf += string(chunk)

	parts := strings.Split(r.buf, FrameDelimiter)
	r.buf = parts[len(parts)-1]
	if len(r.buf) > MaxPendingBytes {
		r.buf = ""
		r.overflows++
	}

	return parts[:len(parts)-1]
}

// Overflows returns how many times an oversized remainder was discarded
func (r *Reassembler) Overflows() int {
	return r.overflows
}

// Pending returns the unconsumed remainder
func (r *Reassembler) Pending() string {
	return r.buf
}

// Reset drops any buffered partial frame
func (r *Reassembler) Reset() {
	r.buf = ""
}
