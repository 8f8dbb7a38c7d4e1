// Package ringbuf implements the byte accumulator the reframer scans for
// frame boundaries.
//
// github.com/drgolem/go-flac's decoder hands a lock-free SPSC ring buffer
// between a libFLAC callback thread and a Go consumer goroutine, using
// only Read/Write/Reset/AvailableRead. That streaming surface has no way
// to look at a contiguous window of buffered bytes in place, which is
// exactly what the frame locator needs (scan for 0xFF, tentatively parse
// at an arbitrary offset, back out and retry at the next byte on
// failure). This package keeps that shape — one small type, exclusively
// owned, amortized append, no locking — but exposes a byte-slice view
// instead of a stream one.
package ringbuf

// NoOffset marks a source byte offset as unknown.
const NoOffset int64 = -1

// Buffer accumulates bytes across input packets and permits in-place
// scanning. It also tracks the source byte offset of its first byte,
// becoming NoOffset on any ingest discontinuity until the buffer drains and
// a freshly-offset packet re-anchors it (see Append).
type Buffer struct {
	buf    []byte
	off    int   // logical start of unconsumed data within buf
	offset int64 // source offset of buf[off], or NoOffset
}

// New returns an empty buffer with no known base offset.
func New() *Buffer {
	return &Buffer{offset: NoOffset}
}

// Len returns the number of unconsumed bytes currently buffered.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Bytes returns the unconsumed bytes as a contiguous slice. The slice is
// only valid until the next Append, Drop, or Reset call.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.off:]
}

// BaseOffset returns the source byte offset of Bytes()[0] and whether it is
// known.
func (b *Buffer) BaseOffset() (int64, bool) {
	if b.offset == NoOffset {
		return 0, false
	}
	return b.offset, true
}

// Append adds data to the tail of the buffer. pktOffset is the source byte
// offset of data[0], or NoOffset if the caller doesn't know it.
//
// The base offset tracker works like this: if pktOffset continues directly from
// the current base offset plus the buffered length, the base offset is left
// untouched. If the buffer is currently empty, the tracker trusts pktOffset
// outright and re-anchors to it. Otherwise — a gap, a rewind, or a packet
// with no declared offset — the base offset is invalidated and stays
// invalid (sticky) until the buffer next drains to empty.
func (b *Buffer) Append(data []byte, pktOffset int64) {
	size := int64(b.Len())
	switch {
	case pktOffset == NoOffset:
		b.offset = NoOffset
	case b.offset != NoOffset && pktOffset == b.offset+size:
		// Continuous; base offset remains valid.
	case size == 0:
		b.offset = pktOffset
	default:
		b.offset = NoOffset
	}
	b.buf = append(b.buf, data...)
}

// Drop removes n bytes from the front of the buffer, advancing the base
// offset (if known) by n. The caller must never drop more than Len().
func (b *Buffer) Drop(n int) {
	if n <= 0 {
		return
	}
	if n > b.Len() {
		n = b.Len()
	}
	if b.offset != NoOffset {
		b.offset += int64(n)
	}
	b.off += n
	if b.off > 0 && b.off*2 > len(b.buf) {
		b.compact()
	}
}

// compact shifts unconsumed bytes to the front of the backing array so it
// doesn't grow unbounded under sustained append/drop traffic.
func (b *Buffer) compact() {
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}

// Reset discards all buffered bytes and invalidates the base offset. Used
// when a seek invalidates whatever was in flight.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
	b.offset = NoOffset
}
