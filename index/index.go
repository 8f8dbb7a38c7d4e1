// Package index builds and searches the (byte-offset, time) table the
// reframer uses to resolve a Play seek request into a source byte offset,
// without re-scanning the file from the start.
//
// Grounded on eaburns-flac's frame-by-frame decode loop (the index builder
// runs the same frame locator the reframer itself uses, just discarding
// the audio and keeping only offset/duration pairs). Lookup uses a binary
// search rather than a linear scan, since entries are sorted by duration.
package index

import "sort"

// Entry is one (byte_offset, duration) sample point, duration being the
// cumulative playback position at byte_offset, in seconds.
type Entry struct {
	ByteOffset uint64
	Duration   float64
}

// Index is an ordered-by-duration sequence of Entry, built once per file
// and owned exclusively by one reframer instance; no locking is required.
type Index struct {
	entries []Entry
}

// Builder accumulates entries as the caller scans frames in source-byte
// order; Build sorts and finalizes them into an Index.
type Builder struct {
	entries []Entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add records one sample point. Callers typically add one entry per
// configured index interval (default 1.0s) rather than per frame.
func (b *Builder) Add(byteOffset uint64, duration float64) {
	b.entries = append(b.entries, Entry{ByteOffset: byteOffset, Duration: duration})
}

// Build finalizes the accumulated entries into a queryable Index.
func (b *Builder) Build() *Index {
	entries := append([]Entry(nil), b.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Duration < entries[j].Duration })
	return &Index{entries: entries}
}

// Lookup returns the last entry with Duration <= target, via binary
// search. ok is false if target precedes every entry (the caller should
// seek to the start of the stream).
func (idx *Index) Lookup(target float64) (entry Entry, ok bool) {
	n := len(idx.entries)
	i := sort.Search(n, func(i int) bool { return idx.entries[i].Duration > target })
	if i == 0 {
		return Entry{}, false
	}
	return idx.entries[i-1], true
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}
