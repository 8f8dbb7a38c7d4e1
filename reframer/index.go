package reframer

import "github.com/drgolem/go-flac-reframer/index"

// startIndexProbe arms the one-time index-building probe pass once
// metadata has been parsed, provided file mode is active
// (Timescale == the stream's own sample rate) and indexing is enabled.
// Transmuxed streams skip this: their seek table, if any, is the
// upstream's responsibility.
func (r *Reframer) startIndexProbe() {
	if r.cfg.Index <= 0 || r.state.timescale != r.state.sampleRate {
		return
	}
	r.probe = &indexProbe{
		builder:  index.NewBuilder(),
		interval: r.cfg.Index,
	}
}

// maybeSampleIndex records an index.Entry once per interval as confirmed
// frames stream past, keyed on the frame's start byte offset and its
// CTS converted to seconds. It is a no-op once probing isn't armed (no
// byte offset available, transmuxed mode, or indexing disabled).
func (r *Reframer) maybeSampleIndex(pf *pendingFrame) {
	if r.probe == nil || !pf.haveByteOffset {
		return
	}
	seconds := float64(pf.cts) / float64(r.state.timescale)
	if seconds < r.probe.nextMark {
		return
	}
	r.probe.builder.Add(uint64(pf.byteOffset), seconds)
	r.probe.nextMark += r.probe.interval
}

// finalizeIndex builds the accumulated probe samples into a queryable
// index.Index, installing it so Play(start_range) can be serviced. Safe to
// call multiple times; later calls refine the index as more of the stream
// is seen.
func (r *Reframer) finalizeIndex() {
	if r.probe == nil {
		return
	}
	r.idx = r.probe.builder.Build()
}
