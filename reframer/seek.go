package reframer

import "github.com/drgolem/go-flac-reframer/pid"

// HandleEvent dispatches a host-delivered event seek
// engine: Play looks up the requested start time in the seek index (if
// any), rewinds the ring buffer, and asks the host to reposition the
// source; Stop resets the cursor while keeping stream configuration;
// SetSpeed is acknowledged but otherwise ignored.
func (r *Reframer) HandleEvent(ev pid.Event) error {
	switch e := ev.(type) {
	case pid.Play:
		return r.handlePlay(e)
	case pid.Stop:
		r.handleStop()
		return nil
	case pid.SetSpeed:
		return nil // absorbed 
	default:
		return nil
	}
}

// handlePlay implements Play(start_range): locate the nearest
// index entry at or before start_range, adopt its byte offset as the next
// SourceSeek target, and suppress output until a frame's span reaches
// start_range again.
func (r *Reframer) handlePlay(e pid.Play) error {
	r.ring.Reset()
	r.pendingDeque.Clear()
	r.scanCursor = 0
	r.pendingCTS = nil

	samples := int64(e.StartRange * float64(r.state.sampleRate))
	r.seekTargetSamples = r.rescaleSamples(samples)
	r.state.inSeek = true

	var filePos uint64
	var startSamples int64
	if r.idx != nil {
		if entry, ok := r.idx.Lookup(e.StartRange); ok {
			filePos = entry.ByteOffset
			startSamples = int64(entry.Duration * float64(r.state.sampleRate))
		}
	}
	// Frames read from filePos onward start at the index entry's time, not
	// at the seek target itself.
	r.state.cts = r.rescaleSamples(startSamples)
	return r.host.SendEvent(pid.SourceSeek{FilePos: filePos})
}

// handleStop resets playback position while retaining the negotiated
// stream configuration, so a later Play does not require reprobing
// metadata .
func (r *Reframer) handleStop() {
	r.ring.Reset()
	r.pendingDeque.Clear()
	r.scanCursor = 0
	r.pendingCTS = nil
	r.state.cts = 0
	r.state.inSeek = false
	r.atEOF = false
}
