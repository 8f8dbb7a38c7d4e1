// Package reframer implements the stateful FLAC reframing transducer:
// ring-buffer ingestion, metadata parsing, frame location with false-sync
// recovery, the timestamp/seek engine, and output shaping, wired together
// the way github.com/drgolem/go-flac's flac.Decoder wires a ring buffer to
// a callback-fed decode loop (flac.go), generalized from "one decode
// callback per PCM block" to "one output packet per confirmed FLAC frame"
// and driven by the pid.PID host interface instead of a CGO callback.
package reframer

import (
	"log/slog"

	"github.com/drgolem/go-flac-reframer/frame"
	"github.com/drgolem/go-flac-reframer/index"
)

// Config holds the configuration options, resolved once at construction.
type Config struct {
	// Index enables file-mode seek indexing when > 0, giving the seconds
	// between index samples. A negative value disables it. The zero value
	// is treated as the 1.0 default by New.
	Index float64
	// DoCRC forces a CRC-16 body check on every frame boundary, not just
	// ones where the sample rate or channel assignment changes.
	DoCRC bool
	// Timescale is the upstream-declared output timescale for transmuxed
	// mode. Zero means file mode: the output timescale is the stream's own
	// sample rate.
	Timescale uint32
	// TotalBytes is the known size of the source, when the caller has one
	// (a local file stat'd up front). It is used only to derive the
	// bitrate property; zero means bitrate is left unpublished.
	TotalBytes int64
	// Logger receives structured diagnostics: resync warnings/debug lines
	// and lifecycle events. A non-nil logger passed to New takes precedence;
	// if both are nil, slog.Default() is used.
	Logger *slog.Logger

	// Unframed marks a transmuxed source: the ring receives raw FLAC frame
	// bytes with no fLaC magic or STREAMINFO block, because the caller
	// already knows the stream's parameters from an upstream container.
	// When true, the SampleRate/Channels/BitsPerSample/BlockSize/
	// TotalSamples/DecoderConfig fields below seed the stream state in
	// place of parsing it from the ring.
	Unframed bool
	// SampleRate is the stream's sample rate, required when Unframed.
	SampleRate uint32
	// Channels is the stream's channel count, required when Unframed.
	Channels uint8
	// BitsPerSample is the stream's bit depth, required when Unframed.
	BitsPerSample uint8
	// BlockSize is the stream's fixed block size in samples, or 0 if
	// variable. Only meaningful when Unframed.
	BlockSize uint32
	// TotalSamples is the stream's total sample count, if known. Only
	// meaningful when Unframed; zero leaves duration unpublished, same as
	// an unknown STREAMINFO total_samples in file mode.
	TotalSamples uint64
	// DecoderConfig is the caller-supplied decoder_config bytes to publish
	// (a STREAMINFO block from the upstream container). Only meaningful
	// when Unframed.
	DecoderConfig []byte
}

// streamState is the per-instance data model the reframer tracks. One
// exists per active input PID; instances never share state.
type streamState struct {
	sampleRate        uint32
	channels          uint8
	bitsPerSample     uint8
	blockSize         uint32 // from STREAMINFO; 0 means variable
	channelAssignment frame.ChannelAssignment

	durationNum uint64 // STREAMINFO total_samples
	durationDen uint32 // STREAMINFO sample_rate; 0 means unknown

	cts       int64
	timescale uint32

	decoderConfigCRC uint32
	initialized      bool
	inSeek           bool
	isSync           bool
	inError          bool
	sawFirstFrame    bool // channelAssignment's zero value (code 0, mono) is a real code, so this distinguishes "never set" from "set to mono"

	decoderConfig []byte
}

// locatorState projects the fields frame.Locate needs out of streamState.
func (s *streamState) locatorState(docrc bool) frame.State {
	return frame.State{
		SampleRate:        s.sampleRate,
		ChannelAssignment: s.channelAssignment,
		DoCRC:             docrc,
	}
}

// pendingFrame is a fully-decided output frame waiting for the host to
// have capacity to accept it. Everything it needs
// is copied out of the ring buffer up front, so the ring bytes backing it
// can be dropped immediately — re-validating or re-locating it later is
// never required.
type pendingFrame struct {
	bytes          []byte
	cts            int64
	duration       int64
	byteOffset     int64
	haveByteOffset bool
	sampleRate     uint32
	channels       uint8
	channelCode    frame.ChannelAssignment
	rateChanged    bool
	layoutChanged  bool
}

// indexProbe tracks the next duration threshold an in-progress index
// probe should sample at.
type indexProbe struct {
	builder  *index.Builder
	interval float64
	nextMark float64
}
