// Package pid models the filter-graph capability set the reframer talks
// to: packet exchange, PID property propagation, and event dispatch. The
// host's filter-graph runtime is an external collaborator the core only
// depends on through an interface — no concrete implementation is ever
// imported here.
//
// Grounded on github.com/drgolem/go-flac's decoder/encoder split
// (flac.Decoder and flac.Encoder wrap an external codec behind a narrow Go
// interface boundary the same way); the property/event vocabulary
// (stream_type, codec, timescale, channel_layout, Play/Stop/SourceSeek)
// names things the way a media filter graph names them.
package pid

import "errors"

// Property names a PID's SetProperty calls use. They are
// untyped strings here rather than an enum because a real host's property
// table is open-ended (it also carries properties the reframer never
// touches).
const (
	PropStreamType     = "stream_type"
	PropCodec          = "codec"
	PropUnframed       = "unframed"
	PropTimescale      = "timescale"
	PropSampleRate     = "sample_rate"
	PropNumChannels    = "num_channels"
	PropSamplesPerFrame = "samples_per_frame"
	PropAudioBPS       = "audio_bps"
	PropBitrate        = "bitrate"
	PropChannelLayout  = "channel_layout"
	PropDecoderConfig  = "decoder_config"
	PropDuration       = "duration"
	PropPlaybackMode   = "playback_mode"
	PropCanDataRef     = "can_dataref"
)

// PlaybackMode values for PropPlaybackMode.
const (
	PlaybackModeNormal      = "normal"
	PlaybackModeFastForward = "fast_forward"
)

// Errors a PID's methods return.
var (
	// ErrBadBitstream is fatal for the stream: no further parsing will be
	// attempted once it occurs.
	ErrBadBitstream = errors.New("pid: bad bitstream")
	// ErrOutOfMemory is transient: the caller should retry later without
	// having consumed any input.
	ErrOutOfMemory = errors.New("pid: out of memory")
	// ErrNotSupported means a PID's capabilities don't match what configure
	// requires.
	ErrNotSupported = errors.New("pid: capability not supported")
)

// InputPacket is one packet of opaque input bytes, as delivered by the
// host. CTS and byte offset are both optional — a packet may declare
// neither, either, or both.
type InputPacket interface {
	Bytes() []byte
	CTS() (cts int64, ok bool)
	ByteOffset() (offset int64, ok bool)
}

// OutputPacket is a host-allocated packet the reframer fills in before
// sending it downstream.
type OutputPacket interface {
	SetBytes(b []byte)
	SetCTS(cts int64)
	SetDuration(d int64)
	SetSAP(sap int)
	SetFraming(leading, trailing int)
	SetByteOffset(offset int64)
}

// PID is the host-runtime capability set a reframer instance is configured
// against: get/drop input packets, allocate/send output packets, set
// stream properties, and send events upstream.
type PID interface {
	// GetPacket returns the next buffered input packet, or (nil, nil) if
	// none is currently available.
	GetPacket() (InputPacket, error)
	// DropPacket releases an input packet the reframer has fully consumed.
	DropPacket(InputPacket) error
	// NewOutputPacket allocates an output packet of exactly n bytes.
	// Returns ErrOutOfMemory if none is available; the caller must not
	// have consumed any input in that case.
	NewOutputPacket(n int) (OutputPacket, error)
	// SendPacket hands a filled output packet downstream.
	SendPacket(OutputPacket) error
	// SetProperty sets a named stream property (see the Prop constants).
	SetProperty(name string, value any) error
	// SendEvent dispatches an event upstream (e.g. a SourceSeek request
	// the reframer issues in response to a Play event).
	SendEvent(Event) error
}

// Event is the common type for events the host delivers to the reframer
// (Play, Stop) and events the reframer sends upstream (SourceSeek).
type Event interface {
	eventMarker()
}

// Play asks the reframer to start emitting packets from start_range
// seconds into the stream.
type Play struct {
	StartRange float64
}

func (Play) eventMarker() {}

// Stop clears playing state. It retains stream configuration, enabling a
// subsequent Play without reprobing metadata.
type Stop struct{}

func (Stop) eventMarker() {}

// SetSpeed is absorbed: the reframer acknowledges it but does not act on
// it.
type SetSpeed struct {
	Speed float64
}

func (SetSpeed) eventMarker() {}

// SourceSeek is issued by the reframer to the host, asking it to
// reposition the underlying source at FilePos before more input arrives.
type SourceSeek struct {
	FilePos uint64
}

func (SourceSeek) eventMarker() {}

// channelLayout is the channel-layout table, indexed by the
// frame header's 4-bit channel_assignment code (direct layouts only;
// codes 8-10 are stereo with mid/side decorrelation and share code 1's
// layout once undone).
var channelLayout = map[int]uint32{
	0: layoutFC,
	1: layoutFL | layoutFR,
	2: layoutFL | layoutFR | layoutFC,
	3: layoutFL | layoutFR | layoutLS | layoutRS,
	4: layoutFL | layoutFR | layoutFC | layoutLS | layoutRS,
	5: layoutFL | layoutFR | layoutFC | layoutLFE | layoutLS | layoutRS,
	6: layoutFL | layoutFR | layoutFC | layoutLFE | layoutLS | layoutRS | layoutCS,
	7: layoutFL | layoutFR | layoutFC | layoutLFE | layoutLSS | layoutRSS | layoutLS | layoutRS,
}

// Speaker position bits. The bit assignment itself is this reframer's own
// choice — consumers only need the combination to be stable and
// self-consistent within one stream.
const (
	layoutFC uint32 = 1 << iota
	layoutFL
	layoutFR
	layoutLS
	layoutRS
	layoutLFE
	layoutCS
	layoutLSS
	layoutRSS
)

// ChannelLayout returns the speaker-position bitmask for a raw
// channel_assignment code. Codes 8-10 (mid/side stereo) resolve to the
// same layout as code 1, since the decorrelation is undone before
// playback and does not change the speaker layout.
func ChannelLayout(channelAssignment int) (uint32, bool) {
	if channelAssignment >= 8 && channelAssignment <= 10 {
		channelAssignment = 1
	}
	layout, ok := channelLayout[channelAssignment]
	return layout, ok
}
