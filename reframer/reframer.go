package reframer

import (
	"hash/crc32"
	"log/slog"

	"github.com/gammazero/deque"

	"github.com/drgolem/go-flac-reframer/frame"
	"github.com/drgolem/go-flac-reframer/index"
	"github.com/drgolem/go-flac-reframer/internal/ringbuf"
	"github.com/drgolem/go-flac-reframer/meta"
	"github.com/drgolem/go-flac-reframer/pid"
)

// Reframer is a single-threaded cooperative state machine: one instance
// per input PID . The host invokes Process repeatedly; Process
// consumes at most one input packet but may queue and send zero or more
// output packets before returning.
type Reframer struct {
	cfg  Config
	log  *slog.Logger
	host pid.PID

	ring  *ringbuf.Buffer
	state streamState

	scanCursor int // scan_cursor: logical position relative to the ring base

	pendingCTS   *int64 // a declared CTS awaiting adoption on the next emission (transmuxed mode)
	pendingDeque deque.Deque[*pendingFrame]
	probe        *indexProbe
	idx          *index.Index
	atEOF        bool

	seekTargetSamples int64 // cts threshold (in output timescale units) below which frames are suppressed while state.inSeek
}

// New constructs a Reframer bound to host, which must implement the
// pid.PID capability set.
func New(host pid.PID, cfg Config, log *slog.Logger) *Reframer {
	if cfg.Index == 0 {
		cfg.Index = 1.0
	}
	if log == nil {
		log = cfg.Logger
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reframer{
		cfg:  cfg,
		log:  log,
		host: host,
		ring: ringbuf.New(),
	}
}

// SetIndex installs a pre-built seek index (see index.Builder), enabling
// Play(start_range) handling.
func (r *Reframer) SetIndex(idx *index.Index) {
	r.idx = idx
}

// Process consumes one input packet (nil means "no new packet, only drain
// pending output and/or EOF flush") and drives the ring buffer → frame
// locator → output shaper pipeline described in data flow.
//
// Process returns pid.ErrBadBitstream once the stream has been marked
// fatally invalid, pid.ErrOutOfMemory if the host has no packet capacity
// (the ring bytes of frames already located have been copied into the
// pending deque, and everything queued there stays for the next call, so
// no frame is lost), or nil otherwise.
func (r *Reframer) Process(pkt pid.InputPacket, eof bool) error {
	if r.state.inError {
		return pid.ErrBadBitstream
	}

	if pkt != nil {
		off := ringbuf.NoOffset
		if o, ok := pkt.ByteOffset(); ok {
			off = o
		}
		r.ring.Append(pkt.Bytes(), off)
		if cts, ok := pkt.CTS(); ok {
			c := cts
			r.pendingCTS = &c
		}
		if err := r.host.DropPacket(pkt); err != nil {
			return err
		}
	}
	if eof {
		r.atEOF = true
	}

	if !r.state.initialized {
		var done bool
		var err error
		if r.cfg.Unframed {
			done, err = r.initUnframed()
		} else {
			done, err = r.parseMetadata()
		}
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
	}

	r.scanAndQueue()
	if r.atEOF {
		r.finalizeIndex()
	}

	return r.drainPending()
}

// parseMetadata runs the metadata parser once, on ring[0]. It reports
// done=true once STREAMINFO has been parsed and the stream properties
// have been pushed to the host.
func (r *Reframer) parseMetadata() (done bool, err error) {
	info, decoderConfig, consumed, perr := meta.Parse(r.ring.Bytes())
	switch {
	case perr == nil:
		// fall through
	case perr == meta.ErrIncomplete:
		return false, nil
	default:
		return false, r.fail()
	}

	r.state.sampleRate = info.SampleRate
	r.state.channels = info.Channels
	r.state.bitsPerSample = info.BitsPerSample
	r.state.blockSize = info.FixedBlockSize()
	r.state.durationNum = info.TotalSamples
	r.state.durationDen = info.SampleRate
	r.state.decoderConfig = decoderConfig

	r.ring.Drop(consumed)
	r.scanCursor = 0

	if err := r.finishInit(); err != nil {
		return false, err
	}
	return true, nil
}

// initUnframed seeds the stream state directly from caller-supplied
// parameters instead of parsing them from the ring: the transmuxed path,
// for a caller that already knows sample_rate/channels/decoder_config from
// an upstream container and feeds raw frame bytes with no fLaC magic.
func (r *Reframer) initUnframed() (done bool, err error) {
	r.state.sampleRate = r.cfg.SampleRate
	r.state.channels = r.cfg.Channels
	r.state.bitsPerSample = r.cfg.BitsPerSample
	r.state.blockSize = r.cfg.BlockSize
	r.state.durationNum = r.cfg.TotalSamples
	r.state.durationDen = r.cfg.SampleRate
	r.state.decoderConfig = r.cfg.DecoderConfig

	if err := r.finishInit(); err != nil {
		return false, err
	}
	return true, nil
}

// finishInit is the common tail of parseMetadata and initUnframed: resolve
// the output timescale, checksum the decoder config, arm the index probe,
// and publish the stream properties the host needs before frames start
// arriving.
func (r *Reframer) finishInit() error {
	r.state.decoderConfigCRC = crc32.ChecksumIEEE(r.state.decoderConfig)
	r.state.isSync = true

	if r.cfg.Timescale != 0 {
		r.state.timescale = r.cfg.Timescale
	} else {
		r.state.timescale = r.state.sampleRate
	}

	r.state.initialized = true
	r.startIndexProbe()

	return r.publishStreamProperties()
}

func (r *Reframer) publishStreamProperties() error {
	set := func(name string, v any) error { return r.host.SetProperty(name, v) }

	if err := set(pid.PropStreamType, "audio"); err != nil {
		return err
	}
	if err := set(pid.PropCodec, "flac"); err != nil {
		return err
	}
	if err := set(pid.PropTimescale, r.state.timescale); err != nil {
		return err
	}
	if err := set(pid.PropSampleRate, r.state.sampleRate); err != nil {
		return err
	}
	if err := set(pid.PropNumChannels, uint32(r.state.channels)); err != nil {
		return err
	}
	if err := set(pid.PropSamplesPerFrame, r.state.blockSize); err != nil {
		return err
	}
	if err := set(pid.PropAudioBPS, uint32(r.state.bitsPerSample)); err != nil {
		return err
	}
	if r.state.durationDen != 0 && r.state.durationNum != 0 {
		duration := float64(r.state.durationNum) / float64(r.state.durationDen)
		if err := set(pid.PropDuration, duration); err != nil {
			return err
		}
		// Bitrate only has a source to divide by when the caller told us
		// how big the file is; a stream fed incrementally with no known
		// total size leaves it unpublished rather than guessing.
		if r.cfg.TotalBytes > 0 && duration > 0 {
			bitrate := uint64(float64(r.cfg.TotalBytes) * 8 / duration)
			if err := set(pid.PropBitrate, bitrate); err != nil {
				return err
			}
		}
	}
	// channel_layout depends on the frame header's channel_assignment code,
	// which STREAMINFO does not carry; it is published once the first frame
	// is shaped (shapeOutput always reports layoutChanged on frame one,
	// since streamState.sawFirstFrame is still false then).
	if err := set(pid.PropDecoderConfig, r.state.decoderConfig); err != nil {
		return err
	}
	playbackMode := pid.PlaybackModeNormal
	hasIndex := r.probe != nil || r.idx != nil
	if hasIndex {
		playbackMode = pid.PlaybackModeFastForward
	}
	if err := set(pid.PropPlaybackMode, playbackMode); err != nil {
		return err
	}
	return set(pid.PropCanDataRef, hasIndex)
}

// scanAndQueue repeatedly runs the frame locator over buffered ring bytes,
// turning every newly confirmed frame into a pendingFrame on the deque:
// queuing, not sending, is what must never block on ring-buffer
// consumption.
func (r *Reframer) scanAndQueue() {
	for {
		buf := r.ring.Bytes()
		found, ok, needMore, next, rejected := frame.Locate(buf, r.scanCursor, r.atEOF, r.state.locatorState(r.cfg.DoCRC))
		r.logResync(rejected)
		if !ok {
			if !needMore && r.atEOF {
				// Nothing left to confirm; whatever remains is noise after
				// the last real frame.
				r.ring.Drop(len(buf))
			}
			r.scanCursor = next
			if !r.atEOF {
				// Compact away bytes that can never again be a sync
				// candidate once they are behind scanCursor and not
				// sitting inside a still-unconfirmed tail window.
				r.advanceRingToScanCursor()
			}
			return
		}
		r.state.isSync = true

		pf := r.shapeOutput(buf, found)
		r.pendingDeque.PushBack(pf)
		r.maybeSampleIndex(pf)

		r.scanCursor = found.End
		r.advanceRingToScanCursor()
	}
}

// logResync reports false syncs frame.Locate discarded while reaching its
// verdict. The first one since a confirmed frame logs at Warn (playback
// just lost sync); further ones before the next confirmed frame log at
// Debug, since by then the loss is already known and each one is just
// routine resync noise.
func (r *Reframer) logResync(rejected int) {
	if rejected == 0 {
		return
	}
	if r.state.isSync {
		r.log.Warn("flac frame sync lost", "rejected", rejected)
	} else {
		r.log.Debug("flac frame resync still in progress", "rejected", rejected)
	}
	r.state.isSync = false
}

// advanceRingToScanCursor drops ring bytes that precede scanCursor: the
// ring buffer never retains bytes preceding a successfully emitted frame,
// and bytes already scanned past without confirming a frame there cannot
// retroactively become one either.
func (r *Reframer) advanceRingToScanCursor() {
	if r.scanCursor <= 0 {
		return
	}
	r.ring.Drop(r.scanCursor)
	r.scanCursor = 0
}

// shapeOutput computes CTS, rescaled duration, SAP, framing, byte offset,
// and property-update detection for a just-confirmed frame.
func (r *Reframer) shapeOutput(buf []byte, found frame.Found) *pendingFrame {
	h := found.Header

	effRate := h.SampleRate
	if effRate == 0 {
		effRate = r.state.sampleRate
	}
	rateChanged := effRate != r.state.sampleRate
	layoutChanged := !r.state.sawFirstFrame || h.ChannelAssignment != r.state.channelAssignment
	r.state.sampleRate = effRate
	r.state.channelAssignment = h.ChannelAssignment
	r.state.channels = uint8(h.ChannelAssignment.Channels())
	r.state.sawFirstFrame = true

	if r.pendingCTS != nil {
		r.state.cts = *r.pendingCTS
		r.pendingCTS = nil
	}
	cts := r.state.cts
	duration := r.rescale(h.BlockSize)
	r.state.cts += duration

	var byteOffset int64
	haveByteOffset := false
	if base, ok := r.ring.BaseOffset(); ok {
		byteOffset = base + int64(found.Start)
		haveByteOffset = true
	}

	body := append([]byte(nil), buf[found.Start:found.End]...)

	return &pendingFrame{
		bytes:          body,
		cts:            cts,
		duration:       duration,
		byteOffset:     byteOffset,
		haveByteOffset: haveByteOffset,
		sampleRate:     effRate,
		channels:       r.state.channels,
		channelCode:    h.ChannelAssignment,
		rateChanged:    rateChanged,
		layoutChanged:  layoutChanged,
	}
}

// rescale converts a frame's block size (in source samples) to output
// timescale units identity in file mode, 64-bit-intermediate
// scaling in transmuxed mode.
func (r *Reframer) rescale(blockSize uint32) int64 {
	return r.rescaleSamples(int64(blockSize))
}

// rescaleSamples is rescale's general form, for sample counts that may not
// fit in a single frame's block size (e.g. a seek target).
func (r *Reframer) rescaleSamples(samples int64) int64 {
	if r.state.timescale == r.state.sampleRate {
		return samples
	}
	return int64(uint64(samples) * uint64(r.state.timescale) / uint64(r.state.sampleRate))
}

// drainPending sends as many queued frames downstream as the host can
// currently accept. It stops and returns pid.ErrOutOfMemory the moment an
// allocation fails, leaving the rest queued for the next Process call.
func (r *Reframer) drainPending() error {
	for r.pendingDeque.Len() > 0 {
		pf := r.pendingDeque.Front()

		if r.state.inSeek {
			target := r.seekTargetSamples
			if pf.cts+pf.duration < target {
				r.pendingDeque.PopFront()
				continue
			}
			r.state.inSeek = false
		}

		out, err := r.host.NewOutputPacket(len(pf.bytes))
		if err != nil {
			return pid.ErrOutOfMemory
		}
		out.SetBytes(pf.bytes)
		out.SetCTS(pf.cts)
		out.SetDuration(pf.duration)
		out.SetSAP(1)
		out.SetFraming(1, 1)
		if pf.haveByteOffset {
			out.SetByteOffset(pf.byteOffset)
		}
		if err := r.host.SendPacket(out); err != nil {
			return err
		}

		if pf.rateChanged {
			_ = r.host.SetProperty(pid.PropSampleRate, pf.sampleRate)
		}
		if pf.layoutChanged {
			_ = r.host.SetProperty(pid.PropNumChannels, uint32(pf.channels))
			if layout, ok := pid.ChannelLayout(int(pf.channelCode)); ok {
				_ = r.host.SetProperty(pid.PropChannelLayout, layout)
			}
		}

		r.pendingDeque.PopFront()
	}
	return nil
}

// fail marks the stream fatally invalid: all buffered bytes are dropped
// and every subsequent Process call returns pid.ErrBadBitstream
// immediately.
func (r *Reframer) fail() error {
	r.log.Error("flac bitstream invalid; stream stopped")
	r.state.inError = true
	r.ring.Reset()
	r.pendingDeque.Clear()
	return pid.ErrBadBitstream
}
