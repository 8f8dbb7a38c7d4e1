// Package frame parses and locates FLAC audio-frame headers.
//
// Bit-level field extraction is grounded on eaburns-flac's readFrameHeader
// (the same block-size/sample-rate/channel-assignment/bps code tables) and
// mewkiz-flac's frame.NewHeader (the same field-width grouping and
// CRC-8-over-header-bytes validation), translated from their respective
// hand-rolled bit.Reader types onto github.com/icza/bitio. bitio.CountReader
// gives the running bit/byte count the header needs to know exactly where
// it ends (for slicing out the CRC-8 input and for locating the
// first-subframe peek byte); bitio.Reader's TryReadBits + TryError give a
// value type with explicit read(n) and a sticky overflow flag, without a
// hand-rolled one.
package frame

import (
	"bytes"
	"errors"

	"github.com/icza/bitio"

	"github.com/drgolem/go-flac-reframer/internal/crc"
)

// ChannelAssignment is the raw 4-bit channel-assignment code from a frame
// header.
type ChannelAssignment uint8

// Stereo decorrelation codes; 0-7 are direct N-channel layouts (channels =
// code+1).
const (
	ChannelLeftSide  ChannelAssignment = 8
	ChannelRightSide ChannelAssignment = 9
	ChannelMidSide   ChannelAssignment = 10
)

// Channels returns the number of channels this assignment produces once
// stereo decorrelation (if any) is undone.
func (c ChannelAssignment) Channels() int {
	if c <= 7 {
		return int(c) + 1
	}
	return 2
}

// Header is a parsed, CRC-8-validated frame header.
type Header struct {
	BlockSize         uint32
	SampleRate        uint32 // 0 means "use the stream's current sample rate"
	ChannelAssignment ChannelAssignment
	BitsPerSample     uint8 // 0 means "use the stream's current bit depth"
	// Len is the number of bytes the header occupies, sync word through the
	// CRC-8 byte inclusive.
	Len int
}

// ErrRejected means the candidate bytes are definitely not a valid frame
// header — a reserved field, a failed CRC-8, or an implausible
// first-subframe type. The caller should treat the sync byte as
// coincidental and resume scanning one byte later.
var ErrRejected = errors.New("frame: header rejected")

// ErrShort means buf ran out before ParseHeader could reach a verdict. The
// caller should buffer more bytes and retry at the same position — unlike
// ErrRejected, this is not evidence of a false sync.
var ErrShort = errors.New("frame: not enough bytes buffered")

var blockSizeFixed = [16]uint32{
	0: 0, // reserved
	1: 192,
	2: 576, 3: 1152, 4: 2304, 5: 4608,
	// 6, 7 read from extension bytes
	8: 256, 9: 512, 10: 1024, 11: 2048, 12: 4096, 13: 8192, 14: 16384, 15: 32768,
}

var sampleRateFixed = [12]uint32{
	// index 0 means "use current"; 12+ read from extension bytes
	1: 88200, 2: 176400, 3: 192000, 4: 8000, 5: 16000, 6: 22050,
	7: 24000, 8: 32000, 9: 44100, 10: 48000, 11: 96000,
}

// bpsFixed maps a 3-bit bps code to bits-per-sample. Code 0 means "use
// current". Only code 3 is rejected; code 7 has no defined mapping in the
// wider FLAC format either, so it is treated the same as code 0 — see
// DESIGN.md.
var bpsFixed = [8]uint8{
	0: 0, 1: 8, 2: 12, 4: 16, 5: 20, 6: 24, 7: 0,
}

// ParseHeader parses a candidate frame header starting at buf[0]. buf
// should hold at least 17 bytes; ParseHeader itself tolerates a shorter
// buf by returning ErrShort rather than panicking, which lets the locator call it
// defensively near EOF.
//
// ParseHeader returns ErrRejected for every false-sync condition: a bad
// sync word, a reserved field, a CRC-8 mismatch, or an implausible
// first-subframe type. It returns ErrShort when buf ran out before a
// verdict could be reached, which the locator treats as "try again once
// more bytes arrive" rather than as a false sync.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < 2 {
		return nil, ErrShort
	}
	if buf[0] != 0xFF || buf[1]&0xFC != 0xF8 {
		return nil, ErrRejected
	}

	cr := bitio.NewCountReader(bytes.NewReader(buf))

	sync := cr.TryReadBits(15)
	_ = cr.TryReadBits(1) // blocking_strategy: ignored for reframing
	blockSizeCode := cr.TryReadBits(4)
	sampleRateCode := cr.TryReadBits(4)
	channelCode := cr.TryReadBits(4)
	bpsCode := cr.TryReadBits(3)
	reserved := cr.TryReadBits(1)
	if cr.TryError != nil {
		return nil, ErrShort
	}
	if sync != 0x7FFC || reserved != 0 {
		return nil, ErrRejected
	}
	if bpsCode == 3 {
		return nil, ErrRejected
	}
	if channelCode >= 11 {
		return nil, ErrRejected
	}

	if _, err := decodeUTF8(cr); err != nil {
		if errors.Is(err, errUTF8Short) {
			return nil, ErrShort
		}
		return nil, ErrRejected
	}

	var blockSize uint32
	switch {
	case blockSizeCode == 0:
		return nil, ErrRejected
	case blockSizeCode == 6:
		blockSize = uint32(cr.TryReadBits(8)) + 1
	case blockSizeCode == 7:
		blockSize = uint32(cr.TryReadBits(16)) + 1
	default:
		blockSize = blockSizeFixed[blockSizeCode]
	}

	var sampleRate uint32
	switch {
	case sampleRateCode == 15:
		return nil, ErrRejected
	case sampleRateCode == 0:
		sampleRate = 0 // use current
	case sampleRateCode == 12:
		sampleRate = uint32(cr.TryReadBits(8)) * 1000
	case sampleRateCode == 13:
		sampleRate = uint32(cr.TryReadBits(16))
	case sampleRateCode == 14:
		sampleRate = uint32(cr.TryReadBits(16)) * 10
	default:
		sampleRate = sampleRateFixed[sampleRateCode]
	}

	if cr.TryError != nil {
		return nil, ErrShort
	}
	if cr.BitsCount%8 != 0 {
		// Every field above is sized so the header stays byte-aligned; if
		// this ever trips, the field tables above are inconsistent.
		return nil, ErrRejected
	}

	headerLenWithoutCRC := int(cr.BitsCount / 8)
	if len(buf) < headerLenWithoutCRC+1 {
		return nil, ErrShort
	}
	gotCRC8 := buf[headerLenWithoutCRC]
	wantCRC8 := crc.CRC8(buf[:headerLenWithoutCRC])
	if gotCRC8 != wantCRC8 {
		return nil, ErrRejected
	}
	headerLen := headerLenWithoutCRC + 1

	if len(buf) < headerLen+1 {
		return nil, ErrShort
	}
	if !plausibleFirstSubframe(buf[headerLen]) {
		return nil, ErrRejected
	}

	return &Header{
		BlockSize:         blockSize,
		SampleRate:        sampleRate,
		ChannelAssignment: ChannelAssignment(channelCode),
		BitsPerSample:     bpsFixed[bpsCode],
		Len:               headerLen,
	}, nil
}

// plausibleFirstSubframe checks the reserved bit and subframe-type field of
// the byte immediately following a frame header. accept only
// type 0 (constant), 1 (verbatim), or 8-12 (fixed predictor orders 0-4).
// LPC (32-63) and every reserved range are rejected at every probe, so a
// real frame whose first subframe is LPC-coded is never taken as a frame
// start; this buys a much stronger false-sync filter, since LPC order is
// otherwise unbounded.
func plausibleFirstSubframe(b byte) bool {
	if b&0x80 != 0 { // reserved bit must be 0
		return false
	}
	subframeType := (b >> 1) & 0x3F
	return subframeType == 0 || subframeType == 1 || (subframeType >= 8 && subframeType <= 12)
}

// errUTF8Short marks a decodeUTF8 failure caused by running out of bytes,
// as opposed to one caused by a structurally invalid encoding.
var errUTF8Short = errors.New("frame: utf8 number truncated")

// decodeUTF8 consumes the variable-length "UTF-8"-style coded frame or
// sample number, validating continuation bytes without retaining the
// decoded value beyond validation.
// Grounded on eaburns-flac's utf8Decode and mewkiz-flac's decodeUTF8Int,
// both of which classify the leading byte by its run of leading 1-bits and
// then demand that many 10xxxxxx continuation bytes.
func decodeUTF8(cr *bitio.CountReader) (uint64, error) {
	b0 := cr.TryReadBits(8)
	if cr.TryError != nil {
		return 0, errUTF8Short
	}
	r := byte(b0)

	var cont int
	var v uint64
	switch {
	case r&0x80 == 0:
		return uint64(r), nil
	case r&0xE0 == 0xC0:
		cont, v = 1, uint64(r&0x1F)
	case r&0xF0 == 0xE0:
		cont, v = 2, uint64(r&0x0F)
	case r&0xF8 == 0xF0:
		cont, v = 3, uint64(r&0x07)
	case r&0xFC == 0xF8:
		cont, v = 4, uint64(r&0x03)
	case r&0xFE == 0xFC:
		cont, v = 5, uint64(r&0x01)
	default:
		return 0, errors.New("frame: invalid UTF-8 leading byte")
	}

	for i := 0; i < cont; i++ {
		cb := cr.TryReadBits(8)
		if cr.TryError != nil {
			return 0, errUTF8Short
		}
		b := byte(cb)
		if b&0xC0 != 0x80 {
			return 0, errors.New("frame: invalid UTF-8 continuation byte")
		}
		v = v<<6 | uint64(b&0x3F)
	}
	return v, nil
}
