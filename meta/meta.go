// Package meta parses the "fLaC" magic and the metadata block sequence that
// precedes the first audio frame, extracting the STREAMINFO block the
// reframer needs (sample rate, channel count, bit depth, block size,
// duration) and the raw decoder-configuration bytes a downstream decoder
// requires.
//
// Grounded on eaburns-flac's decode.go (readMetaData / readMetaDataHeader /
// readStreamInfo, the same 1/7/24-bit header split and 16/16/24/24/20/3/5/36
// STREAMINFO field layout) and farcloser-flac's meta/meta.go (the
// last/type/length block-header shape). Unlike either, Parse works directly
// off a byte slice and reports ErrIncomplete rather than blocking, since the
// reframer feeds it ring-buffer windows that may not yet hold the whole
// metadata sequence.
package meta

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// Magic is the 4-byte marker that opens every native FLAC stream.
var Magic = [4]byte{'f', 'L', 'a', 'C'}

// Block types, per the FLAC metadata block header.
const (
	TypeStreamInfo    = 0
	TypePadding       = 1
	TypeApplication   = 2
	TypeSeekTable     = 3
	TypeVorbisComment = 4
	TypeCueSheet      = 5
	TypePicture       = 6
)

// StreamInfo is the mandatory first metadata block.
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	TotalSamples  uint64
}

// FixedBlockSize returns the frame block size if every frame in the stream
// uses the same one, or 0 if the block size is variable.
func (si StreamInfo) FixedBlockSize() uint32 {
	if si.MinBlockSize != 0 && si.MinBlockSize == si.MaxBlockSize {
		return uint32(si.MinBlockSize)
	}
	return 0
}

// Errors returned by Parse.
var (
	// ErrIncomplete means buf does not yet hold a complete metadata
	// sequence; the caller should buffer more bytes and retry.
	ErrIncomplete = errors.New("meta: incomplete metadata sequence")
	// ErrBadMagic means the first 4 bytes are not "fLaC" — fatal.
	ErrBadMagic = errors.New("meta: missing fLaC magic")
	// ErrMissingStreamInfo means the block sequence ended without a
	// STREAMINFO block — fatal.
	ErrMissingStreamInfo = errors.New("meta: missing STREAMINFO block")
)

// Parse scans buf from offset 0 for the "fLaC" magic and the metadata block
// sequence that follows it, stopping at the block marked last.
//
// On success it returns the STREAMINFO, the raw decoder-configuration bytes
// (everything after the magic through the last metadata block, verbatim),
// and the number of bytes of buf consumed.
func Parse(buf []byte) (info StreamInfo, decoderConfig []byte, consumed int, err error) {
	if len(buf) < 4 {
		return StreamInfo{}, nil, 0, ErrIncomplete
	}
	if !bytes.Equal(buf[:4], Magic[:]) {
		return StreamInfo{}, nil, 0, ErrBadMagic
	}

	pos := 4
	haveStreamInfo := false
	for {
		if len(buf) < pos+4 {
			return StreamInfo{}, nil, 0, ErrIncomplete
		}
		last, kind, length := parseBlockHeader(buf[pos : pos+4])
		bodyStart := pos + 4
		blockEnd := bodyStart + length
		if len(buf) < blockEnd {
			return StreamInfo{}, nil, 0, ErrIncomplete
		}

		if kind == TypeStreamInfo {
			si, perr := parseStreamInfo(buf[bodyStart:blockEnd])
			if perr != nil {
				return StreamInfo{}, nil, 0, perr
			}
			info = si
			haveStreamInfo = true
		}

		pos = blockEnd
		if last {
			break
		}
	}

	if !haveStreamInfo {
		return StreamInfo{}, nil, 0, ErrMissingStreamInfo
	}

	return info, append([]byte(nil), buf[4:pos]...), pos, nil
}

// parseBlockHeader decodes the 1-bit last-flag, 7-bit type, and 24-bit
// length of a metadata block header. The header is always exactly 4
// byte-aligned bytes, so no bit reader is needed.
func parseBlockHeader(b []byte) (last bool, kind int, length int) {
	last = b[0]&0x80 != 0
	kind = int(b[0] & 0x7F)
	length = int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	return last, kind, length
}

func parseStreamInfo(b []byte) (StreamInfo, error) {
	if len(b) < 18 {
		return StreamInfo{}, fmt.Errorf("meta: STREAMINFO block too short (%d bytes, want >= 18)", len(b))
	}

	br := bitio.NewReader(bytes.NewReader(b))
	minBlock := br.TryReadBits(16)
	maxBlock := br.TryReadBits(16)
	minFrame := br.TryReadBits(24)
	maxFrame := br.TryReadBits(24)
	sampleRate := br.TryReadBits(20)
	channelsMinus1 := br.TryReadBits(3)
	bpsMinus1 := br.TryReadBits(5)
	totalSamples := br.TryReadBits(36)
	if br.TryError != nil {
		return StreamInfo{}, fmt.Errorf("meta: parsing STREAMINFO: %w", br.TryError)
	}
	if sampleRate == 0 {
		return StreamInfo{}, errors.New("meta: STREAMINFO declares a zero sample rate")
	}

	return StreamInfo{
		MinBlockSize:  uint16(minBlock),
		MaxBlockSize:  uint16(maxBlock),
		MinFrameSize:  uint32(minFrame),
		MaxFrameSize:  uint32(maxFrame),
		SampleRate:    uint32(sampleRate),
		Channels:      uint8(channelsMinus1) + 1,
		BitsPerSample: uint8(bpsMinus1) + 1,
		TotalSamples:  totalSamples,
	}, nil
}
