package frame

import (
	"github.com/drgolem/go-flac-reframer/internal/crc"
)

// Found describes one confirmed frame within a scanned byte window.
type Found struct {
	Header *Header
	Start  int // offset of the sync byte within the scanned buffer
	End    int // offset one past the frame's last byte (the CRC-16 footer)
}

// State is the subset of the caller's negotiated stream state Locate needs
// to decide whether a frame-to-frame transition forces a CRC-16 check: the
// sample rate and channel assignment the caller has established so far
// (from its stream parameters and the frames it has already accepted),
// which the candidate next frame's header is compared against.
type State struct {
	SampleRate        uint32
	ChannelAssignment ChannelAssignment
	DoCRC             bool // force a CRC-16 check on every frame boundary
}

// Locate scans buf starting at offset for the next frame whose boundary
// can be confirmed: a frame header is only trusted once either (a) the
// following frame's header is also found, and a CRC-16 check (forced by
// state.DoCRC
// or by a sample-rate/channel-assignment change at the boundary) passes,
// or (b) atEOF is true and there is no following frame to require.
//
// Locate returns needMore=true when buf does not yet hold enough bytes to
// reach a verdict at the current search position and more data should
// arrive before retrying. It returns ok=false, needMore=false when every
// candidate at or after offset was rejected and the caller has exhausted
// buf without finding a frame — scanning should resume from the returned
// nextOffset once more bytes are appended.
//
// rejected counts the candidate sync points this call discarded as false
// syncs (a bad header field, a failed header CRC-8, or a failed body
// CRC-16) before reaching its verdict, so the caller can log a
// resynchronization event without Locate itself taking a logger.
//
// Grounded on the CRC-confirmed resync loop described for mewkiz-flac's
// frame.Parse (which verifies a frame's own CRC-16 before returning it) and
// eaburns-flac's frame-by-frame decode loop; this reframer only trusts that
// self-check, plus the header CRC-8, since it is scanning for boundaries
// rather than decoding subframe data.
func Locate(buf []byte, offset int, atEOF bool, state State) (found Found, ok bool, needMore bool, nextOffset int, rejected int) {
	for p := offset; p < len(buf); p++ {
		if buf[p] != 0xFF {
			continue
		}
		h, err := ParseHeader(buf[p:])
		switch {
		case err == nil:
			// fall through to confirmation below
		case err == ErrShort:
			if atEOF {
				continue // this candidate can never be completed
			}
			return Found{}, false, true, p, rejected
		default:
			rejected++
			continue // ErrRejected: coincidental 0xFF, keep scanning
		}

		end, confirmed, shortAtEnd := confirmFrame(buf, p, h, atEOF, state)
		switch {
		case confirmed:
			return Found{Header: h, Start: p, End: end}, true, false, end, rejected
		case shortAtEnd:
			return Found{}, false, true, p, rejected
		default:
			rejected++
			continue // CRC-16 mismatch or no next sync yet confirmable: false sync
		}
	}
	return Found{}, false, false, len(buf), rejected
}

// confirmFrame decides whether the frame header h found at buf[p:] is real.
// If a further frame header is found starting at some q > p, the span
// [p,q) is accepted once the fast-path/forced-CRC-16 rule is satisfied.
// At EOF with no further header to find, the remaining
// bytes of buf are flushed as the final frame without a CRC-16 check, even
// when state.DoCRC is set, so a truncated last frame is still emitted.
func confirmFrame(buf []byte, p int, h *Header, atEOF bool, state State) (end int, confirmed bool, needMore bool) {
	minEnd := p + h.Len + 1 // header plus at least one subframe byte
	for q := p + 1; q < len(buf); q++ {
		if q < minEnd || buf[q] != 0xFF {
			continue
		}
		next, err := ParseHeader(buf[q:])
		if err != nil {
			continue
		}
		if !requiresCRC16(state, next) {
			return q, true, false // fast path: boundary found, no change, docrc off
		}
		return q, verifyCRC16(buf[p:q]), false
	}
	if atEOF && len(buf) >= minEnd {
		return len(buf), true, false
	}
	return 0, false, !atEOF
}

// requiresCRC16 decides whether a boundary forces a CRC-16 check: docrc,
// or the candidate next frame's effective sample rate or channel assignment
// differs from the state established by the frame being confirmed. A next
// header with SampleRate == 0 ("use current") never counts as a change.
func requiresCRC16(state State, next *Header) bool {
	if state.DoCRC {
		return true
	}
	effectiveRate := next.SampleRate
	if effectiveRate == 0 {
		effectiveRate = state.SampleRate
	}
	return effectiveRate != state.SampleRate || next.ChannelAssignment != state.ChannelAssignment
}

func verifyCRC16(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	body, footer := frame[:len(frame)-2], frame[len(frame)-2:]
	want := uint16(footer[0])<<8 | uint16(footer[1])
	return crc.CRC16(body) == want
}
