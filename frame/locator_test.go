package frame

import (
	"testing"

	"github.com/drgolem/go-flac-reframer/internal/crc"
)

// buildFrame packs a complete, CRC-16-valid frame: a header from
// buildHeader plus arbitrary subframe payload bytes and a trailing CRC-16
// footer.
func buildFrame(header []byte, payload []byte) []byte {
	body := append(append([]byte{}, header...), payload...)
	sum := crc.CRC16(body)
	return append(body, byte(sum>>8), byte(sum))
}

func validHeader(frameNum byte) []byte {
	h := buildHeader(8, 9, 1, 4, frameNum, 0x00)
	return h[:len(h)-1] // buildHeader appends a subframe peek byte; frames carry that as payload[0]
}

func TestLocateTwoFramesConfirmedByFollowingSync(t *testing.T) {
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	f2 := buildFrame(validHeader(1), []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	buf := append(append([]byte{}, f1...), f2...)
	st := State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true}

	found, ok, needMore, _, _ := Locate(buf, 0, false, st)
	if !ok || needMore {
		t.Fatalf("Locate: ok=%v needMore=%v, want ok=true needMore=false", ok, needMore)
	}
	if found.Start != 0 || found.End != len(f1) {
		t.Fatalf("Locate: Start=%d End=%d, want 0 %d", found.Start, found.End, len(f1))
	}

	found2, ok2, _, _, _ := Locate(buf, found.End, true, st)
	if !ok2 {
		t.Fatal("Locate (second frame, atEOF): ok = false")
	}
	if found2.Start != len(f1) || found2.End != len(buf) {
		t.Fatalf("Locate (second frame): Start=%d End=%d, want %d %d", found2.Start, found2.End, len(f1), len(buf))
	}
}

func TestLocateNeedsMoreDataMidStream(t *testing.T) {
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	// No following sync buffered yet, and not at EOF: must wait.
	_, ok, needMore, _, _ := Locate(f1, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true})
	if ok {
		t.Fatal("Locate: ok = true without a confirming next frame or EOF")
	}
	if !needMore {
		t.Fatal("Locate: needMore = false, want true")
	}
}

func TestLocateFinalFrameAtEOF(t *testing.T) {
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	found, ok, needMore, _, _ := Locate(f1, 0, true, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true})
	if !ok || needMore {
		t.Fatalf("Locate at EOF: ok=%v needMore=%v, want true false", ok, needMore)
	}
	if found.Start != 0 || found.End != len(f1) {
		t.Fatalf("Locate at EOF: Start=%d End=%d, want 0 %d", found.Start, found.End, len(f1))
	}
}

func TestLocateFalseSyncInsidePayloadIsSkipped(t *testing.T) {
	// Plant a coincidental 0xFF 0xF8 pair inside the payload; it should not
	// be confirmed as a frame start because the bytes around it don't carry
	// a valid header, and the real frame boundary must still be found.
	payload := []byte{0x00, 0xFF, 0xF8, 0x00, 0x01, 0x02, 0x03, 0x04}
	f1 := buildFrame(validHeader(0), payload)
	f2 := buildFrame(validHeader(1), []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	buf := append(append([]byte{}, f1...), f2...)

	found, ok, needMore, _, _ := Locate(buf, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true})
	if !ok || needMore {
		t.Fatalf("Locate: ok=%v needMore=%v, want true false", ok, needMore)
	}
	if found.End != len(f1) {
		t.Fatalf("Locate: End = %d, want %d (planted false sync must not shorten the frame)", found.End, len(f1))
	}
}

func TestLocateCorruptedFrameIsSkippedAsFalseSync(t *testing.T) {
	// A corrupted frame is indistinguishable from a false sync: Locate must
	// skip straight past it to the next frame that does confirm, rather
	// than surfacing it.
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	f1[len(f1)-1] ^= 0xFF // corrupt the CRC-16 footer
	f2 := buildFrame(validHeader(1), []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	f3 := buildFrame(validHeader(2), []byte{0x00, 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26})
	buf := append(append(append([]byte{}, f1...), f2...), f3...)

	found, ok, needMore, _, rejected := Locate(buf, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true})
	if !ok || needMore {
		t.Fatalf("Locate: ok=%v needMore=%v, want true false", ok, needMore)
	}
	if found.Start != len(f1) || found.End != len(f1)+len(f2) {
		t.Fatalf("Locate: Start=%d End=%d, want %d %d (corrupted f1 skipped entirely)", found.Start, found.End, len(f1), len(f1)+len(f2))
	}
	if rejected == 0 {
		t.Error("rejected = 0, want at least 1 (the corrupted frame's CRC-16 failure)")
	}
}

func TestLocateReportsZeroRejectedOnCleanConfirm(t *testing.T) {
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	f2 := buildFrame(validHeader(1), []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	buf := append(append([]byte{}, f1...), f2...)

	_, ok, _, _, rejected := Locate(buf, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: true})
	if !ok {
		t.Fatal("Locate: ok = false")
	}
	if rejected != 0 {
		t.Errorf("rejected = %d, want 0 for a clean confirm with no false syncs", rejected)
	}
}

func TestLocateFastPathSkipsCRCWhenUnforced(t *testing.T) {
	// With docrc off and no sample-rate/channel-assignment change, a
	// corrupted CRC-16 footer must NOT be caught — the fast path trusts the
	// header-to-header boundary alone.
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	f1[len(f1)-1] ^= 0xFF
	f2 := buildFrame(validHeader(1), []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	buf := append(append([]byte{}, f1...), f2...)

	found, ok, needMore, _, _ := Locate(buf, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: false})
	if !ok || needMore {
		t.Fatalf("Locate: ok=%v needMore=%v, want true false (fast path should not reject on CRC alone)", ok, needMore)
	}
	if found.End != len(f1) {
		t.Fatalf("Locate: End = %d, want %d", found.End, len(f1))
	}
}

func TestLocateSampleRateChangeForcesCRC(t *testing.T) {
	// A sample-rate change at the boundary forces the CRC-16 check even
	// with docrc off; a corrupted footer there must be caught.
	f1 := buildFrame(validHeader(0), []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	f1[len(f1)-1] ^= 0xFF
	h2 := buildHeader(8, 10, 1, 4, 1, 0x00) // sample-rate code 10 = 48000, was 44100
	h2 = h2[:len(h2)-1]
	f2 := buildFrame(h2, []byte{0x00, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16})
	f3 := buildFrame(validHeader(2), []byte{0x00, 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26})
	buf := append(append(append([]byte{}, f1...), f2...), f3...)

	found, ok, needMore, _, _ := Locate(buf, 0, false, State{SampleRate: 44100, ChannelAssignment: 1, DoCRC: false})
	if !ok || needMore {
		t.Fatalf("Locate: ok=%v needMore=%v, want true false", ok, needMore)
	}
	if found.Start != len(f1) || found.End != len(f1)+len(f2) {
		t.Fatalf("Locate: Start=%d End=%d, want %d %d (corrupted f1 caught by forced CRC on rate change)", found.Start, found.End, len(f1), len(f1)+len(f2))
	}
}
