package reframer

import (
	"bytes"

	"github.com/drgolem/go-flac-reframer/meta"
)

// mimeFLAC is the MIME type Probe reports for a confirmed match.
const mimeFLAC = "audio/flac"

// Probe reports whether buf opens with the FLAC magic. A host's
// MIME-sniffing step can call this on the first few bytes of a source
// before committing to a reframer instance for it; ok is true only when
// buf is long enough to hold the magic and it matches.
func Probe(buf []byte) (mimeType string, ok bool) {
	if len(buf) < len(meta.Magic) || !bytes.Equal(buf[:len(meta.Magic)], meta.Magic[:]) {
		return "", false
	}
	return mimeFLAC, true
}
