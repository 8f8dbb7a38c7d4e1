// Command reframe runs the reframer over a file-mode FLAC input, writing
// each confirmed frame's bytes to an output file and logging its
// timestamp and duration. It demonstrates the Reframer against a minimal
// file-backed pid.PID implementation, the way flac2raw demonstrates
// github.com/drgolem/go-flac's decoder against a raw-PCM sink.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/drgolem/go-flac-reframer/pid"
	"github.com/drgolem/go-flac-reframer/reframer"
)

func main() {
	slog.Info("FLAC reframer")

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: reframe <infile.flac> <outfile.frames>")
		return
	}

	inFile, outFile := os.Args[1], os.Args[2]
	slog.Info("processing", "input", inFile, "output", outFile)

	in, err := os.Open(inFile)
	if err != nil {
		slog.Error("failed to open input", "error", err)
		os.Exit(1)
	}
	defer in.Close()

	out, err := os.Create(outFile)
	if err != nil {
		slog.Error("failed to create output", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	var totalBytes int64
	if fi, err := in.Stat(); err == nil {
		totalBytes = fi.Size()
	}

	host := newFileHost(out)
	r := reframer.New(host, reframer.Config{Index: 1.0, TotalBytes: totalBytes}, nil)

	buf := make([]byte, 32*1024)
	var offset int64
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			pkt := &filePacket{data: append([]byte(nil), buf[:n]...), byteOffset: offset}
			offset += int64(n)
			atEOF := readErr == io.EOF
			if err := r.Process(pkt, atEOF); err != nil {
				slog.Error("reframing failed", "error", err)
				os.Exit(1)
			}
		}
		if readErr == io.EOF {
			// os.File reports io.EOF only on a read that returned no data,
			// so the final-frame flush needs its own call.
			if err := r.Process(nil, true); err != nil {
				slog.Error("reframing failed", "error", err)
				os.Exit(1)
			}
			break
		}
		if readErr != nil {
			slog.Error("failed to read input", "error", readErr)
			os.Exit(1)
		}
	}

	slog.Info("reframing complete",
		"frames", host.frameCount,
		"sample_rate", host.properties[pid.PropSampleRate],
		"channels", host.properties[pid.PropNumChannels],
		"duration", host.properties[pid.PropDuration])
}

// filePacket hands the reframer one chunk read from the input file,
// declaring the byte offset the chunk started at so the reframer can
// report byte_offset on output packets and build its seek index.
type filePacket struct {
	data       []byte
	byteOffset int64
}

func (p *filePacket) Bytes() []byte             { return p.data }
func (p *filePacket) CTS() (int64, bool)         { return 0, false }
func (p *filePacket) ByteOffset() (int64, bool) { return p.byteOffset, true }

// fileHost is a minimal pid.PID backed by a single output file: output
// packets are appended to it frame by frame, and properties/events are
// logged rather than propagated further.
type fileHost struct {
	out        *os.File
	properties map[string]any
	frameCount int
}

func newFileHost(out *os.File) *fileHost {
	return &fileHost{out: out, properties: map[string]any{}}
}

func (h *fileHost) GetPacket() (pid.InputPacket, error) { return nil, nil }

func (h *fileHost) DropPacket(pid.InputPacket) error { return nil }

func (h *fileHost) NewOutputPacket(n int) (pid.OutputPacket, error) {
	return &filePacketOut{}, nil
}

func (h *fileHost) SendPacket(p pid.OutputPacket) error {
	fp := p.(*filePacketOut)
	if _, err := h.out.Write(fp.bytes); err != nil {
		return err
	}
	h.frameCount++
	slog.Debug("frame", "cts", fp.cts, "duration", fp.duration, "byte_offset", fp.byteOffset)
	return nil
}

func (h *fileHost) SetProperty(name string, v any) error {
	h.properties[name] = v
	slog.Info("property", "name", name, "value", v)
	return nil
}

func (h *fileHost) SendEvent(ev pid.Event) error {
	slog.Info("event", "type", fmt.Sprintf("%T", ev))
	return nil
}

// filePacketOut accumulates one output packet's fields before fileHost
// writes its bytes to the output file.
type filePacketOut struct {
	bytes      []byte
	cts        int64
	duration   int64
	byteOffset int64
}

func (o *filePacketOut) SetBytes(b []byte)               { o.bytes = b }
func (o *filePacketOut) SetCTS(cts int64)                { o.cts = cts }
func (o *filePacketOut) SetDuration(d int64)             { o.duration = d }
func (o *filePacketOut) SetSAP(int)                      {}
func (o *filePacketOut) SetFraming(leading, trailing int) {}
func (o *filePacketOut) SetByteOffset(offset int64)      { o.byteOffset = offset }
