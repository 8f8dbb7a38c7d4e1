package ringbuf

import "testing"

func TestAppendAndBytes(t *testing.T) {
	b := New()
	b.Append([]byte("hello"), 100)
	b.Append([]byte(" world"), 105)

	if got, want := string(b.Bytes()), "hello world"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
	if off, ok := b.BaseOffset(); !ok || off != 100 {
		t.Fatalf("BaseOffset() = (%d, %v), want (100, true)", off, ok)
	}
}

func TestDiscontinuityInvalidatesOffset(t *testing.T) {
	b := New()
	b.Append([]byte("abc"), 0)
	b.Append([]byte("xyz"), 999) // not contiguous (expected offset 3)

	if _, ok := b.BaseOffset(); ok {
		t.Fatal("BaseOffset() should be unknown after a discontinuity")
	}
}

func TestUnknownOffsetPacketInvalidates(t *testing.T) {
	b := New()
	b.Append([]byte("abc"), 0)
	b.Append([]byte("def"), NoOffset)

	if _, ok := b.BaseOffset(); ok {
		t.Fatal("BaseOffset() should be unknown after an unoffsetted packet")
	}
}

func TestStickyUntilDrained(t *testing.T) {
	b := New()
	b.Append([]byte("abc"), 0)
	b.Append([]byte("xyz"), 999) // discontinuity -> unknown

	b.Drop(3) // consume "abc"; buffer still holds "xyz", not empty
	b.Append([]byte("more"), 123)
	if _, ok := b.BaseOffset(); ok {
		t.Fatal("offset should remain unknown while buffer is non-empty")
	}

	b.Drop(b.Len()) // fully drain
	b.Append([]byte("fresh"), 500)
	if off, ok := b.BaseOffset(); !ok || off != 500 {
		t.Fatalf("BaseOffset() = (%d, %v), want (500, true) after re-anchor", off, ok)
	}
}

func TestDropAdvancesOffsetAndCompacts(t *testing.T) {
	b := New()
	b.Append([]byte("0123456789"), 0)
	b.Drop(6)

	if got, want := string(b.Bytes()), "6789"; got != want {
		t.Fatalf("Bytes() = %q, want %q", got, want)
	}
	if off, ok := b.BaseOffset(); !ok || off != 6 {
		t.Fatalf("BaseOffset() = (%d, %v), want (6, true)", off, ok)
	}

	b.Append([]byte("ABC"), 10)
	if got, want := string(b.Bytes()), "6789ABC"; got != want {
		t.Fatalf("Bytes() after append post-compact = %q, want %q", got, want)
	}
}

func TestResetClearsEverything(t *testing.T) {
	b := New()
	b.Append([]byte("hello"), 42)
	b.Reset()

	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
	if _, ok := b.BaseOffset(); ok {
		t.Fatal("BaseOffset() should be unknown after Reset")
	}
}
