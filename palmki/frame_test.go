package palmki

import (
	"bytes"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	raw := Frame{Seq: 2, Total: 3, Payload: []byte("EF")}.Encode()
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seq != 2 || f.Total != 3 || !bytes.Equal(f.Payload, []byte("EF")) {
		t.Errorf("got %+v, want seq=2 total=3 payload=EF", f)
	}
}

func TestDecodeFrameHeaderLayout(t *testing.T) {
	// seq=0x0102, total=0x0304, len=2, little-endian fields
	raw := []byte{0x02, 0x01, 0x04, 0x03, 0x02, 0x00, 'h', 'i'}
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seq != 0x0102 {
		t.Errorf("seq: got %#x, want 0x0102", f.Seq)
	}
	if f.Total != 0x0304 {
		t.Errorf("total: got %#x, want 0x0304", f.Total)
	}
	if string(f.Payload) != "hi" {
		t.Errorf("payload: got %q, want %q", f.Payload, "hi")
	}
}

func TestDecodeFrameTruncatedHeader(t *testing.T) {
	for size := 0; size < FrameHeaderLen; size++ {
		if _, err := DecodeFrame(make([]byte, size)); err != ErrFrameTooShort {
			t.Errorf("size %d: got %v, want ErrFrameTooShort", size, err)
		}
	}
}

func TestDecodeFrameDeclaredLengthTooLong(t *testing.T) {
	// Declares 5 payload bytes but carries only 2.
	raw := []byte{0x00, 0x00, 0x01, 0x00, 0x05, 0x00, 'a', 'b'}
	if _, err := DecodeFrame(raw); err != ErrFrameLength {
		t.Errorf("got %v, want ErrFrameLength", err)
	}
}

func TestDecodeFrameIgnoresTrailingBytes(t *testing.T) {
	raw := append(Frame{Seq: 0, Total: 1, Payload: []byte("ok")}.Encode(), 0xde, 0xad)
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(f.Payload) != "ok" {
		t.Errorf("payload: got %q, want %q", f.Payload, "ok")
	}
}
