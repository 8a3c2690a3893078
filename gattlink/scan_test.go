package gattlink

import (
	"bytes"
	"testing"
)

func TestSplitManufacturerData(t *testing.T) {
	raw := []byte{0x59, 0x00, 0x01, 'P', 'A', 'L', 'M', 'K', 'I', 0x07, 0x00}
	m := splitManufacturerData(raw)
	value, ok := m[0x0059]
	if !ok {
		t.Fatalf("company id not parsed, got %v", m)
	}
	if !bytes.Equal(value, raw[2:]) {
		t.Errorf("value: got %x, want %x", value, raw[2:])
	}
}

func TestSplitManufacturerDataTooShort(t *testing.T) {
	if m := splitManufacturerData([]byte{0x59}); m != nil {
		t.Errorf("got %v, want nil", m)
	}
	if m := splitManufacturerData(nil); m != nil {
		t.Errorf("got %v, want nil", m)
	}
}
