package palmki

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// FrameHeaderLen is sequence index + total count + payload length,
// each a little-endian uint16.
const FrameHeaderLen = 6

var (
	ErrFrameTooShort = errors.New("frame header truncated")
	ErrFrameLength   = errors.New("declared frame length exceeds available bytes")
)

// Frame is one notification's worth of a chunked payload.
type Frame struct {
	Seq     uint16
	Total   uint16
	Payload []byte
}

func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, f.Seq)
	binary.Write(&buf, binary.LittleEndian, f.Total)
	binary.Write(&buf, binary.LittleEndian, uint16(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes()
}

// DecodeFrame parses a raw notification value. Bytes past the declared
// payload length are ignored.
func DecodeFrame(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) < FrameHeaderLen {
		return f, ErrFrameTooShort
	}
	f.Seq = binary.LittleEndian.Uint16(buf[0:2])
	f.Total = binary.LittleEndian.Uint16(buf[2:4])
	length := int(binary.LittleEndian.Uint16(buf[4:6]))
	if length > len(buf)-FrameHeaderLen {
		return f, ErrFrameLength
	}
	f.Payload = make([]byte, length)
	copy(f.Payload, buf[FrameHeaderLen:FrameHeaderLen+length])
	return f, nil
}
