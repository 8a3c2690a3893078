package palmki

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// TagLen is the length of the ASCII marker tag.
	TagLen = 6
	// BeaconIDLen is version + tag + rolling counter.
	BeaconIDLen = 1 + TagLen + 2
)

var (
	ErrBeaconTooShort   = errors.New("manufacturer payload too short")
	ErrBeaconTagMissing = errors.New("marker tag not present in manufacturer payload")
)

// BeaconID is the identification block the beacon embeds in one
// manufacturer data value: a version byte, a 6 byte ASCII tag and a
// little-endian rolling counter.
type BeaconID struct {
	Version uint8
	Tag     string
	Counter uint16
}

func (b BeaconID) Encode() []byte {
	tag := make([]byte, TagLen)
	copy(tag, b.Tag)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, b.Version)
	buf.Write(tag)
	binary.Write(&buf, binary.LittleEndian, b.Counter)
	return buf.Bytes()
}

// DecodeBeaconID parses the identification block out of a raw
// manufacturer data value. The tag may sit after a vendor prefix, so the
// decoder locates it first and reads the version byte immediately before
// it and the counter immediately after.
func DecodeBeaconID(data []byte, tag string) (BeaconID, error) {
	var b BeaconID
	if len(data) < BeaconIDLen {
		return b, ErrBeaconTooShort
	}
	i := bytes.Index(data, []byte(tag))
	if i < 1 || i+len(tag)+2 > len(data) {
		return b, ErrBeaconTagMissing
	}
	b.Version = data[i-1]
	b.Tag = string(data[i : i+len(tag)])
	b.Counter = binary.LittleEndian.Uint16(data[i+len(tag) : i+len(tag)+2])
	return b, nil
}
