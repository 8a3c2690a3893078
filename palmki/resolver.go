package palmki

import (
	"strings"

	"github.com/pkg/errors"
)

// Property is a characteristic's capability bitmask.
type Property uint8

const (
	PropertyRead Property = 1 << iota
	PropertyWrite
	PropertyNotify
	PropertyIndicate
)

func (p Property) Has(q Property) bool { return p&q == q }

func (p Property) String() string {
	var ss []string
	if p.Has(PropertyRead) {
		ss = append(ss, "read")
	}
	if p.Has(PropertyWrite) {
		ss = append(ss, "write")
	}
	if p.Has(PropertyNotify) {
		ss = append(ss, "notify")
	}
	if p.Has(PropertyIndicate) {
		ss = append(ss, "indicate")
	}
	return strings.Join(ss, "|")
}

// Characteristic is one addressable capability inside a service.
type Characteristic struct {
	UUID       string
	Properties Property
	Handle     uint16
}

// Service is one node of a session's capability tree.
type Service struct {
	UUID            string
	Characteristics []Characteristic
}

// Endpoint is a resolved service/characteristic pair.
type Endpoint struct {
	ServiceUUID        string
	CharacteristicUUID string
	Properties         Property
	Handle             uint16
}

var (
	ErrServiceNotFound = errors.New("service not found")

	ErrCharacteristicNotFound = errors.New("characteristic not found")

	// ErrCharacteristicNotUsable means the identifier matched but no
	// matching characteristic carries the required property.
	ErrCharacteristicNotUsable = errors.New("characteristic missing required property")
)

// Locate walks the capability tree in enumeration order and returns the
// first characteristic matching both identifiers (case-insensitive) that
// carries the required property. A matching identifier without the
// property is skipped, not fatal; if the tree is exhausted the error
// distinguishes not-found from not-usable.
func Locate(tree []Service, serviceID, characteristicID string, need Property) (Endpoint, error) {
	foundService := false
	foundCharacteristic := false
	for _, s := range tree {
		if !strings.EqualFold(s.UUID, serviceID) {
			continue
		}
		foundService = true
		for _, c := range s.Characteristics {
			if !strings.EqualFold(c.UUID, characteristicID) {
				continue
			}
			foundCharacteristic = true
			if !c.Properties.Has(need) {
				continue
			}
			return Endpoint{
				ServiceUUID:        s.UUID,
				CharacteristicUUID: c.UUID,
				Properties:         c.Properties,
				Handle:             c.Handle,
			}, nil
		}
	}
	switch {
	case foundCharacteristic:
		return Endpoint{}, ErrCharacteristicNotUsable
	case foundService:
		return Endpoint{}, ErrCharacteristicNotFound
	default:
		return Endpoint{}, ErrServiceNotFound
	}
}
