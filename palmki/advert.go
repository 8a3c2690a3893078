package palmki

import (
	"encoding/hex"
	"strings"
	"time"
)

// Observation is a single advertisement sighting. RSSI and TxPower are
// nil when the advertisement did not carry them.
type Observation struct {
	Addr             string
	Name             string
	RSSI             *int
	TxPower          *int
	Services         []string
	ManufacturerData map[uint16][]byte
	SeenAt           time.Time
}

// Candidate reports whether the observation carries any manufacturer
// data at all.
func (o Observation) Candidate() bool {
	return len(o.ManufacturerData) > 0
}

// Matches reports whether the hex encoding of the marker appears inside
// the hex encoding of any manufacturer data value. The marker may sit at
// any offset, e.g. after a version byte.
func Matches(o Observation, marker string) bool {
	_, ok := MatchedData(o, marker)
	return ok
}

// MatchedData returns the first manufacturer data value whose hex
// encoding contains the marker's hex encoding.
func MatchedData(o Observation, marker string) ([]byte, bool) {
	markerHex := hex.EncodeToString([]byte(marker))
	for _, data := range o.ManufacturerData {
		if strings.Contains(hex.EncodeToString(data), markerHex) {
			return data, true
		}
	}
	return nil, false
}

// Select picks the matching observation with the strongest signal. An
// observation without an RSSI ranks below every observation with one;
// ties keep the first-observed record. Returns nil when nothing matches.
func Select(obs []Observation, marker string) *Observation {
	var best *Observation
	for i := range obs {
		if !Matches(obs[i], marker) {
			continue
		}
		if best == nil || stronger(obs[i].RSSI, best.RSSI) {
			best = &obs[i]
		}
	}
	return best
}

// stronger reports whether a is strictly stronger than b, so that equal
// signals keep the earlier observation.
func stronger(a, b *int) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a > *b
}
