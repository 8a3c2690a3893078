package palmki

import "testing"

func intp(v int) *int { return &v }

func beaconObs(addr string, rssi *int) Observation {
	raw := append([]byte{0x01}, BeaconID{Version: 1, Tag: Marker, Counter: 7}.Encode()...)
	return Observation{
		Addr:             addr,
		RSSI:             rssi,
		ManufacturerData: map[uint16][]byte{0x0059: raw},
	}
}

func TestMatchesAtNonZeroOffset(t *testing.T) {
	o := Observation{ManufacturerData: map[uint16][]byte{
		1: append([]byte{0xde, 0xad, 0xbe}, []byte(Marker)...),
	}}
	if !Matches(o, Marker) {
		t.Error("marker at non-zero offset not matched")
	}
}

func TestMatchesRejectsAbsentMarker(t *testing.T) {
	o := Observation{ManufacturerData: map[uint16][]byte{
		1: []byte("something else entirely"),
	}}
	if Matches(o, Marker) {
		t.Error("matched an observation without the marker")
	}
}

func TestMatchesEmptyManufacturerData(t *testing.T) {
	if Matches(Observation{}, Marker) {
		t.Error("matched an observation with no manufacturer data")
	}
}

func TestSelectStrongestRSSI(t *testing.T) {
	obs := []Observation{
		beaconObs("aa", intp(-40)),
		beaconObs("bb", nil),
		beaconObs("cc", intp(-30)),
	}
	got := Select(obs, Marker)
	if got == nil || got.Addr != "cc" {
		t.Fatalf("got %+v, want addr cc", got)
	}
}

func TestSelectAbsentRSSIRanksLast(t *testing.T) {
	obs := []Observation{
		beaconObs("aa", nil),
		beaconObs("bb", intp(-90)),
	}
	got := Select(obs, Marker)
	if got == nil || got.Addr != "bb" {
		t.Fatalf("got %+v, want addr bb", got)
	}
}

func TestSelectTieKeepsFirstObserved(t *testing.T) {
	obs := []Observation{
		beaconObs("aa", intp(-50)),
		beaconObs("bb", intp(-50)),
	}
	got := Select(obs, Marker)
	if got == nil || got.Addr != "aa" {
		t.Fatalf("got %+v, want addr aa", got)
	}
}

func TestSelectSkipsNonMatches(t *testing.T) {
	obs := []Observation{
		{Addr: "aa", RSSI: intp(-10), ManufacturerData: map[uint16][]byte{1: []byte("noise")}},
		beaconObs("bb", intp(-80)),
	}
	got := Select(obs, Marker)
	if got == nil || got.Addr != "bb" {
		t.Fatalf("got %+v, want addr bb", got)
	}
}

func TestSelectNoMatch(t *testing.T) {
	if got := Select([]Observation{{Addr: "aa"}}, Marker); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
