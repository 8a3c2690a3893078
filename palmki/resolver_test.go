package palmki

import "testing"

var testTree = []Service{
	{
		UUID: "180a",
		Characteristics: []Characteristic{
			{UUID: "2a29", Properties: PropertyRead, Handle: 3},
		},
	},
	{
		UUID: PayloadServiceID,
		Characteristics: []Characteristic{
			{UUID: "ffff", Properties: PropertyRead, Handle: 9},
			{UUID: PayloadCharacteristicID, Properties: PropertyRead | PropertyNotify, Handle: 11},
		},
	},
}

func TestLocateFindsEndpoint(t *testing.T) {
	ep, err := Locate(testTree, PayloadServiceID, PayloadCharacteristicID, PropertyNotify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Handle != 11 || ep.ServiceUUID != PayloadServiceID {
		t.Errorf("got %+v, want handle 11 under %s", ep, PayloadServiceID)
	}
}

func TestLocateCaseInsensitive(t *testing.T) {
	upperSvc := "E2A2B8E0-0B6C-4B6D-8868-C2B53F6C8D7B"
	upperChr := "C3B3C9F0-1C7D-4E7E-8A8B-9E0F1D0A2B3C"
	if _, err := Locate(testTree, upperSvc, upperChr, PropertyNotify); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLocateFirstUsableMatchWins(t *testing.T) {
	tree := []Service{{
		UUID: "aaaa",
		Characteristics: []Characteristic{
			{UUID: "bbbb", Properties: PropertyRead, Handle: 1},
			{UUID: "bbbb", Properties: PropertyRead | PropertyNotify, Handle: 2},
			{UUID: "bbbb", Properties: PropertyNotify, Handle: 3},
		},
	}}
	ep, err := Locate(tree, "aaaa", "bbbb", PropertyNotify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Handle != 2 {
		t.Errorf("handle: got %d, want 2", ep.Handle)
	}
}

func TestLocateDistinguishesFailures(t *testing.T) {
	tests := []struct {
		name    string
		svc     string
		chr     string
		need    Property
		wantErr error
	}{
		{"service absent", "dead", PayloadCharacteristicID, PropertyNotify, ErrServiceNotFound},
		{"characteristic absent", PayloadServiceID, "beef", PropertyNotify, ErrCharacteristicNotFound},
		{"property absent", PayloadServiceID, "ffff", PropertyNotify, ErrCharacteristicNotUsable},
	}
	for _, tt := range tests {
		if _, err := Locate(testTree, tt.svc, tt.chr, tt.need); err != tt.wantErr {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestPropertyString(t *testing.T) {
	got := (PropertyRead | PropertyNotify).String()
	if got != "read|notify" {
		t.Errorf("got %q, want %q", got, "read|notify")
	}
}
