package palmki

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type fakeStrategy struct {
	obs []Observation
	err error
}

func (s *fakeStrategy) Scan(ctx context.Context, window time.Duration) ([]Observation, error) {
	return s.obs, s.err
}

type fakeSession struct {
	addr   string
	tree   []Service
	frames [][]byte

	capErr error
	subErr error

	unsubscribed bool
	closed       bool
}

func (s *fakeSession) Addr() string { return s.addr }

func (s *fakeSession) Capabilities(ctx context.Context) ([]Service, error) {
	return s.tree, s.capErr
}

func (s *fakeSession) Subscribe(ctx context.Context, ep Endpoint, depth int) (<-chan []byte, error) {
	if s.subErr != nil {
		return nil, s.subErr
	}
	ch := make(chan []byte, depth)
	for _, f := range s.frames {
		ch <- f
	}
	return ch, nil
}

func (s *fakeSession) Unsubscribe(ep Endpoint) error {
	s.unsubscribed = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeRadio struct {
	needsProbe bool
	probeErr   error
	strategy   *fakeStrategy
	dialErr    error
	session    *fakeSession
}

func (r *fakeRadio) NeedsProbe() bool                { return r.needsProbe }
func (r *fakeRadio) Probe(ctx context.Context) error { return r.probeErr }
func (r *fakeRadio) Strategy() ScanStrategy          { return r.strategy }

func (r *fakeRadio) Dial(ctx context.Context, addr string) (Session, error) {
	if r.dialErr != nil {
		return nil, r.dialErr
	}
	r.session.addr = addr
	return r.session, nil
}

func testConfig() Config {
	return Config{
		StreamBudget: 100 * time.Millisecond,
		ProbeBudget:  50 * time.Millisecond,
		ProbeStep:    10 * time.Millisecond,
	}
}

func payloadTree() []Service {
	return []Service{{
		UUID: PayloadServiceID,
		Characteristics: []Characteristic{
			{UUID: PayloadCharacteristicID, Properties: PropertyNotify, Handle: 7},
		},
	}}
}

func TestWorkflowFinished(t *testing.T) {
	sess := &fakeSession{
		tree: payloadTree(),
		frames: [][]byte{
			Frame{Seq: 2, Total: 3, Payload: []byte("EF")}.Encode(),
			Frame{Seq: 0, Total: 3, Payload: []byte("AB")}.Encode(),
			Frame{Seq: 1, Total: 3, Payload: []byte("CD")}.Encode(),
		},
	}
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{beaconObs("11:22:33:44:55:66", intp(-40))}},
		session:  sess,
	}

	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusFinished {
		t.Fatalf("status: got %s, info: %s", rep.Status, rep.Info)
	}
	if string(rep.Payload) != "ABCDEF" {
		t.Errorf("payload: got %q, want ABCDEF", rep.Payload)
	}
	if rep.Beacon == nil || rep.Beacon.Tag != Marker || rep.Beacon.Counter != 7 {
		t.Errorf("beacon: got %+v", rep.Beacon)
	}
	if !strings.Contains(rep.Info, "Value: ABCDEF") {
		t.Errorf("info missing value: %s", rep.Info)
	}
	if !sess.unsubscribed || !sess.closed {
		t.Error("session resources not released")
	}
}

func TestWorkflowIncompleteReportsProgress(t *testing.T) {
	sess := &fakeSession{
		tree: payloadTree(),
		frames: [][]byte{
			Frame{Seq: 0, Total: 3, Payload: []byte("AB")}.Encode(),
			Frame{Seq: 1, Total: 3, Payload: []byte("CD")}.Encode(),
		},
	}
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{beaconObs("aa", intp(-40))}},
		session:  sess,
	}

	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusIncomplete {
		t.Fatalf("status: got %s, want Incomplete", rep.Status)
	}
	if !strings.Contains(rep.Info, "2/3") {
		t.Errorf("info missing 2/3: %s", rep.Info)
	}
	if !sess.unsubscribed || !sess.closed {
		t.Error("subscription must be released on timeout")
	}
}

func TestWorkflowNoMatch(t *testing.T) {
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{
			{Addr: "aa", ManufacturerData: map[uint16][]byte{1: []byte("noise")}},
		}},
	}
	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusNoMatch {
		t.Fatalf("status: got %s, want No match", rep.Status)
	}
}

func TestWorkflowConnectFailedKeepsAddr(t *testing.T) {
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{beaconObs("de:ad:be:ef:00:01", intp(-40))}},
		dialErr:  errors.New("peer unreachable"),
	}
	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusConnectFailed {
		t.Fatalf("status: got %s, want Connect failed", rep.Status)
	}
	if !strings.Contains(rep.Info, "de:ad:be:ef:00:01") {
		t.Errorf("info missing peer address: %s", rep.Info)
	}
}

func TestWorkflowCapabilityNotFound(t *testing.T) {
	sess := &fakeSession{tree: []Service{{UUID: "180a"}}}
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{beaconObs("aa", intp(-40))}},
		session:  sess,
	}
	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusCapabilityNotFound {
		t.Fatalf("status: got %s, want Capability not found", rep.Status)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestWorkflowTransportErrorOnDiscovery(t *testing.T) {
	sess := &fakeSession{capErr: errors.New("session dropped")}
	radio := &fakeRadio{
		strategy: &fakeStrategy{obs: []Observation{beaconObs("aa", intp(-40))}},
		session:  sess,
	}
	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusTransportError {
		t.Fatalf("status: got %s, want Transport error", rep.Status)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestWorkflowAvailabilityTimeout(t *testing.T) {
	radio := &fakeRadio{
		needsProbe: true,
		probeErr:   errors.New("radio off"),
		strategy:   &fakeStrategy{},
	}
	rep := NewWorkflow(radio, testConfig(), zerolog.Nop()).Run(context.Background())
	if rep.Status != StatusAvailabilityTimeout {
		t.Fatalf("status: got %s, want Availability timeout", rep.Status)
	}
}

func TestWorkflowIsOneShot(t *testing.T) {
	radio := &fakeRadio{strategy: &fakeStrategy{}}
	w := NewWorkflow(radio, testConfig(), zerolog.Nop())
	w.Run(context.Background())
	if rep := w.Run(context.Background()); rep.Status != StatusBusy {
		t.Errorf("second run: got %s, want Busy", rep.Status)
	}
}
