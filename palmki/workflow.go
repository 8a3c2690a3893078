package palmki

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Stage is the workflow's current position. Every transition is one-shot
// per invocation; a caller wanting another attempt creates a new
// Workflow.
type Stage int

const (
	StageIdle Stage = iota
	StageProbingAvailability
	StageScanning
	StageDeviceSelected
	StageConnecting
	StageResolvingCapability
	StageStreaming
	StageDone
)

func (s Stage) String() string {
	return []string{
		"idle",
		"probing availability",
		"scanning",
		"device selected",
		"connecting",
		"resolving capability",
		"streaming",
		"done",
	}[s]
}

// Config carries the per-stage budgets and target identifiers of one
// workflow run. Zero values fall back to the package defaults.
type Config struct {
	Marker             string
	ServiceUUID        string
	CharacteristicUUID string

	ScanWindow     time.Duration
	ConnectTimeout time.Duration
	StreamBudget   time.Duration
	ProbeBudget    time.Duration
	ProbeStep      time.Duration
	QueueDepth     int
}

func (c Config) withDefaults() Config {
	if c.Marker == "" {
		c.Marker = Marker
	}
	if c.ServiceUUID == "" {
		c.ServiceUUID = PayloadServiceID
	}
	if c.CharacteristicUUID == "" {
		c.CharacteristicUUID = PayloadCharacteristicID
	}
	if c.ScanWindow <= 0 {
		c.ScanWindow = DefaultScanWindow
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.StreamBudget <= 0 {
		c.StreamBudget = DefaultStreamBudget
	}
	if c.ProbeBudget <= 0 {
		c.ProbeBudget = DefaultProbeBudget
	}
	if c.ProbeStep <= 0 {
		c.ProbeStep = DefaultProbeStep
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}

// Workflow drives one discovery → connect → resolve → stream pass
// against an injected Radio and produces a terminal Report.
type Workflow struct {
	cfg   Config
	radio Radio
	log   zerolog.Logger

	stage Stage
	ran   atomic.Bool
}

func NewWorkflow(radio Radio, cfg Config, log zerolog.Logger) *Workflow {
	return &Workflow{
		cfg:   cfg.withDefaults(),
		radio: radio,
		log:   log,
	}
}

func (w *Workflow) Stage() Stage { return w.stage }

// Run executes the workflow once. Domain failures are folded into the
// returned Report; nothing escapes as an error. The session and any
// subscription are released on every exit path, including timeout and
// cancellation.
func (w *Workflow) Run(ctx context.Context) Report {
	if !w.ran.CompareAndSwap(false, true) {
		return Report{Status: StatusBusy, Info: "workflow already ran; create a new instance"}
	}
	defer func() { w.stage = StageDone }()

	if w.radio.NeedsProbe() {
		w.stage = StageProbingAvailability
		if err := w.probe(ctx); err != nil {
			w.log.Warn().Err(err).Dur("budget", w.cfg.ProbeBudget).Msg("radio unavailable")
			return Report{
				Status: StatusAvailabilityTimeout,
				Info:   "radio did not become available: " + err.Error(),
			}
		}
	}

	w.stage = StageScanning
	w.log.Info().Dur("window", w.cfg.ScanWindow).Str("marker", w.cfg.Marker).Msg("scanning")
	obs, err := w.radio.Strategy().Scan(ctx, w.cfg.ScanWindow)
	if err != nil {
		return Report{Status: StatusTransportError, Info: "scan failed: " + err.Error()}
	}

	target := Select(obs, w.cfg.Marker)
	if target == nil {
		w.log.Info().Int("observed", len(obs)).Msg("no advertisement carried the marker")
		return Report{Status: StatusNoMatch, Info: fmt.Sprintf("no advertisement carried %q within the scan window", w.cfg.Marker)}
	}
	w.stage = StageDeviceSelected

	var info strings.Builder
	fmt.Fprintf(&info, "Device Address: %s\n", target.Addr)
	mfg, _ := MatchedData(*target, w.cfg.Marker)
	fmt.Fprintf(&info, "Manufacturer Data: %s\n", hex.EncodeToString(mfg))

	var beacon *BeaconID
	if b, err := DecodeBeaconID(mfg, w.cfg.Marker); err == nil {
		beacon = &b
		fmt.Fprintf(&info, "Beacon: version=%d tag=%s counter=%d\n", b.Version, b.Tag, b.Counter)
	} else {
		w.log.Debug().Err(err).Msg("manufacturer payload did not decode")
	}

	w.stage = StageConnecting
	w.log.Info().Str("addr", target.Addr).Dur("timeout", w.cfg.ConnectTimeout).Msg("connecting")
	dialCtx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()
	sess, err := w.radio.Dial(dialCtx, target.Addr)
	if err != nil {
		return Report{
			Status: StatusConnectFailed,
			Info:   info.String() + "Failed to connect to " + target.Addr + ": " + err.Error(),
			Beacon: beacon,
		}
	}
	defer sess.Close()
	fmt.Fprintf(&info, "Connected to %s\n", sess.Addr())

	w.stage = StageResolvingCapability
	tree, err := sess.Capabilities(ctx)
	if err != nil {
		return Report{
			Status: StatusTransportError,
			Info:   info.String() + "Capability discovery failed: " + err.Error(),
			Beacon: beacon,
		}
	}
	ep, err := Locate(tree, w.cfg.ServiceUUID, w.cfg.CharacteristicUUID, PropertyNotify)
	if err != nil {
		return Report{
			Status: StatusCapabilityNotFound,
			Info:   fmt.Sprintf("%s%s (service %s, characteristic %s)", info.String(), err, w.cfg.ServiceUUID, w.cfg.CharacteristicUUID),
			Beacon: beacon,
		}
	}

	w.stage = StageStreaming
	frames, err := sess.Subscribe(ctx, ep, w.cfg.QueueDepth)
	if err != nil {
		return Report{
			Status: StatusTransportError,
			Info:   info.String() + "Subscribe failed: " + err.Error(),
			Beacon: beacon,
		}
	}
	// The subscription is released even when the wait times out or the
	// reassembler reports a violation.
	defer sess.Unsubscribe(ep)

	r := NewReassembler(w.log)
	state := r.Drain(ctx, frames, w.cfg.StreamBudget)
	received, total, known := r.Progress()
	malformed, conflicting := r.Dropped()
	w.log.Info().
		Stringer("state", state).
		Int("received", received).
		Int("total", total).
		Int("malformed", malformed).
		Int("conflicting", conflicting).
		Msg("streaming finished")

	if state != Complete {
		totalStr := "unknown"
		if known {
			totalStr = strconv.Itoa(total)
		}
		fmt.Fprintf(&info, "Reassembly incomplete: %d/%s chunks received\n", received, totalStr)
		return Report{Status: StatusIncomplete, Info: info.String(), Beacon: beacon}
	}

	payload, err := r.Assemble()
	if err != nil {
		// Complete with an uncoverable gap is a protocol violation.
		fmt.Fprintf(&info, "Reassembly violation: %s\n", err)
		return Report{Status: StatusIncomplete, Info: info.String(), Beacon: beacon}
	}

	fmt.Fprintf(&info, "  Service: %s\n", ep.ServiceUUID)
	fmt.Fprintf(&info, "    Characteristic: %s, Properties: [%s]\n", ep.CharacteristicUUID, ep.Properties)
	if utf8.Valid(payload) {
		fmt.Fprintf(&info, "      Value: %s\n", payload)
	} else {
		fmt.Fprintf(&info, "      Value (hex): %s\n", hex.EncodeToString(payload))
	}
	return Report{Status: StatusFinished, Info: info.String(), Payload: payload, Beacon: beacon}
}

// probe retries the radio's availability check on a fixed step until it
// succeeds or the probe budget elapses.
func (w *Workflow) probe(ctx context.Context) error {
	deadline := time.Now().Add(w.cfg.ProbeBudget)
	for {
		err := w.radio.Probe(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		w.log.Debug().Err(err).Dur("step", w.cfg.ProbeStep).Msg("radio not ready, retrying")
		select {
		case <-time.After(w.cfg.ProbeStep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
