package gattlink

// Package gattlink implements the palmki transport contract on top of
// github.com/paypal/gatt.

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/paypal/gatt"
	"github.com/paypal/gatt/examples/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

var ErrRadioOff = errors.New("radio is not powered on")

// Radio owns the gatt.Device and adapts its callback-driven API to the
// bounded, cancelable streams the workflow consumes.
type Radio struct {
	dev gatt.Device
	log zerolog.Logger

	needsProbe  bool
	eventDriven bool

	mu       sync.Mutex
	powered  bool
	sink     chan<- palmki.Observation
	periphs  map[string]gatt.Peripheral
	pending  map[string]chan error
	sessions map[string]*session
}

// Option configures a Radio.
type Option func(*Radio)

// WithAvailabilityProbe controls whether the workflow must wait for the
// powered-on state before scanning.
func WithAvailabilityProbe(enabled bool) Option {
	return func(r *Radio) { r.needsProbe = enabled }
}

// WithEventDrivenScan selects the accumulating scan strategy instead of
// the bounded poll.
func WithEventDrivenScan(enabled bool) Option {
	return func(r *Radio) { r.eventDriven = enabled }
}

// New opens the default client device and starts its state machine. The
// scan strategy defaults to event-driven discovery except on darwin,
// where the bounded poll avoids callback re-entrancy in the OS stack.
func New(log zerolog.Logger, opts ...Option) (*Radio, error) {
	d, err := gatt.NewDevice(option.DefaultClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "open device")
	}

	r := &Radio{
		dev:         d,
		log:         log,
		needsProbe:  true,
		eventDriven: runtime.GOOS != "darwin",
		periphs:     make(map[string]gatt.Peripheral),
		pending:     make(map[string]chan error),
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}

	d.Handle(
		gatt.PeripheralDiscovered(r.onPeriphDiscovered),
		gatt.PeripheralConnected(r.onPeriphConnected),
		gatt.PeripheralDisconnected(r.onPeriphDisconnected),
	)
	if err := d.Init(r.onStateChanged); err != nil {
		return nil, errors.Wrap(err, "init device")
	}
	return r, nil
}

func (r *Radio) NeedsProbe() bool { return r.needsProbe }

// Probe performs one availability check against the adapter state.
func (r *Radio) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	powered := r.powered
	r.mu.Unlock()
	if !powered {
		return ErrRadioOff
	}
	return nil
}

func (r *Radio) Strategy() palmki.ScanStrategy {
	if r.eventDriven {
		return &streamScanner{r: r}
	}
	return &pollScanner{r: r}
}

// Dial connects to a peripheral seen during the scan window.
func (r *Radio) Dial(ctx context.Context, addr string) (palmki.Session, error) {
	key := strings.ToLower(addr)

	r.mu.Lock()
	p, ok := r.periphs[key]
	if !ok {
		r.mu.Unlock()
		return nil, errors.Errorf("peripheral %s was not seen during the scan window", addr)
	}
	done := make(chan error, 1)
	r.pending[key] = done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	p.Device().Connect(p)
	select {
	case err := <-done:
		if err != nil {
			return nil, errors.Wrap(err, "connect")
		}
	case <-ctx.Done():
		p.Device().CancelConnection(p)
		return nil, errors.Wrap(ctx.Err(), "connect")
	}

	s := newSession(p, r.log)
	r.mu.Lock()
	r.sessions[key] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Radio) onStateChanged(d gatt.Device, s gatt.State) {
	r.log.Info().Str("state", s.String()).Msg("state changed")
	r.mu.Lock()
	r.powered = s == gatt.StatePoweredOn
	r.mu.Unlock()
	if s != gatt.StatePoweredOn {
		d.StopScanning()
	}
}

func (r *Radio) onPeriphDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	key := strings.ToLower(p.ID())

	r.mu.Lock()
	r.periphs[key] = p
	sink := r.sink
	r.mu.Unlock()
	if sink == nil {
		return
	}

	o := observation(p, a, rssi)
	select {
	case sink <- o:
	default:
		r.log.Debug().Str("addr", o.Addr).Msg("observation queue full, dropping sighting")
	}
}

func (r *Radio) onPeriphConnected(p gatt.Peripheral, err error) {
	r.log.Info().Str("peripheral_id", p.ID()).Err(err).Msg("connected")
	r.mu.Lock()
	done := r.pending[strings.ToLower(p.ID())]
	r.mu.Unlock()
	if done != nil {
		done <- err
	}
}

func (r *Radio) onPeriphDisconnected(p gatt.Peripheral, err error) {
	key := strings.ToLower(p.ID())
	r.log.Info().Str("peripheral_id", p.ID()).Err(err).Msg("disconnected")

	r.mu.Lock()
	s := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()
	if s != nil {
		s.dropped()
	}
}

func (r *Radio) setSink(sink chan<- palmki.Observation) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

func (r *Radio) clearSink() {
	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()
}
