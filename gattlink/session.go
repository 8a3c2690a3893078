package gattlink

import (
	"context"
	"strings"
	"sync"

	"github.com/paypal/gatt"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

// session wraps one connected peripheral. Notifications are copied onto
// a bounded channel so the reassembler never runs on the transport's
// delivery goroutine.
type session struct {
	p   gatt.Peripheral
	log zerolog.Logger

	mu     sync.Mutex
	chars  map[string]*gatt.Characteristic
	subs   map[string]chan []byte
	closed bool
}

func newSession(p gatt.Peripheral, log zerolog.Logger) *session {
	return &session{
		p:     p,
		log:   log.With().Str("peripheral_id", p.ID()).Logger(),
		chars: make(map[string]*gatt.Characteristic),
		subs:  make(map[string]chan []byte),
	}
}

func (s *session) Addr() string { return strings.ToLower(s.p.ID()) }

// Capabilities discovers the peripheral's service tree once per session.
func (s *session) Capabilities(ctx context.Context) ([]palmki.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ss, err := s.p.DiscoverServices(nil)
	if err != nil {
		return nil, errors.Wrap(err, "discover services")
	}

	var tree []palmki.Service
	for _, svc := range ss {
		cs, err := s.p.DiscoverCharacteristics(nil, svc)
		if err != nil {
			return nil, errors.Wrapf(err, "discover characteristics of %s", svc.UUID())
		}
		node := palmki.Service{UUID: svc.UUID().String()}
		for _, c := range cs {
			node.Characteristics = append(node.Characteristics, palmki.Characteristic{
				UUID:       c.UUID().String(),
				Properties: properties(c.Properties()),
				Handle:     c.Handle(),
			})
			s.mu.Lock()
			s.chars[strings.ToLower(c.UUID().String())] = c
			s.mu.Unlock()
		}
		tree = append(tree, node)
	}
	return tree, nil
}

func (s *session) Subscribe(ctx context.Context, ep palmki.Endpoint, depth int) (<-chan []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.ToLower(ep.CharacteristicUUID)

	s.mu.Lock()
	c, ok := s.chars[key]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("characteristic %s was not discovered on this session", ep.CharacteristicUUID)
	}

	frames := make(chan []byte, depth)
	handler := func(gc *gatt.Characteristic, b []byte, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("notification error")
			return
		}
		// The stack reuses its buffer between deliveries.
		buf := make([]byte, len(b))
		copy(buf, b)
		select {
		case frames <- buf:
		default:
			s.log.Warn().Int("depth", depth).Msg("notification queue full, dropping frame")
		}
	}
	if err := s.p.SetNotifyValue(c, handler); err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}

	s.mu.Lock()
	s.subs[key] = frames
	s.mu.Unlock()
	return frames, nil
}

func (s *session) Unsubscribe(ep palmki.Endpoint) error {
	key := strings.ToLower(ep.CharacteristicUUID)

	s.mu.Lock()
	c, ok := s.chars[key]
	frames := s.subs[key]
	delete(s.subs, key)
	closed := s.closed
	s.mu.Unlock()

	if frames != nil {
		defer close(frames)
	}
	if !ok || closed {
		return nil
	}
	if err := s.p.SetNotifyValue(c, nil); err != nil {
		return errors.Wrap(err, "unsubscribe")
	}
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.p.Device().CancelConnection(s.p)
	return nil
}

// dropped is called by the radio when the peer disconnects underneath
// us; open subscriptions are closed so consumers unblock.
func (s *session) dropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, frames := range s.subs {
		close(frames)
		delete(s.subs, key)
	}
}

func properties(p gatt.Property) palmki.Property {
	var out palmki.Property
	if p&gatt.CharRead != 0 {
		out |= palmki.PropertyRead
	}
	if p&(gatt.CharWrite|gatt.CharWriteNR) != 0 {
		out |= palmki.PropertyWrite
	}
	if p&gatt.CharNotify != 0 {
		out |= palmki.PropertyNotify
	}
	if p&gatt.CharIndicate != 0 {
		out |= palmki.PropertyIndicate
	}
	return out
}
