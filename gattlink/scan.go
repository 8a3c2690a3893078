package gattlink

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/paypal/gatt"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

// pollScanner performs a single bounded discovery pass, keeping the
// latest sighting per peer.
type pollScanner struct {
	r *Radio
}

func (s *pollScanner) Scan(ctx context.Context, window time.Duration) ([]palmki.Observation, error) {
	return s.r.collect(ctx, window, false)
}

// streamScanner accumulates every discovery event for the window's
// duration, duplicates included; selection over the batch applies the
// same rule either way.
type streamScanner struct {
	r *Radio
}

func (s *streamScanner) Scan(ctx context.Context, window time.Duration) ([]palmki.Observation, error) {
	return s.r.collect(ctx, window, true)
}

func (r *Radio) collect(ctx context.Context, window time.Duration, dup bool) ([]palmki.Observation, error) {
	if err := r.Probe(ctx); err != nil {
		return nil, err
	}

	sink := make(chan palmki.Observation, 128)
	r.setSink(sink)
	defer r.clearSink()

	r.dev.Scan([]gatt.UUID{}, dup)
	defer r.dev.StopScanning()

	timer := time.NewTimer(window)
	defer timer.Stop()

	var out []palmki.Observation
	index := make(map[string]int)
	for {
		select {
		case o := <-sink:
			if dup {
				out = append(out, o)
				continue
			}
			if i, seen := index[o.Addr]; seen {
				out[i] = o
			} else {
				index[o.Addr] = len(out)
				out = append(out, o)
			}
		case <-timer.C:
			return out, nil
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// observation converts one discovery callback into the domain record.
func observation(p gatt.Peripheral, a *gatt.Advertisement, rssi int) palmki.Observation {
	o := palmki.Observation{
		Addr:             strings.ToLower(p.ID()),
		Name:             a.LocalName,
		ManufacturerData: splitManufacturerData(a.ManufacturerData),
		SeenAt:           time.Now(),
	}
	if o.Name == "" {
		o.Name = p.Name()
	}
	r := rssi
	o.RSSI = &r
	// The gatt API reports 0 both for "absent" and a genuine 0 dBm tx
	// power; treat 0 as absent.
	if a.TxPowerLevel != 0 {
		tx := a.TxPowerLevel
		o.TxPower = &tx
	}
	for _, u := range a.Services {
		o.Services = append(o.Services, u.String())
	}
	return o
}

// splitManufacturerData keys the raw AD value by its little-endian
// company identifier.
func splitManufacturerData(raw []byte) map[uint16][]byte {
	if len(raw) < 2 {
		return nil
	}
	id := binary.LittleEndian.Uint16(raw[:2])
	value := make([]byte, len(raw)-2)
	copy(value, raw[2:])
	return map[uint16][]byte{id: value}
}
