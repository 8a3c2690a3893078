package palmki

// Package palmki locates a Palmki palm-vein beacon by its manufacturer
// data marker, connects to it and reassembles the chunked payload it
// notifies.

import "time"

const (
	// Marker is the ASCII tag the beacon embeds in its manufacturer data.
	Marker = "PALMKI"

	PayloadServiceID        = "e2a2b8e0-0b6c-4b6d-8868-c2b53f6c8d7b"
	PayloadCharacteristicID = "c3b3c9f0-1c7d-4e7e-8a8b-9e0f1d0a2b3c"

	DefaultScanWindow     = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultStreamBudget   = 15 * time.Second
	DefaultProbeBudget    = 30 * time.Second
	DefaultProbeStep      = 2 * time.Second

	// DefaultQueueDepth bounds the notification queue between the
	// transport's delivery goroutine and the reassembler.
	DefaultQueueDepth = 64
)
