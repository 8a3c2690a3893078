package palmki

import (
	"context"
	"time"
)

// ScanStrategy produces a bounded batch of advertisement observations.
// Implementations may poll once for the whole window or accumulate
// discovery events for its duration; the selection rule applied to the
// batch is identical either way.
type ScanStrategy interface {
	Scan(ctx context.Context, window time.Duration) ([]Observation, error)
}

// Radio is the injected transport the workflow runs against. It owns the
// adapter hardware; the workflow never reaches into process-wide state.
type Radio interface {
	// NeedsProbe reports whether the platform requires an explicit
	// availability check before scanning.
	NeedsProbe() bool

	// Probe performs one availability check. The workflow retries it
	// on a fixed step until its probe budget elapses.
	Probe(ctx context.Context) error

	Strategy() ScanStrategy

	// Dial establishes a session to the peer, honouring ctx's deadline.
	Dial(ctx context.Context, addr string) (Session, error)
}

// Session is an open point-to-point connection. Notifications are pushed
// onto a bounded channel, never delivered through a reentrant callback.
type Session interface {
	Addr() string

	// Capabilities snapshots the session's service/characteristic tree.
	Capabilities(ctx context.Context) ([]Service, error)

	// Subscribe starts notification delivery for the endpoint into a
	// channel of at most depth buffered frames. Frames arriving while
	// the channel is full are dropped and counted by the transport.
	Subscribe(ctx context.Context, ep Endpoint, depth int) (<-chan []byte, error)

	Unsubscribe(ep Endpoint) error

	Close() error
}
