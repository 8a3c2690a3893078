package palmki

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ReassemblyState tracks the reassembler's progress.
type ReassemblyState int

const (
	AwaitingFirst ReassemblyState = iota
	Accumulating
	Complete
	IncompleteTimeout
	ProtocolViolation
)

func (s ReassemblyState) String() string {
	return []string{
		"awaiting first frame",
		"accumulating",
		"complete",
		"incomplete (timeout)",
		"protocol violation",
	}[s]
}

var (
	ErrReassemblyIncomplete = errors.New("reassembly incomplete")
	// ErrIndexGap is returned when the chunk count reaches the total but
	// duplicate indices left a position uncovered.
	ErrIndexGap = errors.New("chunk indices do not cover every position")
)

// Reassembler rebuilds a payload from chunked notification frames. It is
// purely receive-side: malformed or conflicting frames are dropped and
// counted, never answered.
type Reassembler struct {
	chunks     map[uint16][]byte
	total      uint16
	totalKnown bool
	state      ReassemblyState

	malformed   int
	conflicting int

	log zerolog.Logger
}

func NewReassembler(log zerolog.Logger) *Reassembler {
	return &Reassembler{
		chunks: make(map[uint16][]byte),
		state:  AwaitingFirst,
		log:    log,
	}
}

// Ingest consumes one raw notification value. The first well-formed
// frame fixes the authoritative total; later frames declaring a
// different total are dropped. Duplicate sequence indices overwrite the
// stored payload (last write wins).
func (r *Reassembler) Ingest(raw []byte) {
	if r.state == Complete {
		return
	}

	f, err := DecodeFrame(raw)
	if err != nil {
		r.malformed++
		r.log.Debug().Err(err).Int("len", len(raw)).Msg("dropping malformed frame")
		return
	}

	if !r.totalKnown {
		r.total = f.Total
		r.totalKnown = true
		r.state = Accumulating
	} else if f.Total != r.total {
		r.conflicting++
		r.log.Warn().
			Uint16("declared_total", f.Total).
			Uint16("authoritative_total", r.total).
			Msg("dropping frame with conflicting total")
		return
	}

	r.chunks[f.Seq] = f.Payload
	if r.covered() {
		r.state = Complete
	}
}

// covered reports whether every index in [0, total) is present. The
// chunk count is never used as the completion test: duplicates can
// inflate it without covering all positions.
func (r *Reassembler) covered() bool {
	if !r.totalKnown {
		return false
	}
	for i := uint16(0); i < r.total; i++ {
		if _, ok := r.chunks[i]; !ok {
			return false
		}
	}
	return true
}

func (r *Reassembler) State() ReassemblyState { return r.state }

// Progress reports the received chunk count and the authoritative total.
// known is false until the first well-formed frame arrives.
func (r *Reassembler) Progress() (received, total int, known bool) {
	return len(r.chunks), int(r.total), r.totalKnown
}

// Dropped reports frames discarded as malformed and as total-conflicts.
func (r *Reassembler) Dropped() (malformed, conflicting int) {
	return r.malformed, r.conflicting
}

// Assemble concatenates the chunks in ascending index order. It fails if
// any position is uncovered; a count that reached the total with a gap
// is a protocol violation, not a crash.
func (r *Reassembler) Assemble() ([]byte, error) {
	if !r.covered() {
		if r.totalKnown && len(r.chunks) >= int(r.total) {
			r.state = ProtocolViolation
			return nil, ErrIndexGap
		}
		return nil, ErrReassemblyIncomplete
	}
	var out []byte
	for i := uint16(0); i < r.total; i++ {
		out = append(out, r.chunks[i]...)
	}
	return out, nil
}

// Drain consumes frames from a bounded queue until the payload is
// complete, the wait budget elapses, the context is cancelled or the
// queue closes. It returns the final state.
func (r *Reassembler) Drain(ctx context.Context, frames <-chan []byte, budget time.Duration) ReassemblyState {
	timer := time.NewTimer(budget)
	defer timer.Stop()

	for r.state != Complete {
		select {
		case raw, ok := <-frames:
			if !ok {
				r.state = IncompleteTimeout
				return r.state
			}
			r.Ingest(raw)
		case <-timer.C:
			r.state = IncompleteTimeout
			return r.state
		case <-ctx.Done():
			r.state = IncompleteTimeout
			return r.state
		}
	}
	return r.state
}
