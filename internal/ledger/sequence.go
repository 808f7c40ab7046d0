package ledger

import (
	"sync/atomic"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Sequence hands out claim identifiers. Implementations must be monotonic and
// must never return the reserved null identifier or a previously issued one.
type Sequence interface {
	Next() domain.ClaimID
	// Advance moves the sequence so that every future Next is strictly
	// greater than floor. A floor at or below the current position is a
	// no-op.
	Advance(floor uint64)
}

// CounterSequence is an atomic in-process Sequence starting above the null
// identifier.
type CounterSequence struct {
	n atomic.Uint64
}

// NewCounterSequence returns a CounterSequence whose first Next yields 1.
func NewCounterSequence() *CounterSequence {
	return &CounterSequence{}
}

// Next returns the next claim identifier.
func (s *CounterSequence) Next() domain.ClaimID {
	return domain.ClaimID(s.n.Add(1))
}

// Advance lifts the counter to floor if it is behind.
func (s *CounterSequence) Advance(floor uint64) {
	for {
		cur := s.n.Load()
		if cur >= floor {
			return
		}
		if s.n.CompareAndSwap(cur, floor) {
			return
		}
	}
}
