// Package position reconstructs per-coin position history from ordered fills.
//
// Cost basis and taint classification are advanced together by one pure
// transition function, Advance, folded left to right over a coin's fills.
// Taint is a running prefix property: a snapshot is tainted once its
// lifecycle has seen both a target-builder fill and another fill, and
// snapshots emitted earlier in the same lifecycle are not revisited.
package position

import (
	"math"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// Kind classifies what a fill did to the position.
type Kind int

const (
	KindNoop Kind = iota
	KindOpen
	KindFlip
	KindIncrease
	KindDecrease
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindFlip:
		return "flip"
	case KindIncrease:
		return "increase"
	case KindDecrease:
		return "decrease"
	case KindClose:
		return "close"
	default:
		return "noop"
	}
}

// State is the running fold state for one coin.
type State struct {
	NetSize     float64
	AvgEntryPx  float64
	TotalCost   float64
	LifecycleID int
	HasTarget   bool
	HasOther    bool
	// Seeded is true while a lifecycle is open and its cost basis is known.
	Seeded bool
}

// Tainted reports whether the current lifecycle mixes target and other fills.
func (s State) Tainted() bool {
	return s.HasTarget && s.HasOther
}

// Transition is the outcome of applying one fill.
type Transition struct {
	Kind     Kind
	Snapshot domain.Snapshot
	// Reseeded is set when the fill was the first one observed for an
	// already-open position and the cost basis had to be estimated.
	Reseeded bool
}

// Advance applies one fill to s and returns the new state plus the emitted
// snapshot. The fill's own StartPosition is trusted over s.NetSize.
func Advance(s State, f domain.Fill) (State, Transition) {
	start := f.StartPosition
	end := f.EndPosition()

	if f.Size == 0 {
		if s.Seeded {
			s = s.observe(f.IsTargetBuilder)
		}
		return s, Transition{Kind: KindNoop, Snapshot: s.snapshot(f)}
	}

	var reseeded bool
	if start != 0 && start*end >= 0 && (!s.Seeded || sign(s.NetSize) != sign(start)) {
		// Mid-lifecycle start: the opening fills were never observed, so the
		// fill's own price stands in for the unknown entry price. Taint flags
		// gathered by Skip since the last close are kept, but a sign change
		// against a seeded position means an unseen close ended that lifecycle.
		if s.Seeded {
			s.HasTarget, s.HasOther = false, false
		}
		s.AvgEntryPx = f.Price
		s.TotalCost = f.Price * math.Abs(start)
		s.LifecycleID++
		s.Seeded = true
		reseeded = true
	}

	var kind Kind
	switch {
	case start == 0 && end != 0:
		kind = KindOpen
		s.AvgEntryPx = f.Price
		s.TotalCost = f.Price * math.Abs(end)
		s.LifecycleID++
		s.HasTarget, s.HasOther = false, false
		s.Seeded = true
	case start*end < 0:
		kind = KindFlip
		s.AvgEntryPx = f.Price
		s.TotalCost = f.Price * math.Abs(end)
		s.LifecycleID++
		s.HasTarget, s.HasOther = false, false
		s.Seeded = true
	case end == 0:
		kind = KindClose
	case math.Abs(end) > math.Abs(start):
		kind = KindIncrease
		s.TotalCost += f.Price * f.Size
		s.AvgEntryPx = s.TotalCost / math.Abs(end)
	default:
		kind = KindDecrease
		s.TotalCost = s.AvgEntryPx * math.Abs(end)
	}

	s = s.observe(f.IsTargetBuilder)
	s.NetSize = end

	snap := s.snapshot(f)
	if kind == KindClose {
		snap.AvgEntryPx = 0
		s.AvgEntryPx = 0
		s.TotalCost = 0
		s.HasTarget, s.HasOther = false, false
		s.Seeded = false
	}
	return s, Transition{Kind: kind, Snapshot: snap, Reseeded: reseeded}
}

// Skip records a fill that is excluded from the position under builder-only
// filtering. It never moves size or cost; it only marks the running lifecycle
// as having seen a non-target fill.
func Skip(s State, f domain.Fill) State {
	if f.IsTargetBuilder {
		return s
	}
	if s.Seeded || f.EndPosition() != 0 {
		s.HasOther = true
	}
	return s
}

func (s State) observe(isTarget bool) State {
	if isTarget {
		s.HasTarget = true
	} else {
		s.HasOther = true
	}
	return s
}

func (s State) snapshot(f domain.Fill) domain.Snapshot {
	return domain.Snapshot{
		TimeMs:      f.TimeMs,
		Coin:        f.Coin,
		NetSize:     s.NetSize,
		AvgEntryPx:  s.AvgEntryPx,
		Tainted:     s.Tainted(),
		LifecycleID: s.LifecycleID,
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
