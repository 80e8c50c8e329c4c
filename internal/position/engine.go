package position

import (
	"sort"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/fill"
)

// Options controls a reconstruction run.
type Options struct {
	// BuilderOnly drops fills that are not attributed to the target builder
	// before they reach the position. Filtering changes what counts as the
	// position, not just what is displayed.
	BuilderOnly bool
	// ClassifyTaint keeps the taint flag on emitted snapshots. BuilderOnly
	// implies it.
	ClassifyTaint bool
}

func (o Options) reportTaint() bool {
	return o.BuilderOnly || o.ClassifyTaint
}

// Result is the output of a reconstruction.
type Result struct {
	Snapshots []domain.Snapshot
	// Fills holds every fill that advanced the position, in processing order,
	// annotated with its lifecycle and the taint state as of that fill.
	Fills []domain.ClassifiedFill
	// Final maps each coin to its state after the last fill.
	Final map[string]State
}

// Tainted reports whether any processed fill was classified as tainted.
func (r Result) Tainted() bool {
	for _, cf := range r.Fills {
		if cf.Tainted {
			return true
		}
	}
	return false
}

// Reconstruct folds one coin's fills, which must already be ordered by
// (TimeMs, TradeID). It returns the final state alongside the result.
func Reconstruct(fills []domain.Fill, opts Options) (State, []domain.Snapshot, []domain.ClassifiedFill) {
	var (
		s         State
		snapshots = make([]domain.Snapshot, 0, len(fills))
		processed = make([]domain.ClassifiedFill, 0, len(fills))
	)
	for _, f := range fills {
		if opts.BuilderOnly && !f.IsTargetBuilder {
			s = Skip(s, f)
			continue
		}
		var tr Transition
		s, tr = Advance(s, f)
		snap := tr.Snapshot
		processed = append(processed, domain.ClassifiedFill{
			Fill:        f,
			LifecycleID: snap.LifecycleID,
			Tainted:     snap.Tainted,
		})
		if !opts.reportTaint() {
			snap.Tainted = false
		}
		snapshots = append(snapshots, snap)
	}
	return s, snapshots, processed
}

// History reconstructs every coin in fills, which may arrive in any order.
// Each coin is ordered by (TimeMs, TradeID) and folded independently; the
// per-coin snapshot streams are then merged by TimeMs, keeping coin
// first-seen order for equal timestamps.
func History(fills []domain.Fill, opts Options) Result {
	ordered := fill.SortFills(fills)
	coins, byCoin := fill.GroupByCoin(ordered)

	res := Result{Final: make(map[string]State, len(coins))}
	for _, coin := range coins {
		final, snaps, classified := Reconstruct(byCoin[coin], opts)
		res.Final[coin] = final
		res.Snapshots = append(res.Snapshots, snaps...)
		res.Fills = append(res.Fills, classified...)
	}
	sort.SliceStable(res.Snapshots, func(i, j int) bool {
		return res.Snapshots[i].TimeMs < res.Snapshots[j].TimeMs
	})
	sort.SliceStable(res.Fills, func(i, j int) bool {
		if res.Fills[i].TimeMs != res.Fills[j].TimeMs {
			return res.Fills[i].TimeMs < res.Fills[j].TimeMs
		}
		return res.Fills[i].TradeID < res.Fills[j].TradeID
	})
	return res
}
