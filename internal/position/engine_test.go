package position

import (
	"math"
	"reflect"
	"testing"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

func buy(t int64, start, size, px float64, target bool) domain.Fill {
	return domain.Fill{Coin: "ETH", TimeMs: t, TradeID: t, Side: domain.SideBuy,
		StartPosition: start, Size: size, Price: px, IsTargetBuilder: target}
}

func sell(t int64, start, size, px float64, target bool) domain.Fill {
	f := buy(t, start, size, px, target)
	f.Side = domain.SideSell
	return f
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestMixedLifecycleScenario(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 100, 50, true),
		buy(2, 100, 50, 52, false),
		sell(3, 150, 150, 55, true),
	}
	_, snaps, _ := Reconstruct(fills, Options{ClassifyTaint: true})

	want := []struct {
		net, avg float64
		tainted  bool
	}{
		{100, 50, false},
		{150, 50.6667, true},
		{0, 0, true},
	}
	if len(snaps) != len(want) {
		t.Fatalf("expected %d snapshots, got %d", len(want), len(snaps))
	}
	for i, w := range want {
		s := snaps[i]
		if s.NetSize != w.net || !approx(s.AvgEntryPx, w.avg) || s.Tainted != w.tainted {
			t.Errorf("snapshot %d = (%v, %v, %v), want (%v, %v, %v)",
				i, s.NetSize, s.AvgEntryPx, s.Tainted, w.net, w.avg, w.tainted)
		}
	}
}

func TestFlipResetsEntryAndLifecycle(t *testing.T) {
	var s State
	s, _ = Advance(s, sell(1, 0, 100, 70, true))
	before := s.LifecycleID

	s, tr := Advance(s, buy(2, -100, 200, 60, true))
	if tr.Kind != KindFlip {
		t.Fatalf("expected flip, got %s", tr.Kind)
	}
	if tr.Snapshot.NetSize != 100 || tr.Snapshot.AvgEntryPx != 60 {
		t.Errorf("unexpected snapshot: %+v", tr.Snapshot)
	}
	if s.LifecycleID != before+1 {
		t.Errorf("lifecycle should increment exactly once: %d -> %d", before, s.LifecycleID)
	}
	if s.TotalCost != 6000 {
		t.Errorf("expected total cost 6000, got %v", s.TotalCost)
	}
}

func TestFlipAsFirstObservedFill(t *testing.T) {
	s, tr := Advance(State{}, buy(1, -100, 200, 60, true))
	if tr.Kind != KindFlip || tr.Reseeded {
		t.Fatalf("expected plain flip, got %s reseeded=%v", tr.Kind, tr.Reseeded)
	}
	if s.LifecycleID != 1 || s.NetSize != 100 || s.AvgEntryPx != 60 {
		t.Errorf("unexpected state: %+v", s)
	}
}

func TestFlipSeedsTaintFromFlipFillOnly(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 10, 100, true),
		buy(2, 10, 5, 101, false),
		sell(3, 15, 30, 99, true),
	}
	_, snaps, _ := Reconstruct(fills, Options{ClassifyTaint: true})
	if !snaps[1].Tainted {
		t.Error("second fill should taint the first lifecycle")
	}
	if snaps[2].Tainted {
		t.Error("flip fill must start a clean lifecycle")
	}
	if snaps[2].LifecycleID != snaps[1].LifecycleID+1 {
		t.Errorf("expected new lifecycle, got %d after %d", snaps[2].LifecycleID, snaps[1].LifecycleID)
	}
}

func TestOpenSetsAverageToPrice(t *testing.T) {
	for _, f := range []domain.Fill{buy(1, 0, 3, 12.5, true), sell(1, 0, 0.25, 99.75, false)} {
		_, tr := Advance(State{}, f)
		if tr.Kind != KindOpen || tr.Snapshot.AvgEntryPx != f.Price {
			t.Errorf("open with %s: kind=%s avg=%v", f.Side, tr.Kind, tr.Snapshot.AvgEntryPx)
		}
	}
}

func TestWeightedAverageInvariant(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 2, 100, true),
		buy(2, 2, 3, 110, true),
		sell(3, 5, 1, 130, true),
		buy(4, 4, 4, 90, true),
	}
	var s State
	var increaseCost float64
	for _, f := range fills {
		var tr Transition
		s, tr = Advance(s, f)
		switch tr.Kind {
		case KindOpen:
			increaseCost = f.Price * f.Size
		case KindIncrease:
			increaseCost += f.Price * f.Size
			if !approx(s.AvgEntryPx*math.Abs(s.NetSize), s.TotalCost) {
				t.Errorf("fill %d: avg*|net| = %v, total cost %v", f.TradeID, s.AvgEntryPx*math.Abs(s.NetSize), s.TotalCost)
			}
		case KindDecrease:
			if !approx(s.AvgEntryPx, 106) {
				t.Errorf("decrease must keep avg at 106, got %v", s.AvgEntryPx)
			}
			increaseCost = s.TotalCost
		}
	}
	if !approx(s.TotalCost, increaseCost) {
		t.Errorf("total cost %v, want %v", s.TotalCost, increaseCost)
	}
	// (4*106 + 4*90) / 8
	if !approx(s.AvgEntryPx, 98) {
		t.Errorf("expected avg 98, got %v", s.AvgEntryPx)
	}
}

func TestIncreaseCostIsSumOfEntries(t *testing.T) {
	fills := []domain.Fill{
		sell(1, 0, 1, 200, true),
		sell(2, -1, 2, 210, true),
		sell(3, -3, 1, 190, true),
	}
	s, _, _ := Reconstruct(fills, Options{})
	if !approx(s.TotalCost, 200+420+190) {
		t.Errorf("unexpected total cost %v", s.TotalCost)
	}
	if !approx(s.AvgEntryPx*math.Abs(s.NetSize), s.TotalCost) {
		t.Errorf("avg*|net| drifted from total cost")
	}
}

func TestCloseResetsState(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 1.5, 10, true),
		sell(2, 1.5, 1.5, 12, false),
		buy(3, 0, 1, 20, true),
	}
	_, snaps, _ := Reconstruct(fills, Options{ClassifyTaint: true})
	if snaps[1].NetSize != 0 || snaps[1].AvgEntryPx != 0 || !snaps[1].Tainted {
		t.Errorf("unexpected close snapshot: %+v", snaps[1])
	}
	if snaps[2].Tainted || snaps[2].AvgEntryPx != 20 || snaps[2].LifecycleID != 2 {
		t.Errorf("reopen should start fresh: %+v", snaps[2])
	}
}

func TestFractionalCloseLandsOnZero(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 0.1, 10, true),
		buy(2, 0.1, 0.2, 10, true),
		sell(3, 0.3, 0.3, 11, true),
	}
	s, snaps, _ := Reconstruct(fills, Options{})
	if snaps[2].NetSize != 0 || s.Seeded {
		t.Errorf("expected exact close, got net=%v seeded=%v", snaps[2].NetSize, s.Seeded)
	}
}

func TestMidLifecycleStart(t *testing.T) {
	s, tr := Advance(State{}, sell(1, 10, 4, 25, true))
	if !tr.Reseeded || tr.Kind != KindDecrease {
		t.Fatalf("expected reseeded decrease, got %s reseeded=%v", tr.Kind, tr.Reseeded)
	}
	if s.AvgEntryPx != 25 || s.TotalCost != 150 || s.LifecycleID != 1 {
		t.Errorf("unexpected seeded state: %+v", s)
	}
}

func TestReseedAcrossUnseenCloseStartsCleanLifecycle(t *testing.T) {
	s, _ := Advance(State{}, buy(1, 0, 100, 50, true))
	// The close back to zero and the short open were never observed.
	s, tr := Advance(s, sell(2, -50, 10, 40, false))
	if !tr.Reseeded || tr.Kind != KindIncrease {
		t.Fatalf("expected reseeded increase, got %s reseeded=%v", tr.Kind, tr.Reseeded)
	}
	if s.LifecycleID != 2 || s.NetSize != -60 {
		t.Errorf("unexpected state: %+v", s)
	}
	if s.HasTarget || !s.HasOther || s.Tainted() {
		t.Errorf("target fill from the previous lifecycle leaked: %+v", s)
	}
}

func TestReseedAfterSkipKeepsTaint(t *testing.T) {
	s := Skip(State{}, buy(1, 0, 10, 50, false))
	s, tr := Advance(s, buy(2, 10, 5, 52, true))
	if !tr.Reseeded || !s.Tainted() {
		t.Errorf("skipped opening fill should taint the reseeded lifecycle: %+v", s)
	}
}

func TestZeroSizeFillKeepsPriorState(t *testing.T) {
	var s State
	s, first := Advance(s, buy(1, 0, 2, 40, true))
	after, tr := Advance(s, buy(2, 2, 0, 99, true))
	if tr.Kind != KindNoop {
		t.Fatalf("expected noop, got %s", tr.Kind)
	}
	if tr.Snapshot.NetSize != first.Snapshot.NetSize || tr.Snapshot.AvgEntryPx != first.Snapshot.AvgEntryPx {
		t.Errorf("zero-size snapshot %+v differs from prior %+v", tr.Snapshot, first.Snapshot)
	}
	if after.TotalCost != s.TotalCost {
		t.Errorf("zero-size fill changed cost: %v -> %v", s.TotalCost, after.TotalCost)
	}
}

func TestNetSizeEqualsSignedSum(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 3, 10, true),
		sell(2, 3, 1, 11, false),
		sell(3, 2, 5, 12, true),
		buy(4, -3, 1.5, 9, true),
		buy(5, -1.5, 1.5, 9, false),
		sell(6, 0, 0.75, 8, true),
	}
	var sum float64
	for _, f := range fills {
		sum += f.Side.Sign() * f.Size
	}
	_, snaps, _ := Reconstruct(fills, Options{})
	if got := snaps[len(snaps)-1].NetSize; !approx(got, sum) {
		t.Errorf("final net size %v, want %v", got, sum)
	}
}

func TestTaintOrderIndependent(t *testing.T) {
	orders := map[string][]domain.Fill{
		"target then other": {buy(1, 0, 1, 10, true), buy(2, 1, 1, 10, false)},
		"other then target": {buy(1, 0, 1, 10, false), buy(2, 1, 1, 10, true)},
	}
	for name, fills := range orders {
		t.Run(name, func(t *testing.T) {
			_, snaps, _ := Reconstruct(fills, Options{ClassifyTaint: true})
			if snaps[0].Tainted {
				t.Error("first fill alone cannot taint")
			}
			if !snaps[1].Tainted {
				t.Error("mixed lifecycle must be tainted")
			}
		})
	}
}

func TestPureTargetLifecycleNeverTainted(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 1, 10, true),
		buy(2, 1, 1, 11, true),
		sell(3, 2, 2, 12, true),
	}
	_, snaps, classified := Reconstruct(fills, Options{ClassifyTaint: true})
	for i, s := range snaps {
		if s.Tainted || classified[i].Tainted {
			t.Errorf("fill %d unexpectedly tainted", i)
		}
	}
}

func TestTaintHiddenUnlessRequested(t *testing.T) {
	fills := []domain.Fill{buy(1, 0, 1, 10, true), buy(2, 1, 1, 10, false)}
	_, snaps, classified := Reconstruct(fills, Options{})
	if snaps[1].Tainted {
		t.Error("snapshot taint must not be reported without classification")
	}
	if !classified[1].Tainted {
		t.Error("classified fills always carry taint")
	}
}

func TestBuilderOnlySkipsOtherFills(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 100, 50, true),
		buy(2, 100, 50, 52, false),
		sell(3, 150, 150, 55, true),
	}
	_, snaps, classified := Reconstruct(fills, Options{BuilderOnly: true})
	if len(snaps) != 2 || len(classified) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].AvgEntryPx != 50 || snaps[0].Tainted {
		t.Errorf("unexpected first snapshot: %+v", snaps[0])
	}
	if snaps[1].NetSize != 0 || !snaps[1].Tainted {
		t.Errorf("skipped fill should still taint the lifecycle: %+v", snaps[1])
	}
}

func TestBuilderOnlyOtherOpenTaintsLaterTargetFill(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 10, 50, false),
		buy(2, 10, 5, 52, true),
	}
	_, snaps, _ := Reconstruct(fills, Options{BuilderOnly: true})
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if !snaps[0].Tainted || snaps[0].NetSize != 15 {
		t.Errorf("unexpected snapshot: %+v", snaps[0])
	}
	// seeded at 52 for 10, then 5 more at 52
	if !approx(snaps[0].AvgEntryPx, 52) {
		t.Errorf("expected seeded avg 52, got %v", snaps[0].AvgEntryPx)
	}
}

func TestHistoryMergesCoinsByTime(t *testing.T) {
	eth := []domain.Fill{buy(30, 0, 1, 10, true), sell(10, 0, 1, 12, true)}
	btc := buy(20, 0, 2, 100, true)
	btc.Coin = "BTC"
	res := History([]domain.Fill{eth[0], btc, eth[1]}, Options{})

	var times []int64
	for _, s := range res.Snapshots {
		times = append(times, s.TimeMs)
	}
	if !reflect.DeepEqual(times, []int64{10, 20, 30}) {
		t.Errorf("unexpected order: %v", times)
	}
	if res.Final["BTC"].NetSize != 2 {
		t.Errorf("unexpected BTC final state: %+v", res.Final["BTC"])
	}
	if len(res.Fills) != 3 {
		t.Errorf("expected 3 classified fills, got %d", len(res.Fills))
	}
}

func TestHistoryIdempotent(t *testing.T) {
	fills := []domain.Fill{
		buy(1, 0, 1, 10, true),
		sell(2, 1, 3, 11, false),
		buy(3, -2, 2, 9, true),
	}
	a := History(fills, Options{ClassifyTaint: true})
	b := History(fills, Options{ClassifyTaint: true})
	if !reflect.DeepEqual(a, b) {
		t.Error("reconstruction is not idempotent")
	}
}

func TestHistoryEmpty(t *testing.T) {
	res := History(nil, Options{})
	if len(res.Snapshots) != 0 || len(res.Fills) != 0 || res.Tainted() {
		t.Errorf("expected empty result, got %+v", res)
	}
}
