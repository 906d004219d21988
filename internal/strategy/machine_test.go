package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/polyquant/polyquant/internal/market"
)

var t0 = time.Unix(1765988100, 0).UTC()

func testConfig() Config {
	return Config{
		EntryThreshold: 0.35,
		HedgeThreshold: 0.65,
		DCALevels:      []float64{0.25, 0.15, 0.05},
		ForceUnwind:    5 * time.Minute,
		UnitSize:       1,
	}
}

func newTestMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()
	m, err := NewMachine(cfg, t0.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func snap(minute float64, yes float64) market.Snapshot {
	return market.Snapshot{
		Time: t0.Add(time.Duration(minute * float64(time.Minute))),
		Seq:  int64(minute * 100),
		Yes:  yes,
		No:   1 - yes,
	}
}

// step feeds a snapshot and fails the test on a sequencing error.
func step(t *testing.T, m *Machine, s market.Snapshot) []Fill {
	t.Helper()
	fills, err := m.Step(s)
	if err != nil {
		t.Fatalf("Step(%v): %v", s.Time, err)
	}
	// Incremental average must equal the full rescan after every step.
	inc := m.Position().AverageEntryPrice()
	full := m.Position().RecomputeAverageEntryPrice()
	if math.Abs(inc-full) > 1e-12 {
		t.Fatalf("incremental avg %v != recomputed avg %v", inc, full)
	}
	return fills
}

func feed(t *testing.T, m *Machine, path ...float64) []Fill {
	t.Helper()
	var all []Fill
	for i, yes := range path {
		all = append(all, step(t, m, snap(float64(i), yes))...)
	}
	return all
}

func TestMachine_NeverCrossesEntry(t *testing.T) {
	m := newTestMachine(t, testConfig())
	fills := feed(t, m, 0.50, 0.45, 0.48, 0.40, 0.55)

	if len(fills) != 0 {
		t.Fatalf("expected no fills, got %d", len(fills))
	}
	if m.State() != StateFlat {
		t.Errorf("state = %s, want FLAT", m.State())
	}

	settlement, exitFills := m.Finish()
	if len(exitFills) != 0 {
		t.Errorf("no exposure, expected no exit fills, got %d", len(exitFills))
	}
	if !math.IsNaN(settlement.ROI) {
		t.Errorf("ROI must be undefined with no entry, got %v", settlement.ROI)
	}
	if m.State() != StateClosed {
		t.Errorf("state after Finish = %s, want CLOSED", m.State())
	}
}

func TestMachine_WorkedExample(t *testing.T) {
	m := newTestMachine(t, testConfig())
	fills := feed(t, m, 0.40, 0.34, 0.24, 0.14, 0.05, 0.70)

	want := []struct {
		side  Side
		role  Role
		price float64
		size  float64
	}{
		{SideYes, RoleEntry, 0.34, 1},
		{SideYes, RoleDCA, 0.24, 1},
		{SideYes, RoleDCA, 0.14, 1},
		{SideYes, RoleDCA, 0.05, 1},
		{SideNo, RoleHedge, 0.30, 4},
	}
	if len(fills) != len(want) {
		t.Fatalf("got %d fills, want %d: %+v", len(fills), len(want), fills)
	}
	for i, w := range want {
		f := fills[i]
		if f.Side != w.side || f.Role != w.role {
			t.Errorf("fill %d: got %s/%s, want %s/%s", i, f.Side, f.Role, w.side, w.role)
		}
		if math.Abs(f.Price-w.price) > 1e-9 || math.Abs(f.Size-w.size) > 1e-9 {
			t.Errorf("fill %d: got %.4f x %.1f, want %.4f x %.1f", i, f.Price, f.Size, w.price, w.size)
		}
	}

	if got := m.Position().AverageEntryPrice(); math.Abs(got-0.1925) > 1e-9 {
		t.Errorf("average entry = %v, want 0.1925", got)
	}
	if m.State() != StateHedged {
		t.Errorf("state = %s, want HEDGED", m.State())
	}

	// Resolution settles YES = 1.0 at expiry.
	res := snap(15, 1.0)
	exitFills, err := m.Step(res)
	if err != nil {
		t.Fatalf("resolution step: %v", err)
	}
	if len(exitFills) != 2 {
		t.Fatalf("expected YES and NO exit fills, got %d", len(exitFills))
	}
	for _, f := range exitFills {
		if f.Role != RoleExit {
			t.Errorf("expected EXIT role, got %s", f.Role)
		}
	}

	s := m.Settlement()
	if s == nil {
		t.Fatal("expected settlement")
	}
	if s.Reason != ReasonResolution {
		t.Errorf("reason = %s, want RESOLUTION", s.Reason)
	}
	if math.Abs(s.RealizedPnL-2.03) > 1e-9 {
		t.Errorf("pnl = %v, want 2.03", s.RealizedPnL)
	}
	if math.Abs(s.ROI-2.03/8.0) > 1e-9 {
		t.Errorf("roi = %v, want %v", s.ROI, 2.03/8.0)
	}
	if !s.Win() {
		t.Error("expected a win")
	}
}

func TestMachine_MonotonicDecreaseConsumesAllLevels(t *testing.T) {
	cfg := testConfig()
	m := newTestMachine(t, cfg)
	fills := feed(t, m, 0.34, 0.24, 0.14, 0.04)

	var dcaPrices []float64
	for _, f := range fills {
		if f.Role == RoleDCA {
			dcaPrices = append(dcaPrices, f.Price)
		}
	}
	if len(dcaPrices) != cfg.MaxLevels() {
		t.Fatalf("got %d DCA fills, want %d", len(dcaPrices), cfg.MaxLevels())
	}
	for i := 1; i < len(dcaPrices); i++ {
		if dcaPrices[i] >= dcaPrices[i-1] {
			t.Errorf("DCA fills must descend: %v", dcaPrices)
		}
	}

	avg := m.Position().AverageEntryPrice()
	lowest := cfg.DCALevels[len(cfg.DCALevels)-1]
	if avg <= lowest || avg >= cfg.EntryThreshold {
		t.Errorf("average entry %v must lie strictly between %v and %v",
			avg, lowest, cfg.EntryThreshold)
	}
}

func TestMachine_EntryAndFirstLevelSameSnapshot(t *testing.T) {
	// A single jump through both the entry threshold and the first
	// DCA level emits only the ENTRY that step.
	m := newTestMachine(t, testConfig())
	fills := step(t, m, snap(0, 0.20))

	if len(fills) != 1 || fills[0].Role != RoleEntry {
		t.Fatalf("expected single ENTRY fill, got %+v", fills)
	}

	// The next snapshot still below the level consumes it.
	fills = step(t, m, snap(1, 0.20))
	if len(fills) != 1 || fills[0].Role != RoleDCA {
		t.Fatalf("expected single DCA fill, got %+v", fills)
	}
	if m.Position().LevelsConsumed() != 1 {
		t.Errorf("levels consumed = %d, want 1", m.Position().LevelsConsumed())
	}
}

func TestMachine_LevelsNeverSkipOutOfOrder(t *testing.T) {
	// Price gaps past two thresholds in one snapshot: one level per
	// snapshot, remaining levels on subsequent qualifying snapshots.
	m := newTestMachine(t, testConfig())
	step(t, m, snap(0, 0.34)) // ENTRY

	fills := step(t, m, snap(1, 0.10)) // crosses 0.25 and 0.15 at once
	if len(fills) != 1 || fills[0].Role != RoleDCA {
		t.Fatalf("expected exactly one DCA fill, got %+v", fills)
	}
	if m.Position().LevelsConsumed() != 1 {
		t.Fatalf("levels consumed = %d, want 1", m.Position().LevelsConsumed())
	}

	fills = step(t, m, snap(2, 0.10)) // still below the second level
	if len(fills) != 1 || fills[0].Role != RoleDCA {
		t.Fatalf("expected the second DCA fill, got %+v", fills)
	}

	// 0.10 does not qualify for the last level at 0.05.
	fills = step(t, m, snap(3, 0.10))
	if len(fills) != 0 {
		t.Fatalf("an already-consumed level must be a no-op, got %+v", fills)
	}
}

func TestMachine_AllowLevelSkipBackfills(t *testing.T) {
	cfg := testConfig()
	cfg.AllowLevelSkip = true
	m := newTestMachine(t, cfg)
	step(t, m, snap(0, 0.34))

	fills := step(t, m, snap(1, 0.04))
	if len(fills) != 3 {
		t.Fatalf("expected all three levels back-filled, got %d", len(fills))
	}
	for _, f := range fills {
		if f.Role != RoleDCA || f.Price != 0.04 {
			t.Errorf("unexpected fill %+v", f)
		}
	}
}

func TestMachine_NoDCAAfterHedge(t *testing.T) {
	m := newTestMachine(t, testConfig())
	feed(t, m, 0.34, 0.70) // ENTRY then HEDGE

	if m.State() != StateHedged {
		t.Fatalf("state = %s, want HEDGED", m.State())
	}
	fills := step(t, m, snap(2, 0.10)) // would be a DCA if reachable
	if len(fills) != 0 {
		t.Fatalf("hedged position is frozen, got fills %+v", fills)
	}
}

func TestMachine_HedgeSizeOffsetsFullNotional(t *testing.T) {
	m := newTestMachine(t, testConfig())
	fills := feed(t, m, 0.34, 0.24, 0.70)

	hedge := fills[len(fills)-1]
	if hedge.Role != RoleHedge {
		t.Fatalf("expected HEDGE last, got %+v", fills)
	}
	if hedge.Size != 2 {
		t.Errorf("hedge size = %v, want 2 (total YES shares)", hedge.Size)
	}
	if math.Abs(hedge.Price-0.30) > 1e-9 {
		t.Errorf("hedge price = %v, want no_price 0.30", hedge.Price)
	}
}

func TestMachine_HedgeRatio(t *testing.T) {
	cfg := testConfig()
	cfg.HedgeRatio = 0.5
	m := newTestMachine(t, cfg)
	fills := feed(t, m, 0.34, 0.24, 0.70)

	hedge := fills[len(fills)-1]
	if hedge.Size != 1 {
		t.Errorf("hedge size = %v, want 1 (half of 2 YES shares)", hedge.Size)
	}
}

func TestMachine_ForceUnwindTiming(t *testing.T) {
	// Spec example: feed pauses 6 minutes before expiry with an open
	// position, force_unwind = 5m. Nothing fires at 6 minutes; the
	// next snapshot at 4 minutes to expiry must force the exit.
	m := newTestMachine(t, testConfig())
	step(t, m, snap(0, 0.34))

	fills := step(t, m, snap(9, 0.40)) // 6 minutes to expiry
	if len(fills) != 0 {
		t.Fatalf("guard fired too early: %+v", fills)
	}
	if m.State() != StateEntered {
		t.Fatalf("state = %s, want ENTERED", m.State())
	}

	fills = step(t, m, snap(11, 0.40)) // 4 minutes to expiry
	if len(fills) != 1 || fills[0].Role != RoleExit || fills[0].Side != SideYes {
		t.Fatalf("expected a YES exit fill, got %+v", fills)
	}
	s := m.Settlement()
	if s == nil || s.Reason != ReasonForceUnwind {
		t.Fatalf("expected FORCE_UNWIND settlement, got %+v", s)
	}
	if s.FeedTruncated {
		t.Error("in-feed force unwind must not be flagged feed-truncated")
	}
}

func TestMachine_ClosesForEveryPath(t *testing.T) {
	paths := map[string][]float64{
		"never enters":     {0.50, 0.55, 0.60},
		"enters and holds": {0.34, 0.40, 0.45},
		"enters and dcas":  {0.34, 0.24, 0.14},
		"hedged":           {0.34, 0.70, 0.72},
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			m := newTestMachine(t, testConfig())
			feed(t, m, path...)
			// Keep feeding through expiry: the guard must close at or
			// before force_unwind before expiry.
			for minute := float64(len(path)); minute <= 15; minute++ {
				step(t, m, snap(minute, 0.50))
				if m.State() == StateClosed {
					break
				}
			}
			if m.State() != StateClosed {
				t.Fatalf("machine never closed")
			}
			ttx := m.expiry.Sub(m.Settlement().Time)
			if ttx < 5*time.Minute {
				t.Errorf("closed %v before expiry, want >= force_unwind", ttx)
			}
		})
	}
}

func TestMachine_OutOfOrderRejected(t *testing.T) {
	m := newTestMachine(t, testConfig())
	step(t, m, snap(2, 0.50))

	_, err := m.Step(snap(1, 0.50))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}

	// Equal timestamp with a non-advancing sequence number is also
	// out of order.
	dup := snap(2, 0.50)
	_, err = m.Step(dup)
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder for duplicate seq, got %v", err)
	}
}

func TestMachine_StaleGapFlagged(t *testing.T) {
	cfg := testConfig()
	cfg.StaleAfter = 90 * time.Second
	m := newTestMachine(t, cfg)

	step(t, m, snap(0, 0.34))
	step(t, m, snap(4, 0.36)) // 4-minute gap exceeds the cadence

	settlement, _ := m.Finish()
	if !settlement.DataStale {
		t.Error("expected data_stale settlement after feed gap")
	}
	if !settlement.FeedTruncated {
		t.Error("feed ended before expiry: expected feed-truncated flag")
	}
	if settlement.Reason != ReasonForceUnwind {
		t.Errorf("reason = %s, want FORCE_UNWIND", settlement.Reason)
	}
}

func TestMachine_StepAfterClosedIsNoop(t *testing.T) {
	m := newTestMachine(t, testConfig())
	m.Finish()

	fills, err := m.Step(snap(1, 0.10))
	if err != nil || len(fills) != 0 {
		t.Fatalf("closed machine must ignore snapshots, got %v, %v", fills, err)
	}
}

func TestMachine_SlippageWorsensBuys(t *testing.T) {
	cfg := testConfig()
	cfg.SlippageBps = 10
	m := newTestMachine(t, cfg)

	fills := step(t, m, snap(0, 0.34))
	want := 0.34 * 1.001
	if math.Abs(fills[0].Price-want) > 1e-12 {
		t.Errorf("entry price = %v, want %v", fills[0].Price, want)
	}
}

func TestSettle_FeesReducePnL(t *testing.T) {
	var pos Position
	pos.append(Fill{Side: SideYes, Role: RoleEntry, Price: 0.30, Size: 10})

	pnl, _ := settle(&pos, 1, 0, 0)
	pnlFee, _ := settle(&pos, 1, 0, 100) // 1% of 3.0 cost
	if math.Abs((pnl-pnlFee)-0.03) > 1e-9 {
		t.Errorf("fee charge = %v, want 0.03", pnl-pnlFee)
	}
}
