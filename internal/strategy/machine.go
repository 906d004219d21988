package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/polyquant/polyquant/internal/market"
)

// State of the position machine for one market instance.
type State string

const (
	StateFlat    State = "FLAT"
	StateEntered State = "ENTERED"
	StateHedged  State = "HEDGED"
	StateClosed  State = "CLOSED"
)

// Reason records what terminated the position.
type Reason string

const (
	ReasonForceUnwind Reason = "FORCE_UNWIND"
	ReasonResolution  Reason = "RESOLUTION"
)

// ErrOutOfOrder rejects a snapshot older than the last accepted one.
// The transition rules are path-sensitive, so reordering is a
// programming error in the feed, never something to repair here.
var ErrOutOfOrder = errors.New("snapshot out of order")

// Settlement is produced exactly once per position.
type Settlement struct {
	ExitYes       float64
	ExitNo        float64
	Reason        Reason
	FeedTruncated bool // feed ended before expiry and before resolution
	DataStale     bool // a feed gap exceeded the expected cadence
	RealizedPnL   float64
	ROI           float64 // NaN when no capital was ever deployed
	Time          time.Time
}

// Win reports whether the settlement realized a profit. Settlements
// with undefined ROI carry no opportunity and must be excluded from
// win-rate statistics by the caller, not counted as losses.
func (s Settlement) Win() bool {
	return s.RealizedPnL > 0
}

// Machine consumes one market instance's snapshots in timestamp order
// and emits fills and a final settlement. It is a synchronous reducer:
// no step blocks, and nothing is shared across instances.
type Machine struct {
	cfg    Config
	expiry time.Time

	state State
	pos   Position

	last        market.Snapshot
	seen        bool
	dataStale   bool
	maxExposure float64
	settlement  *Settlement
}

// NewMachine validates cfg and prepares a FLAT machine for a market
// settling at expiry.
func NewMachine(cfg Config, expiry time.Time) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy config: %w", err)
	}
	return &Machine{cfg: cfg, expiry: expiry, state: StateFlat}, nil
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Position exposes the fill ledger and derived exposure.
func (m *Machine) Position() *Position { return &m.pos }

// Settlement returns the terminal settlement, or nil while open.
func (m *Machine) Settlement() *Settlement { return m.settlement }

// MaxGrossExposure is the peak mark-to-market value of open holdings
// observed across the whole price path.
func (m *Machine) MaxGrossExposure() float64 { return m.maxExposure }

// Step evaluates the transition rules against one snapshot and
// returns the fills it produced, possibly none. Stepping a CLOSED
// machine is a no-op.
func (m *Machine) Step(s market.Snapshot) ([]Fill, error) {
	if m.state == StateClosed {
		return nil, nil
	}

	if m.seen {
		if s.Time.Before(m.last.Time) ||
			(s.Time.Equal(m.last.Time) && s.Seq <= m.last.Seq) {
			return nil, fmt.Errorf("%w: %v (seq %d) after %v (seq %d)",
				ErrOutOfOrder, s.Time, s.Seq, m.last.Time, m.last.Seq)
		}
		if m.cfg.StaleAfter > 0 && s.Time.Sub(m.last.Time) > m.cfg.StaleAfter {
			m.dataStale = true
		}
	}
	m.last = s
	m.seen = true

	if gross := s.Yes*m.pos.yesShares + s.No*m.pos.noShares; gross > m.maxExposure {
		m.maxExposure = gross
	}

	// Terminal checks pre-empt everything else: a market is never
	// held through its own settlement.
	if resolved, exitYes, exitNo := m.resolutionPrices(s); resolved {
		return m.close(s.Time, exitYes, exitNo, ReasonResolution, false), nil
	}
	if m.expiry.Sub(s.Time) <= m.cfg.ForceUnwind {
		return m.close(s.Time, s.Yes, s.No, ReasonForceUnwind, false), nil
	}

	switch m.state {
	case StateFlat:
		if s.Yes <= m.cfg.EntryThreshold {
			f := m.fill(SideYes, RoleEntry, m.buyPrice(s.Yes), m.cfg.UnitSize, s.Time)
			m.state = StateEntered
			// DCA evaluation begins on the next snapshot even when the
			// same jump crossed the first level.
			return []Fill{f}, nil
		}

	case StateEntered:
		if fills := m.tryDCA(s); len(fills) > 0 {
			return fills, nil
		}
		if s.Yes >= m.cfg.HedgeThreshold {
			size := m.cfg.hedgeRatio() * m.pos.yesShares
			f := m.fill(SideNo, RoleHedge, m.buyPrice(s.No), size, s.Time)
			m.state = StateHedged
			return []Fill{f}, nil
		}

	case StateHedged:
		// Frozen: only the terminal checks above can act.
	}

	return nil, nil
}

func (m *Machine) tryDCA(s market.Snapshot) []Fill {
	var fills []Fill
	for m.pos.levelsConsumed < m.cfg.MaxLevels() &&
		s.Yes <= m.cfg.DCALevels[m.pos.levelsConsumed] {
		fills = append(fills, m.fill(SideYes, RoleDCA, m.buyPrice(s.Yes), m.cfg.UnitSize, s.Time))
		if !m.cfg.AllowLevelSkip {
			// One level per snapshot; the rest wait for later
			// snapshots that still qualify.
			break
		}
	}
	return fills
}

// Finish handles the feed ending. A still-open position is forced out
// at the last known prices; before expiry the settlement is flagged
// feed-truncated. Safe to call on a CLOSED machine.
func (m *Machine) Finish() (*Settlement, []Fill) {
	if m.state == StateClosed {
		return m.settlement, nil
	}
	truncated := !m.seen || m.last.Time.Before(m.expiry)
	ts := m.expiry
	var yes, no float64
	if m.seen {
		ts = m.last.Time
		yes, no = m.last.Yes, m.last.No
	}
	fills := m.close(ts, yes, no, ReasonForceUnwind, truncated)
	return m.settlement, fills
}

func (m *Machine) close(ts time.Time, exitYes, exitNo float64, reason Reason, truncated bool) []Fill {
	var fills []Fill
	if m.pos.yesShares > 0 {
		fills = append(fills, m.fill(SideYes, RoleExit, exitYes, m.pos.yesShares, ts))
	}
	if m.pos.noShares > 0 {
		fills = append(fills, m.fill(SideNo, RoleExit, exitNo, m.pos.noShares, ts))
	}

	m.state = StateClosed
	m.settlement = &Settlement{
		ExitYes:       exitYes,
		ExitNo:        exitNo,
		Reason:        reason,
		FeedTruncated: truncated,
		DataStale:     m.dataStale,
		Time:          ts,
	}
	m.settlement.RealizedPnL, m.settlement.ROI = settle(&m.pos, exitYes, exitNo, m.cfg.FeeBps)
	return fills
}

// resolutionPrices reports whether the snapshot is a resolution print:
// either an explicit resolution event, or an at/after-expiry snapshot
// with a terminal price. Terminal prices collapse to {0,1}.
func (m *Machine) resolutionPrices(s market.Snapshot) (bool, float64, float64) {
	const eps = 1e-9
	terminal := !s.Time.Before(m.expiry) && (s.Yes <= eps || s.Yes >= 1-eps)
	if !s.Resolved && !terminal {
		return false, 0, 0
	}
	if s.Yes >= 0.5 {
		return true, 1, 0
	}
	return true, 0, 1
}

// buyPrice worsens a buy by the configured slippage, clamped inside
// the tradable band.
func (m *Machine) buyPrice(mid float64) float64 {
	p := mid * (1 + m.cfg.SlippageBps/10000)
	return math.Min(math.Max(p, 0.0001), 0.9999)
}

func (m *Machine) fill(side Side, role Role, price, size float64, ts time.Time) Fill {
	f := Fill{Side: side, Role: role, Price: price, Size: size, Time: ts}
	m.pos.append(f)
	return f
}

// settle computes realized PnL and ROI from the final ledger and exit
// prices. ENTRY/DCA legs realize at exitYes, the hedge leg at exitNo;
// EXIT fills are already priced by those terms and contribute nothing
// extra. ROI is NaN when no capital was deployed.
func settle(pos *Position, exitYes, exitNo, feeBps float64) (pnl, roi float64) {
	pnl = pos.yesShares*exitYes - pos.yesCost
	pnl += pos.noShares*exitNo - pos.noCost
	pnl -= pos.TotalCost() * feeBps / 10000

	deployed := pos.DeployedCapital()
	if deployed == 0 {
		return pnl, math.NaN()
	}
	return pnl, pnl / deployed
}
