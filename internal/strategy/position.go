package strategy

import "time"

// Side is the outcome token a fill buys.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Role classifies why a fill happened.
type Role string

const (
	RoleEntry Role = "ENTRY"
	RoleDCA   Role = "DCA"
	RoleHedge Role = "HEDGE"
	RoleExit  Role = "EXIT"
)

// Fill is an executed order. Created only by the state machine and
// immutable once appended to the ledger.
type Fill struct {
	Side  Side
	Role  Role
	Price float64
	Size  float64
	Time  time.Time
}

// Position owns the append-only fill ledger for exactly one market
// instance. The size-weighted average entry price is maintained
// incrementally and must equal a full rescan of the ledger at every
// point.
type Position struct {
	fills []Fill

	yesShares float64 // ENTRY+DCA shares
	yesCost   float64 // Σ price*size over ENTRY+DCA fills
	noShares  float64 // HEDGE shares
	noCost    float64

	levelsConsumed int
	avgEntry       float64
}

func (p *Position) append(f Fill) {
	p.fills = append(p.fills, f)

	switch f.Role {
	case RoleEntry, RoleDCA:
		p.yesShares += f.Size
		p.yesCost += f.Price * f.Size
		p.avgEntry = p.yesCost / p.yesShares
		if f.Role == RoleDCA {
			p.levelsConsumed++
		}
	case RoleHedge:
		p.noShares += f.Size
		p.noCost += f.Price * f.Size
	}
	// EXIT fills are bookkeeping markers: they realize existing
	// holdings and change no exposure totals.
}

// Fills returns the ledger. The returned slice must not be mutated.
func (p *Position) Fills() []Fill {
	return p.fills
}

// AverageEntryPrice is the size-weighted mean over YES ENTRY and DCA
// fills, maintained incrementally.
func (p *Position) AverageEntryPrice() float64 {
	return p.avgEntry
}

// RecomputeAverageEntryPrice rescans the full ledger. It exists to
// check the incremental value against; the two must always agree.
func (p *Position) RecomputeAverageEntryPrice() float64 {
	var cost, shares float64
	for _, f := range p.fills {
		if f.Side == SideYes && (f.Role == RoleEntry || f.Role == RoleDCA) {
			cost += f.Price * f.Size
			shares += f.Size
		}
	}
	if shares == 0 {
		return 0
	}
	return cost / shares
}

// YesShares is the accumulated primary-side exposure in shares.
func (p *Position) YesShares() float64 { return p.yesShares }

// NoShares is the hedge exposure in shares.
func (p *Position) NoShares() float64 { return p.noShares }

// LevelsConsumed counts DCA fills so far.
func (p *Position) LevelsConsumed() int { return p.levelsConsumed }

// DeployedCapital is total shares committed across entry, DCA and
// hedge fills. Exit fills don't deploy capital.
func (p *Position) DeployedCapital() float64 {
	return p.yesShares + p.noShares
}

// TotalCost is cash spent across both legs.
func (p *Position) TotalCost() float64 {
	return p.yesCost + p.noCost
}
