// Package ledger holds the treasury's self-reported outstanding
// supply counter.
package ledger

import (
	"cosmossdk.io/math"
)

// SupplyLedger tracks the net of all completed increase/decrease
// operations, in base units. It carries no validation of its own:
// the supply manager is its sole writer and enforces non-negativity
// before calling Set. Not safe for concurrent use; the treasury
// serializes operations around it.
type SupplyLedger struct {
	trackedSupply math.Int
}

func New(initial math.Int) *SupplyLedger {
	if initial.IsNil() {
		initial = math.ZeroInt()
	}
	return &SupplyLedger{trackedSupply: initial}
}

func (l *SupplyLedger) Get() math.Int {
	return l.trackedSupply
}

func (l *SupplyLedger) Set(v math.Int) {
	l.trackedSupply = v
}
