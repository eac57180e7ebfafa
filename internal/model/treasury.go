package model

import (
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// FeeScale is the fixed-point denominator documented for the loan fee
// field. The settlement arithmetic applies LoanFee as an absolute
// base-unit surcharge per loan; the scale bounds the configurable range.
const FeeScale = 10_000_000

// Treasury is the persisted treasury state: one row per deployment,
// created by Initialize and mutated only through admin-proofed setters.
type Treasury struct {
	// Address is the treasury's own account identity with the issuer
	// and the pool.
	Address common.Address `json:"address"`

	Admin           common.Address `json:"admin"`
	Asset           common.Address `json:"asset"`
	CollateralAsset common.Address `json:"collateral_asset"`
	Pool            common.Address `json:"pool"`
	Exchange        common.Address `json:"exchange"`
	Borrower        common.Address `json:"borrower"`

	// LoanFee is the absolute base-unit fee charged per flash loan.
	LoanFee math.Int `json:"loan_fee"`

	// TrackedSupply is the net of all completed increase/decrease
	// operations, in base units. Never negative.
	TrackedSupply math.Int `json:"tracked_supply"`

	Initialized bool      `json:"initialized"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to mutate before committing.
func (t *Treasury) Clone() *Treasury {
	cp := *t
	if !t.LoanFee.IsNil() {
		cp.LoanFee = t.LoanFee.Add(math.ZeroInt())
	}
	if !t.TrackedSupply.IsNil() {
		cp.TrackedSupply = t.TrackedSupply.Add(math.ZeroInt())
	}
	return &cp
}

// LoanRecord is the durable record emitted on a completed flash loan.
type LoanRecord struct {
	ID            string         `json:"id"`
	Borrower      common.Address `json:"borrower"`
	Asset         common.Address `json:"asset"`
	Amount        math.Int       `json:"amount"`
	Fee           math.Int       `json:"fee"`
	BalanceBefore math.Int       `json:"balance_before"`
	BalanceAfter  math.Int       `json:"balance_after"`
	CreatedAt     time.Time      `json:"created_at"`
}
