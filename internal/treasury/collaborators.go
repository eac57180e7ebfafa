package treasury

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/model"
)

// RequestType selects the pool-side action for one submit entry.
type RequestType uint32

const (
	RequestSupply           RequestType = 0
	RequestWithdraw         RequestType = 1
	RequestSupplyCollateral RequestType = 2
	RequestBorrow           RequestType = 4
)

// Request is one entry in a pool submission.
type Request struct {
	Type   RequestType    `json:"request_type"`
	Asset  common.Address `json:"asset"`
	Amount math.Int       `json:"amount"`
}

// Positions is the pool's report of an owner's balances, keyed by
// asset address. Resolving the treasury's position by asset, not by
// reserve index, is deliberate: reserve ordering is the pool's
// private business.
type Positions struct {
	Supply      map[common.Address]math.Int `json:"supply"`
	Collateral  map[common.Address]math.Int `json:"collateral"`
	Liabilities map[common.Address]math.Int `json:"liabilities"`
}

// SupplyOf returns the reported supplied position for an asset,
// zero when the pool has never seen it.
func (p Positions) SupplyOf(asset common.Address) math.Int {
	if v, ok := p.Supply[asset]; ok && !v.IsNil() {
		return v
	}
	return math.ZeroInt()
}

// Pool is the lending-protocol collaborator. Submit entries that pull
// funds out of the treasury require a transfer grant scoped to the
// exact movement; the pool adapter consumes it before acting.
type Pool interface {
	Submit(ctx context.Context, transfer *grant.Grant, from, spender, to common.Address, requests []Request) (Positions, error)
	GetPositions(ctx context.Context, owner common.Address) (Positions, error)
}

// AssetIssuer is the mint/burn authority for the treasury's asset.
// Mint, Burn, and Transfer act on the treasury's own authority and
// demand a grant covering the exact call.
type AssetIssuer interface {
	Mint(ctx context.Context, g *grant.Grant, to common.Address, amount math.Int) error
	Burn(ctx context.Context, g *grant.Grant, from common.Address, amount math.Int) error
	Transfer(ctx context.Context, g *grant.Grant, from, to common.Address, amount math.Int) error
	Balance(ctx context.Context, of common.Address) (math.Int, error)
}

// FlashloanParams is everything the borrower callback needs to run
// its own rebalancing against the pool and the exchange.
type FlashloanParams struct {
	Asset           common.Address `json:"asset"`
	Treasury        common.Address `json:"treasury"`
	Pool            common.Address `json:"pool"`
	Exchange        common.Address `json:"exchange"`
	CollateralAsset common.Address `json:"collateral_asset"`
	Amount          math.Int       `json:"amount"`
	Fee             math.Int       `json:"fee"`
}

// BorrowerCallback is the counter-party's mid-loan hook. Its body is
// opaque to the treasury; only successful completion is consumed.
type BorrowerCallback interface {
	FlashloanReceive(ctx context.Context, p FlashloanParams) error
}

// StateStore persists the treasury row (config plus tracked supply).
type StateStore interface {
	// Load returns (nil, nil) when no treasury has been initialized.
	Load(ctx context.Context) (*model.Treasury, error)
	Save(ctx context.Context, t *model.Treasury) error
	// Touch refreshes the retention lifetime of cached copies.
	Touch(ctx context.Context) error
}

// LoanStore records completed flash loans.
type LoanStore interface {
	Append(ctx context.Context, rec *model.LoanRecord) error
}

// Publisher fans a completed loan out to live subscribers.
type Publisher interface {
	PublishLoan(rec model.LoanRecord)
}
