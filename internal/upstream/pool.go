package upstream

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/pkg/metrics"
	"github.com/pegvault/pegvault/internal/treasury"
)

// PoolClient talks to the lending pool service. Submit entries that
// pull funds from the treasury present the transfer grant to the
// in-process check before the submission goes on the wire, so a
// submission can never move more than the enclosing operation
// authorized.
type PoolClient struct {
	http httpClient
	// addr is the pool's on-ledger account, the destination the
	// transfer grants of supply submissions are bound to.
	addr common.Address
}

func NewPoolClient(baseURL string, addr common.Address, timeout time.Duration) *PoolClient {
	return &PoolClient{http: newHTTPClient(baseURL, timeout), addr: addr}
}

type submitRequest struct {
	From     common.Address  `json:"from"`
	Spender  common.Address  `json:"spender"`
	To       common.Address  `json:"to"`
	Requests []submitEntry   `json:"requests"`
}

type submitEntry struct {
	RequestType uint32         `json:"request_type"`
	Asset       common.Address `json:"asset"`
	Amount      math.Int       `json:"amount"`
}

type positionsResponse struct {
	Supply      map[string]math.Int `json:"supply"`
	Collateral  map[string]math.Int `json:"collateral"`
	Liabilities map[string]math.Int `json:"liabilities"`
}

func (c *PoolClient) Submit(ctx context.Context, transfer *grant.Grant, from, spender, to common.Address, requests []treasury.Request) (treasury.Positions, error) {
	wire := submitRequest{From: from, Spender: spender, To: to}
	for _, r := range requests {
		if fundsOut(r.Type) {
			if transfer == nil {
				return treasury.Positions{}, fmt.Errorf("submit entry %d pulls funds but carries no transfer grant", r.Type)
			}
			if err := transfer.Approve(r.Asset, "transfer", from.Hex(), c.addr.Hex(), r.Amount.String()); err != nil {
				return treasury.Positions{}, fmt.Errorf("transfer grant check: %w", err)
			}
		}
		wire.Requests = append(wire.Requests, submitEntry{
			RequestType: uint32(r.Type),
			Asset:       r.Asset,
			Amount:      r.Amount,
		})
	}

	var resp positionsResponse
	if err := c.http.postJSON(ctx, "/submit", wire, &resp); err != nil {
		metrics.UpstreamErrors.WithLabelValues("pool").Inc()
		return treasury.Positions{}, err
	}
	return decodePositions(resp)
}

func (c *PoolClient) GetPositions(ctx context.Context, owner common.Address) (treasury.Positions, error) {
	var resp positionsResponse
	if err := c.http.getJSON(ctx, "/positions/"+owner.Hex(), &resp); err != nil {
		metrics.UpstreamErrors.WithLabelValues("pool").Inc()
		return treasury.Positions{}, err
	}
	return decodePositions(resp)
}

func fundsOut(t treasury.RequestType) bool {
	return t == treasury.RequestSupply || t == treasury.RequestSupplyCollateral
}

func decodePositions(resp positionsResponse) (treasury.Positions, error) {
	out := treasury.Positions{
		Supply:      make(map[common.Address]math.Int, len(resp.Supply)),
		Collateral:  make(map[common.Address]math.Int, len(resp.Collateral)),
		Liabilities: make(map[common.Address]math.Int, len(resp.Liabilities)),
	}
	for _, m := range []struct {
		src map[string]math.Int
		dst map[common.Address]math.Int
	}{
		{resp.Supply, out.Supply},
		{resp.Collateral, out.Collateral},
		{resp.Liabilities, out.Liabilities},
	} {
		for k, v := range m.src {
			if !common.IsHexAddress(k) {
				return treasury.Positions{}, fmt.Errorf("pool returned position for invalid asset %q", k)
			}
			m.dst[common.HexToAddress(k)] = v
		}
	}
	return out, nil
}
