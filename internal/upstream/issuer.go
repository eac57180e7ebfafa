package upstream

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/pkg/metrics"
)

// IssuerClient talks to the asset issuer. Every privileged call
// consumes a grant bound to its exact arguments before it hits the
// wire: an issuer request the treasury never authorized cannot leave
// this process.
type IssuerClient struct {
	http  httpClient
	asset common.Address
}

func NewIssuerClient(baseURL string, asset common.Address, timeout time.Duration) *IssuerClient {
	return &IssuerClient{http: newHTTPClient(baseURL, timeout), asset: asset}
}

type mintRequest struct {
	To     common.Address `json:"to"`
	Amount math.Int       `json:"amount"`
}

type burnRequest struct {
	From   common.Address `json:"from"`
	Amount math.Int       `json:"amount"`
}

type transferRequest struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount math.Int       `json:"amount"`
}

type balanceResponse struct {
	Balance math.Int `json:"balance"`
}

func (c *IssuerClient) Mint(ctx context.Context, g *grant.Grant, to common.Address, amount math.Int) error {
	if g == nil {
		return fmt.Errorf("mint requires a grant")
	}
	if err := g.Approve(c.asset, "mint", to.Hex(), amount.String()); err != nil {
		return fmt.Errorf("mint grant check: %w", err)
	}
	if err := c.http.postJSON(ctx, "/mint", mintRequest{To: to, Amount: amount}, nil); err != nil {
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		return err
	}
	return nil
}

func (c *IssuerClient) Burn(ctx context.Context, g *grant.Grant, from common.Address, amount math.Int) error {
	if g == nil {
		return fmt.Errorf("burn requires a grant")
	}
	if err := g.Approve(c.asset, "burn", from.Hex(), amount.String()); err != nil {
		return fmt.Errorf("burn grant check: %w", err)
	}
	if err := c.http.postJSON(ctx, "/burn", burnRequest{From: from, Amount: amount}, nil); err != nil {
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		return err
	}
	return nil
}

func (c *IssuerClient) Transfer(ctx context.Context, g *grant.Grant, from, to common.Address, amount math.Int) error {
	if g == nil {
		return fmt.Errorf("transfer requires a grant")
	}
	if err := g.Approve(c.asset, "transfer", from.Hex(), to.Hex(), amount.String()); err != nil {
		return fmt.Errorf("transfer grant check: %w", err)
	}
	if err := c.http.postJSON(ctx, "/transfer", transferRequest{From: from, To: to, Amount: amount}, nil); err != nil {
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		return err
	}
	return nil
}

func (c *IssuerClient) Balance(ctx context.Context, of common.Address) (math.Int, error) {
	var resp balanceResponse
	if err := c.http.getJSON(ctx, "/balance/"+of.Hex(), &resp); err != nil {
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		return math.Int{}, err
	}
	if resp.Balance.IsNil() {
		return math.ZeroInt(), nil
	}
	return resp.Balance, nil
}
