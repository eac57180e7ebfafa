package upstream

import (
	"context"
	"time"

	"github.com/pegvault/pegvault/internal/pkg/metrics"
	"github.com/pegvault/pegvault/internal/treasury"
)

// BorrowerClient invokes the borrower's flashloan-receive webhook.
// The callback body is opaque to the treasury; anything other than a
// 2xx within the deadline is a failed loan.
type BorrowerClient struct {
	http httpClient
}

func NewBorrowerClient(baseURL string, timeout time.Duration) *BorrowerClient {
	if timeout <= 0 {
		// the callback runs the borrower's whole rebalancing flow
		timeout = 30 * time.Second
	}
	return &BorrowerClient{http: newHTTPClient(baseURL, timeout)}
}

func (c *BorrowerClient) FlashloanReceive(ctx context.Context, p treasury.FlashloanParams) error {
	if err := c.http.postJSON(ctx, "/flashloan-receive", p, nil); err != nil {
		metrics.UpstreamErrors.WithLabelValues("borrower").Inc()
		return err
	}
	return nil
}
