package treasury

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/pkg/metrics"
	"github.com/pegvault/pegvault/internal/signer"
)

// IncreaseSupply mints amount to the treasury, supplies it to the
// pool under a transfer grant scoped to exactly that movement, and
// advances the tracked-supply counter. All-or-nothing: a failure at
// any step compensates the external effects already applied and
// leaves the ledger untouched.
func (s *Service) IncreaseSupply(ctx context.Context, proof signer.Proof, amount math.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.verifier.Verify(proof, s.state.Admin, OpIncreaseSupply, amount.String()); err != nil {
		metrics.AuthRejects.WithLabelValues("increase_supply").Inc()
		return apperrors.New(apperrors.ErrNotAuthorized, "admin proof rejected", err)
	}
	if amount.IsNegative() {
		return apperrors.NewInvalidRequest("amount must not be negative")
	}

	self := s.state.Address
	asset := s.state.Asset
	pool := s.state.Pool

	b := grant.NewBuilder(self)
	defer b.Set().Revoke()
	j := newJournal()

	mintGrant := b.Grant(asset, "mint", self.Hex(), amount.String())
	if err := s.issuer.Mint(ctx, mintGrant, self, amount); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("increase", "error").Inc()
		return apperrors.New(apperrors.ErrUpstream, "mint to treasury failed", err)
	}
	j.record(func(ctx context.Context) error {
		undo := grant.NewBuilder(self)
		defer undo.Set().Revoke()
		g := undo.Grant(asset, "burn", self.Hex(), amount.String())
		return s.issuer.Burn(ctx, g, self, amount)
	})

	transferGrant := b.Grant(asset, "transfer", self.Hex(), pool.Hex(), amount.String())
	if _, err := s.pool.Submit(ctx, transferGrant, self, self, self, []Request{
		{Type: RequestSupply, Asset: asset, Amount: amount},
	}); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("increase", "error").Inc()
		_ = j.rollback(ctx)
		return apperrors.New(apperrors.ErrUpstream, "pool supply submission failed", err)
	}
	j.record(func(ctx context.Context) error {
		_, err := s.pool.Submit(ctx, nil, self, self, self, []Request{
			{Type: RequestWithdraw, Asset: asset, Amount: amount},
		})
		return err
	})

	newSupply := s.ledger.Get().Add(amount)
	if err := s.commitSupply(ctx, newSupply); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("increase", "error").Inc()
		_ = j.rollback(ctx)
		return err
	}

	metrics.SupplyOpsTotal.WithLabelValues("increase", "ok").Inc()
	logger.Info("supply increased",
		"amount", amount.String(),
		"tracked_supply", newSupply.String())
	return nil
}

// DecreaseSupply withdraws amount from the pool, burns it from the
// treasury's balance, and lowers the tracked-supply counter. The
// tracked ledger and the pool-reported position are both checked
// before anything moves; neither bookkeeping system may claim more
// than the other holds.
func (s *Service) DecreaseSupply(ctx context.Context, proof signer.Proof, amount math.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.verifier.Verify(proof, s.state.Admin, OpDecreaseSupply, amount.String()); err != nil {
		metrics.AuthRejects.WithLabelValues("decrease_supply").Inc()
		return apperrors.New(apperrors.ErrNotAuthorized, "admin proof rejected", err)
	}
	if amount.IsNegative() {
		return apperrors.NewInvalidRequest("amount must not be negative")
	}
	if amount.GT(s.ledger.Get()) {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "rejected").Inc()
		return apperrors.NewSupplyError("decrease exceeds tracked supply")
	}

	self := s.state.Address
	asset := s.state.Asset

	positions, err := s.pool.GetPositions(ctx, self)
	if err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "error").Inc()
		return apperrors.New(apperrors.ErrUpstream, "read pool positions failed", err)
	}
	if positions.SupplyOf(asset).LT(amount) {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "rejected").Inc()
		return apperrors.NewSupplyError("pool-reported position is below the requested amount")
	}

	b := grant.NewBuilder(self)
	defer b.Set().Revoke()
	j := newJournal()

	if _, err := s.pool.Submit(ctx, nil, self, self, self, []Request{
		{Type: RequestWithdraw, Asset: asset, Amount: amount},
	}); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "error").Inc()
		return apperrors.New(apperrors.ErrUpstream, "pool withdraw submission failed", err)
	}
	j.record(func(ctx context.Context) error {
		undo := grant.NewBuilder(self)
		defer undo.Set().Revoke()
		g := undo.Grant(asset, "transfer", self.Hex(), s.state.Pool.Hex(), amount.String())
		_, err := s.pool.Submit(ctx, g, self, self, self, []Request{
			{Type: RequestSupply, Asset: asset, Amount: amount},
		})
		return err
	})

	burnGrant := b.Grant(asset, "burn", self.Hex(), amount.String())
	if err := s.issuer.Burn(ctx, burnGrant, self, amount); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "error").Inc()
		_ = j.rollback(ctx)
		return apperrors.New(apperrors.ErrUpstream, "burn from treasury failed", err)
	}
	j.record(func(ctx context.Context) error {
		undo := grant.NewBuilder(self)
		defer undo.Set().Revoke()
		g := undo.Grant(asset, "mint", self.Hex(), amount.String())
		return s.issuer.Mint(ctx, g, self, amount)
	})

	newSupply := s.ledger.Get().Sub(amount)
	if err := s.commitSupply(ctx, newSupply); err != nil {
		metrics.SupplyOpsTotal.WithLabelValues("decrease", "error").Inc()
		_ = j.rollback(ctx)
		return err
	}

	metrics.SupplyOpsTotal.WithLabelValues("decrease", "ok").Inc()
	logger.Info("supply decreased",
		"amount", amount.String(),
		"tracked_supply", newSupply.String())
	return nil
}

// commitSupply persists the new counter and only then moves the
// in-memory ledger, so a persistence failure leaves the ledger at its
// pre-call value for the caller's rollback.
func (s *Service) commitSupply(ctx context.Context, newSupply math.Int) error {
	next := s.state.Clone()
	next.TrackedSupply = newSupply
	next.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, next); err != nil {
		return apperrors.New(apperrors.ErrInternal, "persist tracked supply", err)
	}
	s.state = next
	s.ledger.Set(newSupply)
	if err := s.store.Touch(ctx); err != nil {
		logger.Warn("state retention refresh failed", "error", err)
	}
	return nil
}
