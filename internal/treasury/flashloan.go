package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/pkg/metrics"
	"github.com/pegvault/pegvault/internal/signer"
)

// loanState is the orchestrator's position in one flash-loan flow.
// The flow only ever advances forward; any failure moves it to
// aborted and triggers compensation of the effects applied so far.
type loanState int

const (
	stateIdle loanState = iota
	stateAuthorizationPrepared
	stateMinted
	stateCallbackInvoked
	stateVerified
	stateSettled
	stateAborted
)

func (s loanState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAuthorizationPrepared:
		return "authorization_prepared"
	case stateMinted:
		return "minted"
	case stateCallbackInvoked:
		return "callback_invoked"
	case stateVerified:
		return "verified"
	case stateSettled:
		return "settled"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// invocation is the ephemeral record of one flash-loan call. It never
// outlives the call: there is no such thing as a pending loan.
type invocation struct {
	id            string
	state         loanState
	amount        math.Int
	fee           math.Int
	balanceBefore math.Int
}

// FlashLoan lends amount of the asset to the registered borrower for
// the duration of the call. The borrower receives the minted amount
// directly, runs its callback against whatever venues it likes, and
// must land at least principal plus fee back at the treasury before
// the callback returns. Anything less aborts the entire invocation
// with no net effect.
func (s *Service) FlashLoan(ctx context.Context, proof signer.Proof, amount math.Int) (*model.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	self := s.state.Address
	asset := s.state.Asset
	borrower := s.state.Borrower

	// Entry gate: only the registered borrower, and only for exactly
	// this (asset, amount) pair. Nothing is minted before this check.
	if err := s.verifier.Verify(proof, borrower, OpFlashLoan, asset.Hex(), amount.String()); err != nil {
		metrics.AuthRejects.WithLabelValues("flash_loan").Inc()
		metrics.FlashLoansTotal.WithLabelValues("rejected").Inc()
		return nil, apperrors.New(apperrors.ErrNotAuthorized, "borrower proof rejected", err)
	}
	if amount.IsNegative() {
		return nil, apperrors.NewInvalidRequest("amount must not be negative")
	}

	inv := &invocation{
		id:     uuid.New().String(),
		state:  stateIdle,
		amount: amount,
		fee:    s.state.LoanFee,
	}
	log := logger.With("loan_id", inv.id, "amount", amount.String(), "fee", inv.fee.String())

	balanceBefore, err := s.issuer.Balance(ctx, self)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		metrics.FlashLoansTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.ErrUpstream, "read treasury balance", err)
	}
	inv.balanceBefore = balanceBefore

	// Idle -> AuthorizationPrepared: two single-use grants, one per
	// follow-on asset operation, each bound to exact arguments. A
	// re-entrant attempt from inside the callback cannot mint or burn
	// a second time: the grants are consumed on first use and cover
	// no other arguments.
	b := grant.NewBuilder(self)
	defer b.Set().Revoke()
	mintGrant := b.Grant(asset, "mint", borrower.Hex(), amount.String())
	burnGrant := b.Grant(asset, "burn", self.Hex(), amount.String())
	inv.state = stateAuthorizationPrepared

	// AuthorizationPrepared -> Minted: the borrower gets the
	// uncollateralized liquidity directly, no intermediate hop.
	if err := s.issuer.Mint(ctx, mintGrant, borrower, amount); err != nil {
		inv.state = stateAborted
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		metrics.FlashLoansTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.ErrUpstream, "mint to borrower failed", err)
	}
	inv.state = stateMinted

	// Minted -> CallbackInvoked: control leaves the treasury. No
	// invariant can be checked until it comes back.
	params := FlashloanParams{
		Asset:           asset,
		Treasury:        self,
		Pool:            s.state.Pool,
		Exchange:        s.state.Exchange,
		CollateralAsset: s.state.CollateralAsset,
		Amount:          amount,
		Fee:             inv.fee,
	}
	callbackErr := s.borrower.FlashloanReceive(ctx, params)
	inv.state = stateCallbackInvoked

	balanceAfter, err := s.issuer.Balance(ctx, self)
	if err != nil {
		inv.state = stateAborted
		s.abortLoan(ctx, inv, log)
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		metrics.FlashLoansTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.ErrUpstream, "read treasury balance after callback", err)
	}

	// CallbackInvoked -> Verified: the sole safety invariant. The
	// borrower may have routed repayment through any venue, as long
	// as it landed here.
	required := balanceBefore.Add(amount).Add(inv.fee)
	if callbackErr != nil || balanceAfter.LT(required) {
		inv.state = stateAborted
		s.abortLoanMeasured(ctx, inv, balanceAfter, log)
		metrics.FlashLoansTotal.WithLabelValues("failed").Inc()
		if callbackErr != nil {
			return nil, apperrors.New(apperrors.ErrFlashloanFailed, "borrower callback failed", callbackErr)
		}
		return nil, apperrors.New(apperrors.ErrFlashloanFailed,
			fmt.Sprintf("repayment short: have %s, need %s", balanceAfter.String(), required.String()), nil)
	}
	inv.state = stateVerified

	// Verified -> Settled: burn the principal, keep the fee as
	// retained surplus.
	if err := s.issuer.Burn(ctx, burnGrant, self, amount); err != nil {
		inv.state = stateAborted
		s.abortLoanMeasured(ctx, inv, balanceAfter, log)
		metrics.UpstreamErrors.WithLabelValues("issuer").Inc()
		metrics.FlashLoansTotal.WithLabelValues("error").Inc()
		return nil, apperrors.New(apperrors.ErrUpstream, "settlement burn failed", err)
	}
	inv.state = stateSettled

	rec := &model.LoanRecord{
		ID:            inv.id,
		Borrower:      borrower,
		Asset:         asset,
		Amount:        amount,
		Fee:           inv.fee,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		CreatedAt:     time.Now().UTC(),
	}
	if s.loans != nil {
		if err := s.loans.Append(ctx, rec); err != nil {
			log.Warn("loan record persistence failed", "error", err)
		}
	}
	if s.events != nil {
		s.events.PublishLoan(*rec)
	}
	if err := s.store.Touch(ctx); err != nil {
		log.Warn("state retention refresh failed", "error", err)
	}

	metrics.FlashLoansTotal.WithLabelValues("ok").Inc()
	log.Info("flash loan settled", "state", inv.state.String())
	return rec, nil
}

// abortLoan compensates a loan that failed before the post-callback
// balance was readable: the minted principal is clawed back from the
// borrower wholesale.
func (s *Service) abortLoan(ctx context.Context, inv *invocation, log *slog.Logger) {
	self := s.state.Address
	undo := grant.NewBuilder(self)
	defer undo.Set().Revoke()
	g := undo.Grant(s.state.Asset, "burn", s.state.Borrower.Hex(), inv.amount.String())
	if err := s.issuer.Burn(ctx, g, s.state.Borrower, inv.amount); err != nil {
		log.Warn("failed to claw back minted principal", "error", err)
	}
}

// abortLoanMeasured restores both parties to their pre-call balances
// after a failed verification: whatever repayment reached the
// treasury is burned back off, and the un-repaid remainder of the
// mint is clawed back from the borrower (or refunded, had the
// borrower overpaid principal while missing the fee).
func (s *Service) abortLoanMeasured(ctx context.Context, inv *invocation, balanceAfter math.Int, log *slog.Logger) {
	self := s.state.Address
	asset := s.state.Asset
	borrower := s.state.Borrower

	returned := balanceAfter.Sub(inv.balanceBefore)
	if returned.IsNegative() {
		returned = math.ZeroInt()
	}

	undo := grant.NewBuilder(self)
	defer undo.Set().Revoke()

	if returned.IsPositive() {
		g := undo.Grant(asset, "burn", self.Hex(), returned.String())
		if err := s.issuer.Burn(ctx, g, self, returned); err != nil {
			log.Warn("failed to burn returned repayment", "error", err)
		}
	}
	switch diff := inv.amount.Sub(returned); {
	case diff.IsPositive():
		g := undo.Grant(asset, "burn", borrower.Hex(), diff.String())
		if err := s.issuer.Burn(ctx, g, borrower, diff); err != nil {
			log.Warn("failed to claw back un-repaid principal", "error", err)
		}
	case diff.IsNegative():
		refund := diff.Neg()
		g := undo.Grant(asset, "mint", borrower.Hex(), refund.String())
		if err := s.issuer.Mint(ctx, g, borrower, refund); err != nil {
			log.Warn("failed to refund principal overpayment", "error", err)
		}
	}
}
