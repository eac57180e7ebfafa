package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/signer"
)

func TestFlashLoanSuccess(t *testing.T) {
	fee := math.NewInt(1_000)
	amount := math.NewInt(1_000_000)
	h := newHarness(t, fee)

	borrowerAddr := crypto.PubkeyToAddress(h.borrowerKey.PublicKey)
	// the borrower's arbitrage profit covers the fee
	h.issuer.credit(borrowerAddr, fee)

	h.borrower.fn = func(ctx context.Context, p FlashloanParams) error {
		// repay principal plus fee out of the borrower's own balance
		return h.issuer.move(borrowerAddr, p.Treasury, p.Amount.Add(p.Fee))
	}

	rec, err := h.svc.FlashLoan(context.Background(),
		h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), amount.String()), amount)
	require.NoError(t, err)

	assert.Equal(t, amount.String(), rec.Amount.String())
	assert.Equal(t, fee.String(), rec.Fee.String())

	// principal burned, fee retained as surplus
	assert.Equal(t, fee.String(), h.issuer.balanceOf(h.self).String())
	assert.True(t, h.issuer.balanceOf(borrowerAddr).IsZero())

	// loan record reached the store
	require.Len(t, h.loans.records, 1)
	assert.Equal(t, rec.ID, h.loans.records[0].ID)

	// a flash loan never touches the tracked supply
	assert.True(t, h.tracked(t).IsZero())
}

func TestFlashLoanShortfall(t *testing.T) {
	fee := math.NewInt(1_000)
	amount := math.NewInt(1_000_000)
	h := newHarness(t, fee)

	borrowerAddr := crypto.PubkeyToAddress(h.borrowerKey.PublicKey)
	startBorrower := math.NewInt(50) // pre-existing borrower funds
	h.issuer.credit(borrowerAddr, startBorrower)

	h.borrower.fn = func(ctx context.Context, p FlashloanParams) error {
		// repays the principal only, keeps the fee
		return h.issuer.move(borrowerAddr, p.Treasury, p.Amount)
	}

	_, err := h.svc.FlashLoan(context.Background(),
		h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrFlashloanFailed))

	// zero net effect on both parties
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
	assert.Equal(t, startBorrower.String(), h.issuer.balanceOf(borrowerAddr).String())
	assert.Len(t, h.loans.records, 0)
}

func TestFlashLoanCallbackError(t *testing.T) {
	fee := math.NewInt(10)
	amount := math.NewInt(500)
	h := newHarness(t, fee)

	borrowerAddr := crypto.PubkeyToAddress(h.borrowerKey.PublicKey)
	h.borrower.fn = func(ctx context.Context, p FlashloanParams) error {
		return errors.New("rebalance legs could not be filled")
	}

	_, err := h.svc.FlashLoan(context.Background(),
		h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrFlashloanFailed))

	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
	assert.True(t, h.issuer.balanceOf(borrowerAddr).IsZero())
}

func TestFlashLoanRejectsNonBorrower(t *testing.T) {
	h := newHarness(t, math.NewInt(1_000))
	amount := math.NewInt(1_000_000)

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	proof, err := signer.SignOperation(stranger, OpFlashLoan, time.Now(), h.asset.Hex(), amount.String())
	require.NoError(t, err)

	_, err = h.svc.FlashLoan(context.Background(), proof, amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))

	// rejected before any mint happened
	assert.Equal(t, 0, h.issuer.mints)
}

func TestFlashLoanProofBindsAmount(t *testing.T) {
	h := newHarness(t, math.NewInt(1_000))

	// proof for one amount must not open a loan for another
	proof := h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), "1000")
	_, err := h.svc.FlashLoan(context.Background(), proof, math.NewInt(2000))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))
	assert.Equal(t, 0, h.issuer.mints)
}

func TestFlashLoanZeroFee(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	amount := math.NewInt(777)

	borrowerAddr := crypto.PubkeyToAddress(h.borrowerKey.PublicKey)
	h.borrower.fn = func(ctx context.Context, p FlashloanParams) error {
		return h.issuer.move(borrowerAddr, p.Treasury, p.Amount)
	}

	rec, err := h.svc.FlashLoan(context.Background(),
		h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), amount.String()), amount)
	require.NoError(t, err)
	assert.True(t, rec.Fee.IsZero())
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
	assert.True(t, h.issuer.balanceOf(borrowerAddr).IsZero())
}

func TestFlashLoanOverpaidPrincipalShortFee(t *testing.T) {
	fee := math.NewInt(1_000)
	amount := math.NewInt(10_000)
	h := newHarness(t, fee)

	borrowerAddr := crypto.PubkeyToAddress(h.borrowerKey.PublicKey)
	extra := math.NewInt(500)
	h.issuer.credit(borrowerAddr, extra)

	h.borrower.fn = func(ctx context.Context, p FlashloanParams) error {
		// repays principal plus part of the fee: still a failure
		return h.issuer.move(borrowerAddr, p.Treasury, p.Amount.Add(extra))
	}

	_, err := h.svc.FlashLoan(context.Background(),
		h.borrowerProof(t, OpFlashLoan, h.asset.Hex(), amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrFlashloanFailed))

	// both parties restored exactly
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
	assert.Equal(t, extra.String(), h.issuer.balanceOf(borrowerAddr).String())
}
