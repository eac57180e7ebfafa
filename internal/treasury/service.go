// Package treasury implements the supply-and-liquidity treasury for a
// pegged asset issued against a lending pool: supply bookkeeping
// against the pool and the single-transaction flash loan granted to
// the registered borrower.
package treasury

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pegvault/pegvault/internal/ledger"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/signer"
)

// Operation names bound into identity proofs. A proof signs the
// operation plus its exact arguments, so a signature for one call
// never authorizes another.
const (
	OpSetAdmin       = "set_admin"
	OpSetBorrower    = "set_borrower"
	OpSetLoanFee     = "set_loan_fee"
	OpIncreaseSupply = "increase_supply"
	OpDecreaseSupply = "decrease_supply"
	OpFlashLoan      = "flash_loan"
)

type Service struct {
	// mu serializes every state-mutating operation: the treasury
	// never observes interleaved supply or flash-loan flows.
	mu sync.Mutex

	state  *model.Treasury // nil until initialized
	ledger *ledger.SupplyLedger

	store    StateStore
	loans    LoanStore
	pool     Pool
	issuer   AssetIssuer
	borrower BorrowerCallback
	verifier *signer.Verifier
	events   Publisher
}

type Deps struct {
	Store    StateStore
	Loans    LoanStore
	Pool     Pool
	Issuer   AssetIssuer
	Borrower BorrowerCallback
	Verifier *signer.Verifier
	Events   Publisher
}

// New builds the service and restores persisted state, if any.
func New(ctx context.Context, d Deps) (*Service, error) {
	s := &Service{
		store:    d.Store,
		loans:    d.Loans,
		pool:     d.Pool,
		issuer:   d.Issuer,
		borrower: d.Borrower,
		verifier: d.Verifier,
		events:   d.Events,
	}

	state, err := d.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load treasury state: %w", err)
	}
	if state != nil {
		s.state = state
		s.ledger = ledger.New(state.TrackedSupply)
		logger.Info("treasury state restored",
			"admin", state.Admin.Hex(),
			"asset", state.Asset.Hex(),
			"tracked_supply", state.TrackedSupply.String())
	} else {
		s.ledger = ledger.New(math.ZeroInt())
	}
	return s, nil
}

type InitializeParams struct {
	Address         common.Address
	Admin           common.Address
	Asset           common.Address
	CollateralAsset common.Address
	Pool            common.Address
	Exchange        common.Address
	Borrower        common.Address
	LoanFee         math.Int
}

// Initialize bootstraps the treasury exactly once.
func (s *Service) Initialize(ctx context.Context, p InitializeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return apperrors.New(apperrors.ErrAlreadyInitialized, "treasury already initialized", nil)
	}
	fee := p.LoanFee
	if fee.IsNil() {
		fee = math.ZeroInt()
	}
	if err := validateLoanFee(fee); err != nil {
		return err
	}

	state := &model.Treasury{
		Address:         p.Address,
		Admin:           p.Admin,
		Asset:           p.Asset,
		CollateralAsset: p.CollateralAsset,
		Pool:            p.Pool,
		Exchange:        p.Exchange,
		Borrower:        p.Borrower,
		LoanFee:         fee,
		TrackedSupply:   math.ZeroInt(),
		Initialized:     true,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.store.Save(ctx, state); err != nil {
		return apperrors.New(apperrors.ErrInternal, "persist treasury state", err)
	}
	s.state = state
	s.ledger.Set(math.ZeroInt())

	logger.Info("treasury initialized",
		"address", state.Address.Hex(),
		"admin", state.Admin.Hex(),
		"asset", state.Asset.Hex(),
		"pool", state.Pool.Hex(),
		"borrower", state.Borrower.Hex())
	return nil
}

// SetAdmin rotates the admin. Both the current and the incoming admin
// must prove identity over the same operation arguments.
func (s *Service) SetAdmin(ctx context.Context, current signer.Proof, incoming signer.Proof, newAdmin common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.verifier.Verify(current, s.state.Admin, OpSetAdmin, newAdmin.Hex()); err != nil {
		return apperrors.New(apperrors.ErrNotAuthorized, "admin proof rejected", err)
	}
	if err := s.verifier.Verify(incoming, newAdmin, OpSetAdmin, newAdmin.Hex()); err != nil {
		return apperrors.New(apperrors.ErrNotAuthorized, "incoming admin proof rejected", err)
	}

	return s.commitState(ctx, func(t *model.Treasury) {
		t.Admin = newAdmin
	})
}

// SetBorrower registers the only identity allowed to draw flash loans.
func (s *Service) SetBorrower(ctx context.Context, proof signer.Proof, borrower common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.verifier.Verify(proof, s.state.Admin, OpSetBorrower, borrower.Hex()); err != nil {
		return apperrors.New(apperrors.ErrNotAuthorized, "admin proof rejected", err)
	}

	return s.commitState(ctx, func(t *model.Treasury) {
		t.Borrower = borrower
	})
}

// SetLoanFee updates the per-loan fee, in base units of the asset.
func (s *Service) SetLoanFee(ctx context.Context, proof signer.Proof, fee math.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.verifier.Verify(proof, s.state.Admin, OpSetLoanFee, fee.String()); err != nil {
		return apperrors.New(apperrors.ErrNotAuthorized, "admin proof rejected", err)
	}
	if err := validateLoanFee(fee); err != nil {
		return err
	}

	return s.commitState(ctx, func(t *model.Treasury) {
		t.LoanFee = fee
	})
}

// Config returns a copy of the current treasury state.
func (s *Service) Config() (*model.Treasury, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.state.Clone(), nil
}

// TrackedSupply returns the ledger counter.
func (s *Service) TrackedSupply() (math.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return math.Int{}, err
	}
	return s.ledger.Get(), nil
}

func (s *Service) requireInitialized() error {
	if s.state == nil {
		return apperrors.New(apperrors.ErrNotFound, "treasury not initialized", nil)
	}
	return nil
}

// commitState applies a mutation to a copy, persists it, then swaps
// it in. Every mutating call also refreshes the retention lifetime of
// cached state, matching the storage housekeeping of the ledger entry.
func (s *Service) commitState(ctx context.Context, mutate func(t *model.Treasury)) error {
	next := s.state.Clone()
	mutate(next)
	next.TrackedSupply = s.ledger.Get()
	next.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, next); err != nil {
		return apperrors.New(apperrors.ErrInternal, "persist treasury state", err)
	}
	s.state = next
	if err := s.store.Touch(ctx); err != nil {
		logger.Warn("state retention refresh failed", "error", err)
	}
	return nil
}

func validateLoanFee(fee math.Int) error {
	if fee.IsNegative() {
		return apperrors.NewInvalidRequest("loan fee must not be negative")
	}
	if fee.GTE(math.NewInt(model.FeeScale)) {
		return apperrors.NewInvalidRequest("loan fee exceeds the fixed-point scale bound")
	}
	return nil
}
