package treasury

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegvault/pegvault/internal/grant"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/signer"
)

// --- fakes -----------------------------------------------------------------

type memStore struct {
	saved    *model.Treasury
	touches  int
	failSave bool
}

func (m *memStore) Load(ctx context.Context) (*model.Treasury, error) {
	if m.saved == nil {
		return nil, nil
	}
	return m.saved.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, t *model.Treasury) error {
	if m.failSave {
		return errors.New("store unavailable")
	}
	m.saved = t.Clone()
	return nil
}

func (m *memStore) Touch(ctx context.Context) error {
	m.touches++
	return nil
}

type memLoans struct {
	records []*model.LoanRecord
}

func (m *memLoans) Append(ctx context.Context, rec *model.LoanRecord) error {
	m.records = append(m.records, rec)
	return nil
}

// fakeIssuer keeps balances in memory and enforces the grant protocol
// the way the production adapter does: no privileged call without a
// grant covering the exact arguments.
type fakeIssuer struct {
	asset    common.Address
	balances map[common.Address]math.Int
	mints    int
	failMint bool
	failBurn bool
}

func newFakeIssuer(asset common.Address) *fakeIssuer {
	return &fakeIssuer{asset: asset, balances: make(map[common.Address]math.Int)}
}

func (f *fakeIssuer) balanceOf(a common.Address) math.Int {
	if v, ok := f.balances[a]; ok {
		return v
	}
	return math.ZeroInt()
}

func (f *fakeIssuer) credit(a common.Address, amt math.Int) {
	f.balances[a] = f.balanceOf(a).Add(amt)
}

func (f *fakeIssuer) debit(a common.Address, amt math.Int) error {
	if f.balanceOf(a).LT(amt) {
		return errors.New("insufficient balance")
	}
	f.balances[a] = f.balanceOf(a).Sub(amt)
	return nil
}

func (f *fakeIssuer) Mint(ctx context.Context, g *grant.Grant, to common.Address, amount math.Int) error {
	if f.failMint {
		return errors.New("issuer mint unavailable")
	}
	if g == nil {
		return errors.New("mint requires a grant")
	}
	if err := g.Approve(f.asset, "mint", to.Hex(), amount.String()); err != nil {
		return err
	}
	f.mints++
	f.credit(to, amount)
	return nil
}

func (f *fakeIssuer) Burn(ctx context.Context, g *grant.Grant, from common.Address, amount math.Int) error {
	if f.failBurn {
		return errors.New("issuer burn unavailable")
	}
	if g == nil {
		return errors.New("burn requires a grant")
	}
	if err := g.Approve(f.asset, "burn", from.Hex(), amount.String()); err != nil {
		return err
	}
	return f.debit(from, amount)
}

func (f *fakeIssuer) Transfer(ctx context.Context, g *grant.Grant, from, to common.Address, amount math.Int) error {
	if g == nil {
		return errors.New("transfer requires a grant")
	}
	if err := g.Approve(f.asset, "transfer", from.Hex(), to.Hex(), amount.String()); err != nil {
		return err
	}
	if err := f.debit(from, amount); err != nil {
		return err
	}
	f.credit(to, amount)
	return nil
}

func (f *fakeIssuer) Balance(ctx context.Context, of common.Address) (math.Int, error) {
	return f.balanceOf(of), nil
}

// move shifts balances on an account's own authority, used by the
// fake pool for withdrawals and by test callbacks for repayments.
func (f *fakeIssuer) move(from, to common.Address, amount math.Int) error {
	if err := f.debit(from, amount); err != nil {
		return err
	}
	f.credit(to, amount)
	return nil
}

type fakePool struct {
	issuer     *fakeIssuer
	addr       common.Address
	supply     map[common.Address]math.Int // treasury's supplied position per asset
	failSubmit bool
}

func newFakePool(issuer *fakeIssuer, addr common.Address) *fakePool {
	return &fakePool{issuer: issuer, addr: addr, supply: make(map[common.Address]math.Int)}
}

func (p *fakePool) positionOf(asset common.Address) math.Int {
	if v, ok := p.supply[asset]; ok {
		return v
	}
	return math.ZeroInt()
}

func (p *fakePool) Submit(ctx context.Context, transfer *grant.Grant, from, spender, to common.Address, requests []Request) (Positions, error) {
	if p.failSubmit {
		return Positions{}, errors.New("pool unavailable")
	}
	for _, req := range requests {
		switch req.Type {
		case RequestSupply:
			if err := p.issuer.Transfer(ctx, transfer, from, p.addr, req.Amount); err != nil {
				return Positions{}, err
			}
			p.supply[req.Asset] = p.positionOf(req.Asset).Add(req.Amount)
		case RequestWithdraw:
			if p.positionOf(req.Asset).LT(req.Amount) {
				return Positions{}, errors.New("withdraw exceeds position")
			}
			if err := p.issuer.move(p.addr, to, req.Amount); err != nil {
				return Positions{}, err
			}
			p.supply[req.Asset] = p.positionOf(req.Asset).Sub(req.Amount)
		default:
			return Positions{}, errors.New("unsupported request type")
		}
	}
	return p.report(), nil
}

func (p *fakePool) GetPositions(ctx context.Context, owner common.Address) (Positions, error) {
	return p.report(), nil
}

func (p *fakePool) report() Positions {
	out := Positions{Supply: make(map[common.Address]math.Int)}
	for k, v := range p.supply {
		out.Supply[k] = v
	}
	return out
}

type fakeBorrower struct {
	fn func(ctx context.Context, p FlashloanParams) error
}

func (b *fakeBorrower) FlashloanReceive(ctx context.Context, p FlashloanParams) error {
	if b.fn == nil {
		return nil
	}
	return b.fn(ctx, p)
}

// --- harness ---------------------------------------------------------------

type harness struct {
	svc      *Service
	store    *memStore
	loans    *memLoans
	issuer   *fakeIssuer
	pool     *fakePool
	borrower *fakeBorrower

	adminKey    *ecdsa.PrivateKey
	borrowerKey *ecdsa.PrivateKey

	self     common.Address
	asset    common.Address
	poolAddr common.Address
}

func newHarness(t *testing.T, loanFee math.Int) *harness {
	t.Helper()

	adminKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	borrowerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	h := &harness{
		store:       &memStore{},
		loans:       &memLoans{},
		adminKey:    adminKey,
		borrowerKey: borrowerKey,
		self:        common.HexToAddress("0x1000000000000000000000000000000000000001"),
		asset:       common.HexToAddress("0x00000000000000000000000000000000000000A1"),
		poolAddr:    common.HexToAddress("0x00000000000000000000000000000000000000F1"),
	}
	h.issuer = newFakeIssuer(h.asset)
	h.pool = newFakePool(h.issuer, h.poolAddr)
	h.borrower = &fakeBorrower{}

	svc, err := New(context.Background(), Deps{
		Store:    h.store,
		Loans:    h.loans,
		Pool:     h.pool,
		Issuer:   h.issuer,
		Borrower: h.borrower,
		Verifier: signer.NewVerifier(time.Minute),
	})
	require.NoError(t, err)
	h.svc = svc

	err = svc.Initialize(context.Background(), InitializeParams{
		Address:         h.self,
		Admin:           crypto.PubkeyToAddress(adminKey.PublicKey),
		Asset:           h.asset,
		CollateralAsset: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		Pool:            h.poolAddr,
		Exchange:        common.HexToAddress("0x00000000000000000000000000000000000000E1"),
		Borrower:        crypto.PubkeyToAddress(borrowerKey.PublicKey),
		LoanFee:         loanFee,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) adminProof(t *testing.T, op string, args ...string) signer.Proof {
	t.Helper()
	p, err := signer.SignOperation(h.adminKey, op, time.Now(), args...)
	require.NoError(t, err)
	return p
}

func (h *harness) borrowerProof(t *testing.T, op string, args ...string) signer.Proof {
	t.Helper()
	p, err := signer.SignOperation(h.borrowerKey, op, time.Now(), args...)
	require.NoError(t, err)
	return p
}

func (h *harness) tracked(t *testing.T) math.Int {
	t.Helper()
	v, err := h.svc.TrackedSupply()
	require.NoError(t, err)
	return v
}

// --- config store tests ----------------------------------------------------

func TestInitializeTwice(t *testing.T) {
	h := newHarness(t, math.ZeroInt())

	err := h.svc.Initialize(context.Background(), InitializeParams{
		Address: h.self,
		Admin:   crypto.PubkeyToAddress(h.adminKey.PublicKey),
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyInitialized))
}

func TestSetLoanFee(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	fee := math.NewInt(1_000)

	// a stranger's proof must not pass
	stranger, _ := crypto.GenerateKey()
	bad, err := signer.SignOperation(stranger, OpSetLoanFee, time.Now(), fee.String())
	require.NoError(t, err)
	err = h.svc.SetLoanFee(context.Background(), bad, fee)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))

	err = h.svc.SetLoanFee(context.Background(), h.adminProof(t, OpSetLoanFee, fee.String()), fee)
	require.NoError(t, err)

	cfg, err := h.svc.Config()
	require.NoError(t, err)
	assert.Equal(t, fee.String(), cfg.LoanFee.String())
}

func TestSetLoanFeeRejectsScaleBound(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	fee := math.NewInt(model.FeeScale)

	err := h.svc.SetLoanFee(context.Background(), h.adminProof(t, OpSetLoanFee, fee.String()), fee)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestSetAdminRequiresBothProofs(t *testing.T) {
	h := newHarness(t, math.ZeroInt())

	nextKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	next := crypto.PubkeyToAddress(nextKey.PublicKey)

	current := h.adminProof(t, OpSetAdmin, next.Hex())

	// incoming proof signed by the wrong key is rejected
	wrongIncoming := h.borrowerProof(t, OpSetAdmin, next.Hex())
	err = h.svc.SetAdmin(context.Background(), current, wrongIncoming, next)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))

	incoming, err := signer.SignOperation(nextKey, OpSetAdmin, time.Now(), next.Hex())
	require.NoError(t, err)
	current = h.adminProof(t, OpSetAdmin, next.Hex())
	require.NoError(t, h.svc.SetAdmin(context.Background(), current, incoming, next))

	// the old admin can no longer pass the gate
	fee := math.NewInt(5)
	err = h.svc.SetLoanFee(context.Background(), h.adminProof(t, OpSetLoanFee, fee.String()), fee)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))
}

func TestSetBorrower(t *testing.T) {
	h := newHarness(t, math.ZeroInt())

	next := common.HexToAddress("0x2000000000000000000000000000000000000002")
	err := h.svc.SetBorrower(context.Background(), h.adminProof(t, OpSetBorrower, next.Hex()), next)
	require.NoError(t, err)

	cfg, err := h.svc.Config()
	require.NoError(t, err)
	assert.Equal(t, next, cfg.Borrower)
}

func TestMutatingCallsRefreshRetention(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	before := h.store.touches

	fee := math.NewInt(7)
	require.NoError(t, h.svc.SetLoanFee(context.Background(), h.adminProof(t, OpSetLoanFee, fee.String()), fee))
	assert.Greater(t, h.store.touches, before)
}
