package treasury

import (
	"context"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegvault/pegvault/internal/pkg/apperrors"
)

func TestIncreaseSupply(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	amount := math.NewInt(100_000_0000)

	err := h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, amount.String()), amount)
	require.NoError(t, err)

	assert.Equal(t, amount.String(), h.tracked(t).String())
	assert.Equal(t, amount.String(), h.pool.positionOf(h.asset).String())
	// minted funds were moved on to the pool, nothing lingers with the treasury
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
}

func TestIncreaseSupplyRequiresAdmin(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	amount := math.NewInt(500)

	err := h.svc.IncreaseSupply(context.Background(),
		h.borrowerProof(t, OpIncreaseSupply, amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))
	assert.True(t, h.tracked(t).IsZero())
	assert.Equal(t, 0, h.issuer.mints)
}

func TestIncreaseSupplyCompensatesMintOnPoolFailure(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	amount := math.NewInt(1_000)

	h.pool.failSubmit = true
	err := h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstream))

	// the minted amount was burned back; no residual effect anywhere
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
	assert.True(t, h.tracked(t).IsZero())
	assert.True(t, h.pool.positionOf(h.asset).IsZero())
}

func TestDecreaseSupply(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	up := math.NewInt(1_000_000)
	down := math.NewInt(400_000)

	require.NoError(t, h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, up.String()), up))
	require.NoError(t, h.svc.DecreaseSupply(context.Background(),
		h.adminProof(t, OpDecreaseSupply, down.String()), down))

	want := up.Sub(down)
	assert.Equal(t, want.String(), h.tracked(t).String())
	assert.Equal(t, want.String(), h.pool.positionOf(h.asset).String())
	// withdrawn funds were burned, not retained
	assert.True(t, h.issuer.balanceOf(h.self).IsZero())
}

func TestDecreaseSupplyExceedsTracked(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	up := math.NewInt(100)

	require.NoError(t, h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, up.String()), up))

	over := math.NewInt(101)
	err := h.svc.DecreaseSupply(context.Background(),
		h.adminProof(t, OpDecreaseSupply, over.String()), over)
	assert.True(t, apperrors.Is(err, apperrors.ErrSupply))

	// nothing moved
	assert.Equal(t, up.String(), h.tracked(t).String())
	assert.Equal(t, up.String(), h.pool.positionOf(h.asset).String())
}

func TestDecreaseSupplyExceedsPoolPosition(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	up := math.NewInt(1_000)

	require.NoError(t, h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, up.String()), up))

	// the pool's view drifts below the ledger's: position resolution
	// must catch it even though tracked supply alone would allow it
	h.pool.supply[h.asset] = math.NewInt(300)

	amount := math.NewInt(500)
	err := h.svc.DecreaseSupply(context.Background(),
		h.adminProof(t, OpDecreaseSupply, amount.String()), amount)
	assert.True(t, apperrors.Is(err, apperrors.ErrSupply))
	assert.Equal(t, up.String(), h.tracked(t).String())
}

func TestSupplyRoundTrip(t *testing.T) {
	h := newHarness(t, math.ZeroInt())
	base := math.NewInt(2_000_000)
	require.NoError(t, h.svc.IncreaseSupply(context.Background(),
		h.adminProof(t, OpIncreaseSupply, base.String()), base))

	startTracked := h.tracked(t)
	startPos := h.pool.positionOf(h.asset)

	for _, amount := range []math.Int{math.NewInt(0), math.NewInt(1), math.NewInt(750_000)} {
		require.NoError(t, h.svc.DecreaseSupply(context.Background(),
			h.adminProof(t, OpDecreaseSupply, amount.String()), amount))
		require.NoError(t, h.svc.IncreaseSupply(context.Background(),
			h.adminProof(t, OpIncreaseSupply, amount.String()), amount))

		assert.Equal(t, startTracked.String(), h.tracked(t).String())
		assert.Equal(t, startPos.String(), h.pool.positionOf(h.asset).String())

		// and the opposite order
		require.NoError(t, h.svc.IncreaseSupply(context.Background(),
			h.adminProof(t, OpIncreaseSupply, amount.String()), amount))
		require.NoError(t, h.svc.DecreaseSupply(context.Background(),
			h.adminProof(t, OpDecreaseSupply, amount.String()), amount))

		assert.Equal(t, startTracked.String(), h.tracked(t).String())
		assert.Equal(t, startPos.String(), h.pool.positionOf(h.asset).String())
	}
}

func TestSupplyProofBindsAmount(t *testing.T) {
	h := newHarness(t, math.ZeroInt())

	// a proof signed for one amount must not authorize another
	proof := h.adminProof(t, OpIncreaseSupply, "100")
	err := h.svc.IncreaseSupply(context.Background(), proof, math.NewInt(200))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthorized))
}
