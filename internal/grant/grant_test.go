package grant

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	asset    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	borrower = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestGrantApproveExactArgs(t *testing.T) {
	b := NewBuilder(treasury)
	g := b.Grant(asset, "mint", borrower.Hex(), "1000000")

	err := g.Approve(asset, "mint", borrower.Hex(), "1000000")
	assert.NoError(t, err)
	assert.Equal(t, treasury, g.Grantor())
}

func TestGrantSingleUse(t *testing.T) {
	b := NewBuilder(treasury)
	g := b.Grant(asset, "mint", borrower.Hex(), "1000000")

	assert.NoError(t, g.Approve(asset, "mint", borrower.Hex(), "1000000"))
	err := g.Approve(asset, "mint", borrower.Hex(), "1000000")
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestGrantArgumentMismatch(t *testing.T) {
	b := NewBuilder(treasury)
	g := b.Grant(asset, "mint", borrower.Hex(), "1000000")

	// a different amount must not ride on the same grant
	err := g.Approve(asset, "mint", borrower.Hex(), "2000000")
	assert.ErrorIs(t, err, ErrMismatch)

	// the failed attempt must not have consumed it
	assert.NoError(t, g.Approve(asset, "mint", borrower.Hex(), "1000000"))
}

func TestGrantTargetAndOperationMismatch(t *testing.T) {
	b := NewBuilder(treasury)
	g := b.Grant(asset, "burn", treasury.Hex(), "500")

	assert.ErrorIs(t, g.Approve(asset, "mint", treasury.Hex(), "500"), ErrMismatch)
	assert.ErrorIs(t, g.Approve(borrower, "burn", treasury.Hex(), "500"), ErrMismatch)
	assert.ErrorIs(t, g.Approve(asset, "burn", treasury.Hex()), ErrMismatch)
}

func TestSetRevokeInvalidatesUnused(t *testing.T) {
	b := NewBuilder(treasury)
	g1 := b.Grant(asset, "mint", borrower.Hex(), "100")
	g2 := b.Grant(asset, "burn", treasury.Hex(), "100")

	assert.NoError(t, g1.Approve(asset, "mint", borrower.Hex(), "100"))
	b.Set().Revoke()

	err := g2.Approve(asset, "burn", treasury.Hex(), "100")
	assert.ErrorIs(t, err, ErrRevoked)
}
