package signer

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestVerifyRoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	proof, err := SignOperation(key, "flash_loan", time.Now(), "0xAsset", "1000000")
	assert.NoError(t, err)

	v := NewVerifier(time.Minute)
	assert.NoError(t, v.Verify(proof, addr, "flash_loan", "0xAsset", "1000000"))
}

func TestVerifyRejectsWrongRole(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	otherAddr := crypto.PubkeyToAddress(other.PublicKey)

	proof, err := SignOperation(key, "increase_supply", time.Now(), "100")
	assert.NoError(t, err)

	v := NewVerifier(time.Minute)
	err = v.Verify(proof, otherAddr, "increase_supply", "100")
	assert.Error(t, err)
}

func TestVerifyRejectsDifferentArgs(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	proof, err := SignOperation(key, "flash_loan", time.Now(), "0xAsset", "1000000")
	assert.NoError(t, err)

	// a proof over one amount must not authorize another
	v := NewVerifier(time.Minute)
	err = v.Verify(proof, addr, "flash_loan", "0xAsset", "2000000")
	assert.Error(t, err)
}

func TestVerifyRejectsStaleProof(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	issued := time.Now().Add(-10 * time.Minute)
	proof, err := SignOperation(key, "set_loan_fee", issued, "1000")
	assert.NoError(t, err)

	v := NewVerifier(time.Minute)
	err = v.Verify(proof, addr, "set_loan_fee", "1000")
	assert.Error(t, err)
}

func TestDigestArgBoundaries(t *testing.T) {
	at := time.Unix(1700000000, 0)
	// "ab","c" and "a","bc" must not collide
	d1 := Digest("op", at, "ab", "c")
	d2 := Digest("op", at, "a", "bc")
	assert.NotEqual(t, d1, d2)
}
