// Package signer implements the treasury's identity proofs: a caller
// proves control of a role address (admin or borrower) by signing the
// keccak256 digest of the operation name and its exact arguments with
// the secp256k1 key behind that address.
package signer

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Proof is a caller's claim to a role, bound to one operation and its
// exact arguments at one point in time.
type Proof struct {
	Signer    common.Address
	Signature []byte // 65 bytes [R || S || V]
	IssuedAt  time.Time
}

// Digest computes the signing digest for an operation. Arguments are
// length-prefixed so no two argument lists collide.
func Digest(operation string, issuedAt time.Time, args ...string) common.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, []byte(operation)...)
	buf = append(buf, 0x00)
	buf = binary.BigEndian.AppendUint64(buf, uint64(issuedAt.Unix()))
	for _, a := range args {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(a)))
		buf = append(buf, []byte(a)...)
	}
	return crypto.Keccak256Hash(buf)
}

// SignOperation produces a proof for operation(args) with the given key.
func SignOperation(key *ecdsa.PrivateKey, operation string, issuedAt time.Time, args ...string) (Proof, error) {
	digest := Digest(operation, issuedAt, args...)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Proof{}, fmt.Errorf("sign operation digest: %w", err)
	}
	return Proof{
		Signer:    crypto.PubkeyToAddress(key.PublicKey),
		Signature: sig,
		IssuedAt:  issuedAt,
	}, nil
}

// Verifier checks proofs against expected role addresses.
type Verifier struct {
	proofTTL time.Duration
	now      func() time.Time
}

func NewVerifier(proofTTL time.Duration) *Verifier {
	if proofTTL <= 0 {
		proofTTL = time.Minute
	}
	return &Verifier{proofTTL: proofTTL, now: time.Now}
}

// Verify recovers the signer of the proof and checks it against the
// expected role address. Stale proofs are rejected so a captured
// signature cannot be replayed outside its window.
func (v *Verifier) Verify(proof Proof, expected common.Address, operation string, args ...string) error {
	now := v.now()
	age := now.Sub(proof.IssuedAt)
	if age > v.proofTTL || age < -v.proofTTL {
		return fmt.Errorf("proof for %s issued at %s is outside the validity window", operation, proof.IssuedAt.UTC().Format(time.RFC3339))
	}
	if len(proof.Signature) != crypto.SignatureLength {
		return fmt.Errorf("proof signature must be %d bytes, got %d", crypto.SignatureLength, len(proof.Signature))
	}

	digest := Digest(operation, proof.IssuedAt, args...)
	pub, err := crypto.SigToPub(digest.Bytes(), proof.Signature)
	if err != nil {
		return fmt.Errorf("recover proof signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != proof.Signer {
		return fmt.Errorf("proof signature does not match claimed signer %s", proof.Signer.Hex())
	}
	if recovered != expected {
		return fmt.Errorf("caller %s does not hold the required role", recovered.Hex())
	}
	return nil
}
