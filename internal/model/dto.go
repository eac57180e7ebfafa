package model

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ProofRequest is the wire form of an identity proof: the caller's
// address, a 65-byte secp256k1 signature over the operation digest,
// and the time the proof was issued.
type ProofRequest struct {
	Signer    string `json:"signer" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	IssuedAt  int64  `json:"issued_at" binding:"required"`
}

type InitializeRequest struct {
	Address         string `json:"address" binding:"required"`
	Admin           string `json:"admin" binding:"required"`
	Asset           string `json:"asset" binding:"required"`
	CollateralAsset string `json:"collateral_asset" binding:"required"`
	Pool            string `json:"pool" binding:"required"`
	Exchange        string `json:"exchange" binding:"required"`
	Borrower        string `json:"borrower" binding:"required"`
	LoanFee         string `json:"loan_fee,omitempty"`
}

type SetAdminRequest struct {
	NewAdmin      string       `json:"new_admin" binding:"required"`
	Proof         ProofRequest `json:"proof" binding:"required"`
	NewAdminProof ProofRequest `json:"new_admin_proof" binding:"required"`
}

type SetBorrowerRequest struct {
	Borrower string       `json:"borrower" binding:"required"`
	Proof    ProofRequest `json:"proof" binding:"required"`
}

type SetLoanFeeRequest struct {
	LoanFee string       `json:"loan_fee" binding:"required"`
	Proof   ProofRequest `json:"proof" binding:"required"`
}

type SupplyRequest struct {
	Amount string       `json:"amount" binding:"required"`
	Proof  ProofRequest `json:"proof" binding:"required"`
}

type FlashLoanRequest struct {
	Amount string       `json:"amount" binding:"required"`
	Proof  ProofRequest `json:"proof" binding:"required"`
}

// ParseAmount parses a base-unit amount string into a non-negative
// integer. Decimal notation is accepted as long as it resolves to a
// whole number of base units ("1e7" is fine, "0.5" is not).
func ParseAmount(s string) (math.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.Int{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return math.Int{}, fmt.Errorf("amount %q is not a whole number of base units", s)
	}
	if d.IsNegative() {
		return math.Int{}, fmt.Errorf("amount %q is negative", s)
	}
	return math.NewIntFromBigInt(d.BigInt()), nil
}

// ParseAddress validates and parses a 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
