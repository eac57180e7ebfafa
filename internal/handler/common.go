package handler

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/signer"
)

// parseProof converts the wire form of an identity proof into the
// domain form and records the claimed signer for the audit trail.
// Signature validity is checked later by the verifier; only the shape
// is validated here.
func parseProof(c *gin.Context, req model.ProofRequest) (signer.Proof, error) {
	addr, err := model.ParseAddress(req.Signer)
	if err != nil {
		return signer.Proof{}, apperrors.NewInvalidRequest(err.Error())
	}

	sig := common.FromHex(req.Signature)
	if len(sig) != 65 {
		return signer.Proof{}, apperrors.NewInvalidRequest("signature must be 65 bytes of hex")
	}

	c.Set(middleware.ContextCallerKey, addr.Hex())

	return signer.Proof{
		Signer:    addr,
		Signature: sig,
		IssuedAt:  time.Unix(req.IssuedAt, 0),
	}, nil
}

// abortWithError routes the error through the error-handling
// middleware, which maps it to a status code and logs it.
func abortWithError(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}
