package handler

import (
	"context"
	"net/http"

	"cosmossdk.io/math"
	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/signer"
	"github.com/pegvault/pegvault/internal/treasury"
)

type SupplyHandler struct {
	svc *treasury.Service
}

func NewSupplyHandler(svc *treasury.Service) *SupplyHandler {
	return &SupplyHandler{svc: svc}
}

func (h *SupplyHandler) Increase(c *gin.Context) {
	h.adjust(c, h.svc.IncreaseSupply, "increase")
}

func (h *SupplyHandler) Decrease(c *gin.Context) {
	h.adjust(c, h.svc.DecreaseSupply, "decrease")
}

func (h *SupplyHandler) adjust(c *gin.Context, op func(context.Context, signer.Proof, math.Int) error, name string) {
	var req model.SupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}

	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}
	proof, err := parseProof(c, req.Proof)
	if err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "op", name)
	middleware.AddAuditContext(c, "amount", amount.String())

	if err := op(c.Request.Context(), proof, amount); err != nil {
		abortWithError(c, err)
		return
	}

	supply, err := h.svc.TrackedSupply()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked_supply": supply.String()})
}
