package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/treasury"
)

type FlashLoanHandler struct {
	svc *treasury.Service
}

func NewFlashLoanHandler(svc *treasury.Service) *FlashLoanHandler {
	return &FlashLoanHandler{svc: svc}
}

func (h *FlashLoanHandler) Execute(c *gin.Context) {
	var req model.FlashLoanRequest
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

	middleware.AddAuditContext(c, "amount", amount.String())

	rec, err := h.svc.FlashLoan(c.Request.Context(), proof, amount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "loan_id", rec.ID)
	middleware.AddAuditContext(c, "fee", rec.Fee.String())

	c.JSON(http.StatusOK, gin.H{
		"id":             rec.ID,
		"borrower":       rec.Borrower.Hex(),
		"asset":          rec.Asset.Hex(),
		"amount":         rec.Amount.String(),
		"fee":            rec.Fee.String(),
		"balance_before": rec.BalanceBefore.String(),
		"balance_after":  rec.BalanceAfter.String(),
		"created_at":     rec.CreatedAt,
	})
}
