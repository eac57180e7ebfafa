package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/treasury"
)

// TreasuryHandler serves initialization, the admin setters, and the
// read-only configuration views.
type TreasuryHandler struct {
	svc *treasury.Service
}

func NewTreasuryHandler(svc *treasury.Service) *TreasuryHandler {
	return &TreasuryHandler{svc: svc}
}

func (h *TreasuryHandler) Initialize(c *gin.Context) {
	var req model.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}

	params, err := initializeParams(req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.svc.Initialize(c.Request.Context(), params); err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "admin", req.Admin)
	middleware.AddAuditContext(c, "asset", req.Asset)
	c.JSON(http.StatusCreated, gin.H{"status": "initialized"})
}

func (h *TreasuryHandler) SetAdmin(c *gin.Context) {
	var req model.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}

	newAdmin, err := model.ParseAddress(req.NewAdmin)
	if err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}
	current, err := parseProof(c, req.Proof)
	if err != nil {
		abortWithError(c, err)
		return
	}
	incoming, err := parseProof(c, req.NewAdminProof)
	if err != nil {
		abortWithError(c, err)
		return
	}
	// The audit caller is the current admin, not the incoming one.
	c.Set(middleware.ContextCallerKey, current.Signer.Hex())

	if err := h.svc.SetAdmin(c.Request.Context(), current, incoming, newAdmin); err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "new_admin", newAdmin.Hex())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TreasuryHandler) SetBorrower(c *gin.Context) {
	var req model.SetBorrowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}

	borrower, err := model.ParseAddress(req.Borrower)
	if err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}
	proof, err := parseProof(c, req.Proof)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.svc.SetBorrower(c.Request.Context(), proof, borrower); err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "borrower", borrower.Hex())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TreasuryHandler) SetLoanFee(c *gin.Context) {
	var req model.SetLoanFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}

	fee, err := model.ParseAmount(req.LoanFee)
	if err != nil {
		abortWithError(c, apperrors.NewInvalidRequest(err.Error()))
		return
	}
	proof, err := parseProof(c, req.Proof)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.svc.SetLoanFee(c.Request.Context(), proof, fee); err != nil {
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "loan_fee", fee.String())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TreasuryHandler) GetConfig(c *gin.Context) {
	state, err := h.svc.Config()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":          state.Address.Hex(),
		"admin":            state.Admin.Hex(),
		"asset":            state.Asset.Hex(),
		"collateral_asset": state.CollateralAsset.Hex(),
		"pool":             state.Pool.Hex(),
		"exchange":         state.Exchange.Hex(),
		"borrower":         state.Borrower.Hex(),
		"loan_fee":         state.LoanFee.String(),
		"updated_at":       state.UpdatedAt,
	})
}

func (h *TreasuryHandler) GetSupply(c *gin.Context) {
	supply, err := h.svc.TrackedSupply()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracked_supply": supply.String()})
}

func initializeParams(req model.InitializeRequest) (treasury.InitializeParams, error) {
	var p treasury.InitializeParams
	var err error

	if p.Address, err = model.ParseAddress(req.Address); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.Admin, err = model.ParseAddress(req.Admin); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.Asset, err = model.ParseAddress(req.Asset); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.CollateralAsset, err = model.ParseAddress(req.CollateralAsset); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.Pool, err = model.ParseAddress(req.Pool); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.Exchange, err = model.ParseAddress(req.Exchange); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if p.Borrower, err = model.ParseAddress(req.Borrower); err != nil {
		return p, apperrors.NewInvalidRequest(err.Error())
	}
	if req.LoanFee != "" {
		if p.LoanFee, err = model.ParseAmount(req.LoanFee); err != nil {
			return p, apperrors.NewInvalidRequest(err.Error())
		}
	}
	return p, nil
}
