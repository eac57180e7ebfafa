package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/events"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
)

// LoanLister reads recent settled loans; both the Redis list and the
// Postgres repo satisfy it.
type LoanLister interface {
	List(ctx context.Context, limit int) ([]*model.LoanRecord, error)
}

type LoansHandler struct {
	loans LoanLister
	hub   *events.Hub
}

func NewLoansHandler(loans LoanLister, hub *events.Hub) *LoansHandler {
	return &LoansHandler{loans: loans, hub: hub}
}

func (h *LoansHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := h.loans.List(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, apperrors.New(apperrors.ErrInternal, "list loans", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"loans": records, "count": len(records)})
}

// Stream upgrades to a websocket that receives every settled loan.
func (h *LoansHandler) Stream(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}
