package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pegvault/pegvault/internal/audit"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
)

type AuditHandler struct {
	svc *audit.Service
}

func NewAuditHandler(svc *audit.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List returns recent audit entries, optionally filtered by caller
// address and time range (unix seconds).
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithError(c, apperrors.NewInvalidRequest("from must be unix seconds"))
			return
		}
		t := time.Unix(ts, 0)
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithError(c, apperrors.NewInvalidRequest("to must be unix seconds"))
			return
		}
		t := time.Unix(ts, 0)
		to = &t
	}

	records, err := h.svc.List(c.Request.Context(), c.Query("caller"), limit, from, to)
	if err != nil {
		abortWithError(c, apperrors.New(apperrors.ErrInternal, "list audit entries", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": records, "count": len(records)})
}
