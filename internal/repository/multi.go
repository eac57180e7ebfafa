package repository

import (
	"context"

	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/treasury"
)

// MultiLoanStore fans Append out to every backing store. A failure in
// one store is logged but does not prevent writes to the others; the
// first error is returned.
type MultiLoanStore struct {
	stores []treasury.LoanStore
}

func NewMultiLoanStore(stores ...treasury.LoanStore) *MultiLoanStore {
	return &MultiLoanStore{stores: stores}
}

func (m *MultiLoanStore) Append(ctx context.Context, rec *model.LoanRecord) error {
	var first error
	for _, s := range m.stores {
		if err := s.Append(ctx, rec); err != nil {
			logger.Warn("loan store append failed", "loan_id", rec.ID, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
