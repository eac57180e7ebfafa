package treasury

import (
	"context"

	"github.com/pegvault/pegvault/internal/pkg/logger"
)

// journal collects compensations for external effects already applied
// within one operation. On abort the compensations run in reverse
// order, restoring the pre-call state; local ledger writes are staged
// separately and only committed once the journal is empty of risk.
type journal struct {
	compensations []func(ctx context.Context) error
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) record(undo func(ctx context.Context) error) {
	j.compensations = append(j.compensations, undo)
}

// rollback applies all recorded compensations, newest first. A failed
// compensation is logged and surfaced: it means an external system
// holds state this treasury could not undo.
func (j *journal) rollback(ctx context.Context) error {
	var firstErr error
	for i := len(j.compensations) - 1; i >= 0; i-- {
		if err := j.compensations[i](ctx); err != nil {
			logger.Error("compensation failed during rollback", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	j.compensations = nil
	return firstErr
}
