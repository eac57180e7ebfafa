package repository

import (
	"context"
	"sync"

	"github.com/pegvault/pegvault/internal/model"
)

// MemoryStateStore backs deployments without Postgres; state dies with
// the process.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *model.Treasury
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Load(ctx context.Context) (*model.Treasury, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	return s.state.Clone(), nil
}

func (s *MemoryStateStore) Save(ctx context.Context, t *model.Treasury) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = t.Clone()
	return nil
}

func (s *MemoryStateStore) Touch(ctx context.Context) error {
	return nil
}

// MemoryLoanStore keeps the most recent loans in a bounded slice.
type MemoryLoanStore struct {
	mu      sync.Mutex
	max     int
	records []*model.LoanRecord
}

func NewMemoryLoanStore(max int) *MemoryLoanStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryLoanStore{max: max}
}

func (s *MemoryLoanStore) Append(ctx context.Context, rec *model.LoanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]*model.LoanRecord{rec}, s.records...)
	if len(s.records) > s.max {
		s.records = s.records[:s.max]
	}
	return nil
}

func (s *MemoryLoanStore) List(ctx context.Context, limit int) ([]*model.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*model.LoanRecord, limit)
	copy(out, s.records[:limit])
	return out, nil
}
