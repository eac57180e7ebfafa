// Package audit writes an append-only trail of API operations. Entries
// flow through a buffered channel so the request path never blocks on
// the database or on disk.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/logger"
)

type Repo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, caller string, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

type Service struct {
	logChan chan *model.AuditLog
	logFile *os.File
	buffer  *ringBuffer
	repo    Repo
}

// NewService opens a daily jsonl file under logDir and starts the
// consumer goroutine. repo may be nil; entries then live only in the
// file and the in-memory ring.
func NewService(logDir string, repo Repo) (*Service, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		logChan: make(chan *model.AuditLog, 1000),
		logFile: f,
		buffer:  newRingBuffer(1000),
		repo:    repo,
	}
	go svc.processLogs()
	return svc, nil
}

func (s *Service) Log(entry *model.AuditLog) {
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		// Buffer full. Drop the entry rather than stall a request.
		logger.Warn("audit log buffer full, dropping entry", "id", entry.ID)
	}
}

func (s *Service) List(ctx context.Context, caller string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, caller, limit, from, to)
		if err == nil {
			return records, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(caller, limit), nil
}

func (s *Service) processLogs() {
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.Error("failed to write audit log to db", "error", err)
			}
		}
		if err := encoder.Encode(entry); err != nil {
			logger.Error("failed to write audit log file", "error", err)
		}
	}
}

func (s *Service) Close() {
	close(s.logChan)
	s.logFile.Close()
}

type ringBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newRingBuffer(maxSize int) *ringBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ringBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *ringBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *ringBuffer) List(caller string, limit int) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if caller != "" && entry.Caller != caller {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
