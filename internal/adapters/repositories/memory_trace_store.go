package repositories

import (
	"context"
	"fmt"
	"route-validation-service/internal/domain"
	"sort"
	"sync"
)

// In-process implementation of the TraceStore port. Traces are lost on
// restart; used in tests and when no database is configured.
type MemoryTraceStore struct {
	mu     sync.RWMutex
	traces map[string]*domain.Trace
}

func NewMemoryTraceStore() *MemoryTraceStore {
	return &MemoryTraceStore{traces: make(map[string]*domain.Trace)}
}

func (s *MemoryTraceStore) FindTrace(ctx context.Context, runID string) (*domain.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.traces[runID]
	if !ok {
		return nil, fmt.Errorf("find trace %q: %w", runID, domain.ErrTraceNotFound)
	}
	return t.Snapshot(), nil
}

func (s *MemoryTraceStore) AppendReport(ctx context.Context, runID string, r domain.PositionReport) (*domain.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.traces[runID]
	switch {
	case !ok:
		t = domain.NewTrace(runID, r)
		s.traces[runID] = t
	case t.Closed:
		return nil, fmt.Errorf("append report to %q: %w", runID, domain.ErrTraceClosed)
	default:
		t.Append(r)
	}
	return t.Snapshot(), nil
}

// CloseTrace is idempotent.
func (s *MemoryTraceStore) CloseTrace(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.traces[runID]
	if !ok {
		return fmt.Errorf("close trace %q: %w", runID, domain.ErrTraceNotFound)
	}
	t.Closed = true
	return nil
}

func (s *MemoryTraceStore) ListOpenTraces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.traces))
	for id, t := range s.traces {
		if !t.Closed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
