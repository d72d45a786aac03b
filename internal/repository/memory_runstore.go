package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// MemoryRunStore keeps runs in process memory. It is the default store when
// no database is configured.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]models.Run
}

// NewMemoryRunStore creates an empty MemoryRunStore.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]models.Run)}
}

// Save stores a copy of run, replacing any run with the same ID.
func (s *MemoryRunStore) Save(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// Get retrieves a run by its ID.
func (s *MemoryRunStore) Get(_ context.Context, id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// List returns runs matching filter, newest first.
func (s *MemoryRunStore) List(_ context.Context, filter RunFilter) ([]*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.WorkflowKey != "" && run.WorkflowKey != filter.WorkflowKey {
			continue
		}
		if filter.State != "" && run.State != filter.State {
			continue
		}
		r := run
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
