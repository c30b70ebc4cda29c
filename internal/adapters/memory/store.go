package memory

import (
	"context"
	"sync"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// Store implements ports.InstanceStore in memory.
// Safe for concurrent use; suitable for tests and single-node deployments.
type Store struct {
	data map[string]*domain.Instance
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Instance),
	}
}

// Get retrieves a copy of the stored instance.
func (s *Store) Get(ctx context.Context, caseID string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.data[caseID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	// Copy on read so callers can't mutate stored state through the pointer.
	return instance.Clone(), nil
}

// Create stores a new instance.
func (s *Store) Create(ctx context.Context, instance *domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[instance.CaseID]; exists {
		return domain.ErrCaseExists
	}
	s.data[instance.CaseID] = instance.Clone()
	return nil
}

// Commit replaces the stored instance under the optimistic version check.
func (s *Store) Commit(ctx context.Context, caseID string, expectedVersion int64, instance *domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.data[caseID]
	if !ok {
		return domain.ErrCaseNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.data[caseID] = instance.Clone()
	return nil
}

// List returns all stored case IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
