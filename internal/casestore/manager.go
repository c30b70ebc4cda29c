// Package casestore owns serialized access to workflow instances: one
// in-process lock per case (refcounted, garbage collected when idle) plus an
// optional distributed lock for multi-replica deployments, over a pluggable
// persistence backend.
package casestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes all access to a given case. Different cases proceed in
// parallel; attempts against the same case run strictly one at a time.
type Manager struct {
	store ports.InstanceStore

	mu    sync.Mutex // guards the lock table
	locks map[string]*lockEntry

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given persistence backend.
func NewManager(store ports.InstanceStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must Lock entry.mu and call release(caseID) after unlocking.
func (m *Manager) acquire(caseID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[caseID]
	if !exists {
		entry = &lockEntry{}
		m.locks[caseID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (m *Manager) release(caseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[caseID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, caseID)
	}
}

// WithLock executes fn while holding the per-case exclusion. fn should do
// bounded local work plus the store round-trips; slow collaborator I/O
// belongs outside the lock.
func (m *Manager) WithLock(ctx context.Context, caseID string, fn func(context.Context) error) error {
	entry := m.acquire(caseID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(caseID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, caseID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"case_id", caseID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Get retrieves the current instance without holding the lock beyond the read.
func (m *Manager) Get(ctx context.Context, caseID string) (*domain.Instance, error) {
	var instance *domain.Instance
	err := m.WithLock(ctx, caseID, func(ctx context.Context) error {
		var err error
		instance, err = m.store.Get(ctx, caseID)
		return err
	})
	return instance, err
}

// Create stores a brand-new instance under the case lock.
func (m *Manager) Create(ctx context.Context, instance *domain.Instance) error {
	return m.WithLock(ctx, instance.CaseID, func(ctx context.Context) error {
		return m.store.Create(ctx, instance)
	})
}

// Update runs the get → mutate → commit cycle under the per-case lock.
// fn receives the current instance and returns its replacement; the commit
// is guarded by the instance's version, so a concurrent writer that slipped
// past the lock (e.g. a replica with an expired distributed lock) surfaces
// as domain.ErrVersionConflict and the cycle is retried.
func (m *Manager) Update(ctx context.Context, caseID string, fn func(*domain.Instance) (*domain.Instance, error)) (*domain.Instance, error) {
	var committed *domain.Instance
	err := m.WithLock(ctx, caseID, func(ctx context.Context) error {
		for {
			current, err := m.store.Get(ctx, caseID)
			if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}

			err = m.store.Commit(ctx, caseID, current.Version, next)
			if errors.Is(err, domain.ErrVersionConflict) {
				m.logger.Debug("commit raced, retrying", "case_id", caseID)
				continue
			}
			if err != nil {
				return err
			}
			committed = next
			return nil
		}
	})
	return committed, err
}

// List returns all known case IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying persistence backend.
func (m *Manager) Store() ports.InstanceStore {
	return m.store
}
