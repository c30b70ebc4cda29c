package casestore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/internal/adapters/memory"
	"github.com/opencivic/sdcrs/internal/casestore"
	"github.com/opencivic/sdcrs/pkg/domain"
)

func newManagedCase(t *testing.T, m *casestore.Manager, caseID string) {
	t.Helper()
	instance := domain.NewInstance(domain.NewCaseContext(caseID, "ABC123", "dj", 500))
	require.NoError(t, m.Create(context.Background(), instance))
}

func TestManager_UpdateCommits(t *testing.T) {
	m := casestore.NewManager(memory.NewStore())
	newManagedCase(t, m, "C1")

	committed, err := m.Update(context.Background(), "C1", func(current *domain.Instance) (*domain.Instance, error) {
		next := current.Clone()
		next.State = domain.StatePendingValidation
		next.Version = current.Version + 1
		return next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), committed.Version)

	loaded, err := m.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingValidation, loaded.State)
}

func TestManager_UpdatePropagatesCallbackError(t *testing.T) {
	m := casestore.NewManager(memory.NewStore())
	newManagedCase(t, m, "C1")

	rejection := domain.NewInvalidEvent(domain.StateIdle, domain.EventVerify)
	_, err := m.Update(context.Background(), "C1", func(current *domain.Instance) (*domain.Instance, error) {
		return nil, rejection
	})

	te, ok := domain.AsTransitionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidEvent, te.Kind)

	// The case is untouched.
	loaded, err := m.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Version)
}

func TestManager_UnknownCase(t *testing.T) {
	m := casestore.NewManager(memory.NewStore())

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)

	_, err = m.Update(context.Background(), "missing", func(current *domain.Instance) (*domain.Instance, error) {
		return current, nil
	})
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

// Concurrent updates against one case must serialize: every increment lands.
func TestManager_SerializesPerCase(t *testing.T) {
	m := casestore.NewManager(memory.NewStore())
	newManagedCase(t, m, "C1")

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := m.Update(context.Background(), "C1", func(current *domain.Instance) (*domain.Instance, error) {
				next := current.Clone()
				next.Context.EscalationLevel++
				next.Version = current.Version + 1
				return next, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := m.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), loaded.Version)
	assert.Equal(t, writers, loaded.Context.EscalationLevel)
}

func TestManager_IndependentCasesDoNotBlock(t *testing.T) {
	m := casestore.NewManager(memory.NewStore())
	newManagedCase(t, m, "C1")
	newManagedCase(t, m, "C2")

	var wg sync.WaitGroup
	for _, id := range []string{"C1", "C2"} {
		wg.Add(1)
		go func(caseID string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := m.Update(context.Background(), caseID, func(current *domain.Instance) (*domain.Instance, error) {
					next := current.Clone()
					next.Version = current.Version + 1
					return next, nil
				})
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	ids, err := m.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C1", "C2"}, ids)
}
