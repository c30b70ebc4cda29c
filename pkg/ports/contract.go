package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// RunInstanceStoreContract runs a suite of tests verifying that an
// InstanceStore implementation adheres to the interface contract,
// including the optimistic-version commit semantics.
func RunInstanceStoreContract(t *testing.T, store InstanceStore) {
	ctx := context.Background()
	caseID := "contract-case-" + time.Now().Format("20060102150405")

	newInstance := func(id string) *domain.Instance {
		return domain.NewInstance(domain.NewCaseContext(id, "KXB204", "dj", 500))
	}

	t.Run("Create and Get", func(t *testing.T) {
		inst := newInstance(caseID)
		require.NoError(t, store.Create(ctx, inst))

		loaded, err := store.Get(ctx, caseID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateIdle, loaded.State)
		assert.Equal(t, int64(0), loaded.Version)
		assert.Equal(t, "dj", loaded.Context.TenantID)
	})

	t.Run("Create duplicate", func(t *testing.T) {
		err := store.Create(ctx, newInstance(caseID))
		assert.ErrorIs(t, err, domain.ErrCaseExists)
	})

	t.Run("Get non-existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+caseID)
		assert.ErrorIs(t, err, domain.ErrCaseNotFound)
	})

	t.Run("Commit bumps version", func(t *testing.T) {
		loaded, err := store.Get(ctx, caseID)
		require.NoError(t, err)

		next := loaded.Clone()
		next.State = domain.StatePendingValidation
		next.Version = loaded.Version + 1
		require.NoError(t, store.Commit(ctx, caseID, loaded.Version, next))

		reloaded, err := store.Get(ctx, caseID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePendingValidation, reloaded.State)
		assert.Equal(t, loaded.Version+1, reloaded.Version)
	})

	t.Run("Commit stale version", func(t *testing.T) {
		loaded, err := store.Get(ctx, caseID)
		require.NoError(t, err)

		next := loaded.Clone()
		next.Version = loaded.Version + 1
		err = store.Commit(ctx, caseID, loaded.Version-1, next)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		// The stored instance must be untouched after a conflict.
		reloaded, err := store.Get(ctx, caseID)
		require.NoError(t, err)
		assert.Equal(t, loaded.Version, reloaded.Version)
		assert.Equal(t, loaded.State, reloaded.State)
	})

	t.Run("Commit non-existent", func(t *testing.T) {
		inst := newInstance("missing-" + caseID)
		err := store.Commit(ctx, inst.CaseID, 0, inst)
		assert.ErrorIs(t, err, domain.ErrCaseNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, caseID)
	})
}
