package ports

import (
	"context"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// InstanceStore persists one workflow instance per case ID.
//
// Commit is the optimistic-concurrency point: it must atomically compare the
// stored version against expectedVersion and replace the instance only on a
// match, returning domain.ErrVersionConflict otherwise. Combined with the
// per-case lock in the case store manager this guarantees no lost updates.
type InstanceStore interface {
	// Get returns the stored instance.
	// Returns domain.ErrCaseNotFound if the case does not exist.
	Get(ctx context.Context, caseID string) (*domain.Instance, error)

	// Create stores a brand-new instance.
	// Returns domain.ErrCaseExists if the case ID is already taken.
	Create(ctx context.Context, instance *domain.Instance) error

	// Commit replaces the stored instance if the stored version equals
	// expectedVersion. Returns domain.ErrVersionConflict on a mismatch and
	// domain.ErrCaseNotFound if the case does not exist.
	Commit(ctx context.Context, caseID string, expectedVersion int64, instance *domain.Instance) error

	// List returns the IDs of all stored cases. Instances are never
	// deleted; terminal cases are retained for audit.
	List(ctx context.Context) ([]string, error)
}
