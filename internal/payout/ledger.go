package payout

import (
	"context"
	"sync"
	"time"
)

// DefaultMonthlyCap is the per-tenant monthly payout ceiling in rupees.
const DefaultMonthlyCap int64 = 50000

// MemoryLedger tracks payout spend per tenant per calendar month. A
// WithinMonthlyCap "yes" reserves the amount immediately, so two concurrent
// captures cannot both squeeze under the same remaining headroom.
type MemoryLedger struct {
	cap int64
	now func() time.Time

	mu    sync.Mutex
	spent map[string]int64 // tenantID|YYYY-MM -> total reserved
}

// NewMemoryLedger creates a ledger with the given monthly cap; zero or
// negative means DefaultMonthlyCap.
func NewMemoryLedger(monthlyCap int64) *MemoryLedger {
	if monthlyCap <= 0 {
		monthlyCap = DefaultMonthlyCap
	}
	return &MemoryLedger{
		cap:   monthlyCap,
		now:   time.Now,
		spent: make(map[string]int64),
	}
}

// WithinMonthlyCap reports whether amount still fits under the tenant's cap
// this month, reserving it when it does.
func (l *MemoryLedger) WithinMonthlyCap(_ context.Context, tenantID string, amount int64) (bool, error) {
	key := tenantID + "|" + l.now().UTC().Format("2006-01")

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.spent[key]+amount > l.cap {
		return false, nil
	}
	l.spent[key] += amount
	return true, nil
}

// Spent returns the amount reserved for the tenant in the current month.
func (l *MemoryLedger) Spent(tenantID string) int64 {
	key := tenantID + "|" + l.now().UTC().Format("2006-01")

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent[key]
}
