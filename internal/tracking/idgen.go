// Package tracking generates case report numbers and citizen-facing
// tracking tokens.
//
// Report numbers follow DJ-SDCRS-YYYY-NNNNNN with a per-tenant, per-year
// sequence; tracking tokens are short [A-Z]{3}[0-9]{3} codes suitable for
// SMS.
package tracking

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Sequencer issues monotonically increasing sequence numbers per
// (tenant, year).
type Sequencer interface {
	Next(ctx context.Context, tenantID string, year int) (int64, error)
}

// Generator produces report numbers and tracking tokens.
type Generator struct {
	seq Sequencer
	now func() time.Time
}

// NewGenerator creates a Generator over the given sequencer.
func NewGenerator(seq Sequencer) *Generator {
	return &Generator{seq: seq, now: time.Now}
}

// ReportNumber issues the next report number for a tenant,
// e.g. DJ-SDCRS-2026-000123.
func (g *Generator) ReportNumber(ctx context.Context, tenantID string) (string, error) {
	year := g.now().Year()
	n, err := g.seq.Next(ctx, tenantID, year)
	if err != nil {
		return "", fmt.Errorf("failed to issue sequence: %w", err)
	}
	return fmt.Sprintf("%s-SDCRS-%d-%06d", strings.ToUpper(tenantID), year, n), nil
}

// TrackingToken issues a random short token, e.g. KXB204.
func (g *Generator) TrackingToken() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	var sb strings.Builder
	for i := 0; i < 3; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(letters[idx.Int64()])
	}
	digits, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", sb.String(), digits.Int64()), nil
}

// MemorySequencer keeps sequences in process memory. Counters restart on
// reboot, so it is only suitable for tests and single-run tooling.
type MemorySequencer struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemorySequencer creates an empty in-memory sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{seqs: make(map[string]int64)}
}

// Next returns the next sequence number for (tenant, year).
func (m *MemorySequencer) Next(ctx context.Context, tenantID string, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", tenantID, year)
	m.seqs[key]++
	return m.seqs[key], nil
}

// RedisSequencer issues sequences with INCR, durable across restarts and
// shared across replicas.
type RedisSequencer struct {
	client *backend.Client
	prefix string
}

// NewRedisSequencer creates a sequencer on the given client.
func NewRedisSequencer(client *backend.Client, prefix string) *RedisSequencer {
	return &RedisSequencer{client: client, prefix: prefix}
}

// Next returns the next sequence number for (tenant, year).
func (r *RedisSequencer) Next(ctx context.Context, tenantID string, year int) (int64, error) {
	key := fmt.Sprintf("%sseq:%s:%d", r.prefix, tenantID, year)
	return r.client.Incr(ctx, key).Result()
}
