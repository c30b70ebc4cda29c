package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// Store implements ports.InstanceStore on Redis.
//
// Each case is two keys: the instance JSON and a plain-integer version key.
// Commit runs a Lua script that compares the version key against the
// expected version and swaps both keys atomically, which gives the
// optimistic-concurrency contract even across replicas.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures the store.
type Option func(*Store)

// WithPrefix sets the key prefix for cases.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "sdcrs:case:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(caseID string) string {
	return s.prefix + caseID
}

func (s *Store) versionKey(caseID string) string {
	return s.prefix + caseID + ":ver"
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// createScript refuses to overwrite an existing case.
var createScript = backend.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
return 1
`)

// commitScript swaps instance and version only when the stored version
// matches the expected one. Returns 1 on success, 0 on conflict, -1 when
// the case does not exist.
var commitScript = backend.NewScript(`
local ver = redis.call("GET", KEYS[2])
if not ver then
	return -1
end
if ver ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2])
redis.call("SET", KEYS[2], ARGV[3])
return 1
`)

// Get retrieves the instance for a case.
func (s *Store) Get(ctx context.Context, caseID string) (*domain.Instance, error) {
	val, err := s.client.Get(ctx, s.key(caseID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var instance domain.Instance
	if err := json.Unmarshal([]byte(val), &instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &instance, nil
}

// Create stores a brand-new instance.
func (s *Store) Create(ctx context.Context, instance *domain.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	created, err := createScript.Run(ctx, s.client,
		[]string{s.key(instance.CaseID), s.versionKey(instance.CaseID)},
		data, instance.Version,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create in redis: %w", err)
	}
	if created == 0 {
		return domain.ErrCaseExists
	}

	// Index membership is not part of the atomicity contract; cases are
	// never deleted so a re-add is harmless.
	err = s.client.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: instance.CaseID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index case: %w", err)
	}
	return nil
}

// Commit replaces the stored instance under the optimistic version check.
func (s *Store) Commit(ctx context.Context, caseID string, expectedVersion int64, instance *domain.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	res, err := commitScript.Run(ctx, s.client,
		[]string{s.key(caseID), s.versionKey(caseID)},
		strconv.FormatInt(expectedVersion, 10), data, instance.Version,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to commit to redis: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrCaseNotFound
	case 0:
		return domain.ErrVersionConflict
	}
	return nil
}

// List returns all indexed case IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
