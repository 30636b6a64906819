// Package seen remembers which contributors were already reported for a
// repository.
package seen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the memory store.
const DefaultSize = 4096

// Store is a set of (repository key, login) pairs.
type Store interface {
	Contains(ctx context.Context, key, login string) (bool, error)
	Add(ctx context.Context, key, login string) error
	Close() error
}

// Key derives the store key for a repository.
func Key(owner, repo string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(owner + "/" + repo)))
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps pairs in a bounded LRU for the lifetime of the process.
type MemoryStore struct {
	cache *lru.Cache[string, struct{}]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most size pairs.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating seen cache")
	}
	return &MemoryStore{cache: cache}, nil
}

func pairKey(key, login string) string {
	return key + "\x00" + strings.ToLower(login)
}

// Contains reports whether login was added under key.
func (m *MemoryStore) Contains(_ context.Context, key, login string) (bool, error) {
	return m.cache.Contains(pairKey(key, login)), nil
}

// Add records login under key.
func (m *MemoryStore) Add(_ context.Context, key, login string) error {
	m.cache.Add(pairKey(key, login), struct{}{})
	return nil
}

// Close is a no-op.
func (*MemoryStore) Close() error { return nil }
