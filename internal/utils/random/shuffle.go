package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Source yields uniform integers in [0, n).
type Source interface {
	Intn(n int) (int, error)
}

// CryptoSource draws from crypto/rand. It cannot be seeded, so outcomes are
// never repeatable across runs.
type CryptoSource struct{}

func (CryptoSource) Intn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

// SeededSource is a deterministic source for tests and replays. It is safe
// for concurrent use.
type SeededSource struct {
	mu sync.Mutex
	r  *mrand.Rand
}

func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{r: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededSource) Intn(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n), nil
}

// Sample draws k distinct elements uniformly without replacement. When k
// exceeds len(items) every element is returned in random order. items is not
// modified.
func Sample[T any](src Source, items []T, k int) ([]T, error) {
	n := len(items)
	if k > n {
		k = n
	}
	if k <= 0 {
		return []T{}, nil
	}
	pool := make([]T, n)
	copy(pool, items)
	// Partial Fisher-Yates: after step i, pool[:i+1] is a uniform sample.
	for i := 0; i < k; i++ {
		off, err := src.Intn(n - i)
		if err != nil {
			return nil, err
		}
		j := i + off
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}
