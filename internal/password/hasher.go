// Package password provides salted password hashing with bounded concurrency.
package password

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Algorithm is a synchronous one-way password hash.
type Algorithm interface {
	// Hash creates a salted hash from a password.
	Hash(password string) (string, error)

	// Verify checks if a password matches a hash. A mismatch is (false, nil);
	// a malformed hash is an error.
	Verify(password, hash string) (bool, error)
}

// Hasher hashes and compares passwords off the request path.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, password, hash string) (bool, error)
}

// Pool runs an Algorithm with at most n concurrent operations. Hashing is CPU
// bound; waiting for a slot honours ctx cancellation.
type Pool struct {
	alg Algorithm
	sem *semaphore.Weighted
}

var _ Hasher = (*Pool)(nil)

// NewPool wraps alg. n <= 0 means runtime.NumCPU().
func NewPool(alg Algorithm, n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Pool{alg: alg, sem: semaphore.NewWeighted(int64(n))}
}

// Hash hashes password once a slot is free.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.alg.Hash(password)
}

// Compare checks password against hash once a slot is free.
func (p *Pool) Compare(ctx context.Context, password, hash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer p.sem.Release(1)

	return p.alg.Verify(password, hash)
}

// New builds a pooled hasher for the named algorithm ("bcrypt" or "argon2id").
func New(name string, bcryptCost, concurrency int) (*Pool, error) {
	switch name {
	case "", "bcrypt":
		return NewPool(NewBcryptHasher(&BcryptConfig{Cost: bcryptCost}), concurrency), nil
	case "argon2id":
		return NewPool(NewArgon2Hasher(nil), concurrency), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}
