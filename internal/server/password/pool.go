package password

import (
	"context"
	"runtime"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrent hash computations. Callers waiting for
// a slot give up when their context is done.
type Pool struct {
	hasher *Hasher
	sem    *semaphore.Weighted
}

func NewPool(hasher *Hasher, workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Pool{hasher: hasher, sem: semaphore.NewWeighted(int64(workers))}
}

func (p *Pool) Hash(ctx context.Context, plaintext string) (models.PasswordHash, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return models.PasswordHash{}, err
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(plaintext)
}

func (p *Pool) Verify(ctx context.Context, plaintext string, stored models.PasswordHash) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(plaintext, stored)
}

func (p *Pool) NeedsRehash(stored models.PasswordHash) bool {
	return p.hasher.NeedsRehash(stored)
}
