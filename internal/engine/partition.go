package engine

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// partitionLocks serializes clustering passes per half-degree geographic
// cell. Acquisition is bounded: a caller that cannot take the lock after a
// few backoff rounds gets domain.ErrPartitionBusy instead of queueing
// behind a long pass.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const (
	lockAttempts       = 4
	lockInitialBackoff = 50 * time.Millisecond
)

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *partitionLocks) lockFor(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// acquire takes the partition lock or fails with ErrPartitionBusy. The
// returned release function must be called exactly once on success.
func (p *partitionLocks) acquire(ctx context.Context, key string) (func(), error) {
	l := p.lockFor(key)

	backoff := lockInitialBackoff
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if l.TryLock() {
			return l.Unlock, nil
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, domain.ErrPartitionBusy
}
