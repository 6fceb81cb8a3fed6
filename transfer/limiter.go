package transfer

import (
	"context"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/semaphore"
)

// Limiter is a counting limiter that also tracks how many holders it has and
// the most it has ever had at once.
type Limiter struct {
	sem  *semaphore.Weighted
	size int

	mu     deadlock.Mutex
	active int
	peak   int
}

func NewLimiter(size int) *Limiter {
	if size < 1 {
		size = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.mu.Lock()
	l.active++
	if l.active > l.peak {
		l.peak = l.active
	}
	l.mu.Unlock()
	return nil
}

func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.sem.Release(1)
}

func (l *Limiter) Size() int {
	return l.size
}

func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Limiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}
