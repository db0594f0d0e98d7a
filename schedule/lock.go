package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/shift-engine/calendar"
)

// Locker provides mutual exclusion per key. Implementations return an
// error wrapping ErrConcurrencyConflict when the key can't be acquired.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// dateKey scopes a single (user, date) row set.
func dateKey(userID string, d calendar.Date) string {
	return "shift:" + userID + ":" + d.String()
}

// periodKey scopes balance reads and writes for one monthly period.
func periodKey(userID string, d calendar.Date) string {
	return "leave:" + userID + ":" + d.MonthKey()
}

// lockAll acquires keys in lexical order, which puts "leave:" period keys
// ahead of "shift:" date keys. The returned func releases in reverse.
func lockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var held []func()
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	seen := make(map[string]bool, len(sorted))
	for _, key := range sorted {
		if seen[key] {
			continue
		}
		seen[key] = true
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}

// =============================================================================
// KEYED MUTEX - in-process Locker
// =============================================================================

// KeyedMutex is an in-process Locker. Entries are dropped once no
// goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				k.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, fmt.Errorf("%w: waiting for %s: %v", ErrConcurrencyConflict, key, ctx.Err())
	}
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
