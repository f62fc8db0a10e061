package rwlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/keeper/internal/errors"
)

// Mode is the access mode of an acquisition.
type Mode int

const (
	// Read is shared access.
	Read Mode = iota
	// Write is exclusive access.
	Write
)

// String returns "read" or "write".
func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Observer is notified of lock activity. Calls are made after the monitor
// mutex is released and must not call back into the lock.
type Observer interface {
	Acquired(lock string, mode Mode, waited time.Duration)
	Released(lock string, mode Mode)
	Abandoned(lock string, mode Mode, waited time.Duration)
}

// Option configures a Lock.
type Option func(*Lock)

// WithObserver attaches an Observer to the lock.
func WithObserver(o Observer) Option {
	return func(l *Lock) {
		l.observer = o
	}
}

// Stats is a consistent snapshot of a lock's state and counters.
type Stats struct {
	Readers           int
	Writer            bool
	WritersWaiting    int
	ReadAcquisitions  uint64
	WriteAcquisitions uint64
	Abandoned         uint64
}

// Lock is a write-preferring readers-writer lock. Create it with New; the
// zero value is not usable.
type Lock struct {
	name     string
	observer Observer

	mu sync.Mutex
	// changed is closed and replaced whenever the state below changes.
	changed        chan struct{}
	readers        int
	writer         bool
	writersWaiting int

	readAcquisitions  uint64
	writeAcquisitions uint64
	abandoned         uint64
}

// New creates an unlocked Lock. The name identifies the guarded resource
// in errors and metrics.
func New(name string, opts ...Option) *Lock {
	l := &Lock{
		name:    name,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the name given to New.
func (l *Lock) Name() string {
	return l.name
}

// RLock acquires shared access. It blocks while a writer holds the lock or
// is waiting for it.
func (l *Lock) RLock(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	for l.writer || l.writersWaiting > 0 {
		if err := l.waitLocked(ctx); err != nil {
			l.abandoned++
			l.mu.Unlock()
			l.notifyAbandoned(Read, time.Since(start))
			return errors.NewLockError(l.name, Read.String(), err)
		}
	}
	l.readers++
	l.readAcquisitions++
	l.checkLocked()
	l.mu.Unlock()

	l.notifyAcquired(Read, time.Since(start))
	return nil
}

// RUnlock releases shared access. The last reader out wakes pending writers.
func (l *Lock) RUnlock() {
	l.mu.Lock()
	if l.readers == 0 {
		l.mu.Unlock()
		panic(fmt.Sprintf("rwlock %s: fatal invariant violation: RUnlock without readers", l.name))
	}
	l.readers--
	if l.readers == 0 {
		l.broadcastLocked()
	}
	l.mu.Unlock()

	l.notifyReleased(Read)
}

// Lock acquires exclusive access. It blocks until no reader is inside and
// no other writer holds the lock. While it waits, new readers queue behind it.
func (l *Lock) Lock(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	l.writersWaiting++
	for l.writer || l.readers > 0 {
		if err := l.waitLocked(ctx); err != nil {
			l.writersWaiting--
			l.abandoned++
			// Readers queued behind this writer may now be admissible.
			l.broadcastLocked()
			l.mu.Unlock()
			l.notifyAbandoned(Write, time.Since(start))
			return errors.NewLockError(l.name, Write.String(), err)
		}
	}
	l.writersWaiting--
	l.writer = true
	l.writeAcquisitions++
	l.checkLocked()
	l.mu.Unlock()

	l.notifyAcquired(Write, time.Since(start))
	return nil
}

// Unlock releases exclusive access and wakes every waiter.
func (l *Lock) Unlock() {
	l.mu.Lock()
	if !l.writer {
		l.mu.Unlock()
		panic(fmt.Sprintf("rwlock %s: fatal invariant violation: Unlock without writer", l.name))
	}
	l.writer = false
	l.broadcastLocked()
	l.mu.Unlock()

	l.notifyReleased(Write)
}

// WithRead runs fn holding shared access. The lock is released however fn
// returns.
func (l *Lock) WithRead(ctx context.Context, fn func() error) error {
	if err := l.RLock(ctx); err != nil {
		return err
	}
	defer l.RUnlock()
	return fn()
}

// WithWrite runs fn holding exclusive access. The lock is released however
// fn returns.
func (l *Lock) WithWrite(ctx context.Context, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}

// Stats returns a snapshot of the lock state.
func (l *Lock) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Readers:           l.readers,
		Writer:            l.writer,
		WritersWaiting:    l.writersWaiting,
		ReadAcquisitions:  l.readAcquisitions,
		WriteAcquisitions: l.writeAcquisitions,
		Abandoned:         l.abandoned,
	}
}

// waitLocked releases the mutex until the state changes or ctx is done,
// then reacquires it. Callers must re-check their condition afterwards.
// On cancellation it returns ctx.Err() with the mutex held.
func (l *Lock) waitLocked(ctx context.Context) error {
	ch := l.changed
	l.mu.Unlock()

	var err error
	select {
	case <-ch:
	case <-ctx.Done():
		err = ctx.Err()
	}

	l.mu.Lock()
	return err
}

func (l *Lock) broadcastLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Lock) checkLocked() {
	if l.writer && l.readers > 0 {
		panic(fmt.Sprintf("rwlock %s: fatal invariant violation: writer held with %d readers", l.name, l.readers))
	}
}

func (l *Lock) notifyAcquired(mode Mode, waited time.Duration) {
	if l.observer != nil {
		l.observer.Acquired(l.name, mode, waited)
	}
}

func (l *Lock) notifyReleased(mode Mode) {
	if l.observer != nil {
		l.observer.Released(l.name, mode)
	}
}

func (l *Lock) notifyAbandoned(mode Mode, waited time.Duration) {
	if l.observer != nil {
		l.observer.Abandoned(l.name, mode, waited)
	}
}
