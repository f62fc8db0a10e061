// Package rwlock provides the readers-writer lock that guards each of
// keeper's shared resources.
//
// # Policy
//
// The lock is a single monitor: one mutex protects the reader count, the
// writer flag and the number of pending writers, and a broadcast channel
// plays the role of the condition variable. A writer's "no readers left"
// check and the grant of exclusive access happen under that one mutex, so no
// reader can be admitted between them.
//
// The lock is write-preferring. A writer registers as pending before it
// starts waiting, and [Lock.RLock] will not admit new readers while any
// writer is pending or active. Readers already inside finish normally; once
// they drain the pending writer is granted the lock. A steady stream of
// readers therefore cannot starve a writer.
//
// # Cancellation
//
// Both acquire methods take a context. If the context is done while the
// caller is blocked, the caller withdraws without touching the reader count
// or writer flag; a pending writer also removes its registration and wakes
// any readers that were queued behind it. The error wraps
// [errors.ErrWaitAbandoned] and the context's error.
//
// # Usage
//
//	lk := rwlock.New("directory")
//
//	if err := lk.RLock(ctx); err != nil {
//	    return err
//	}
//	defer lk.RUnlock()
//
// or, releasing on every exit path including panics:
//
//	err := lk.WithWrite(ctx, func() error {
//	    entries[name] = phone
//	    return log.Append(name, phone)
//	})
//
// Releasing a lock that is not held in that mode is a fatal invariant
// violation and panics, as with sync.RWMutex.
package rwlock
