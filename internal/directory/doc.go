// Package directory implements keeper's phone directory: an in-memory
// name to phone mapping guarded by an [rwlock.Lock] and mirrored to a
// line-oriented log file.
//
// # Log Format
//
// Each write appends one record, "<name> - <phone>\n". Delete rewrites the
// whole file without the deleted name's records, writing to a temporary
// file and renaming it into place. [Open] replays the log so a restarted
// process sees the last written value for every name.
//
// # Concurrency
//
// Lookups, [Directory.Snapshot] and [Directory.Len] take the lock in read
// mode and may run together. [Directory.Upsert] and [Directory.Delete] hold
// it exclusively across both the map update and the file I/O. Every file
// operation also takes an advisory flock on "<log>.lock" so several keeper
// processes can share one log.
//
// # Failures
//
// An I/O failure returns an [errors.StoreError] and leaves the lock
// released. The map keeps the mutation; the next successful delete
// rewrite brings the log back in line.
//
// # Watching
//
// [Watcher] uses fsnotify to publish [event.LogChangedEvent] when the log
// changes on disk, including changes made by other processes.
package directory
