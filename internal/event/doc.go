// Package event provides a synchronous pub-sub bus that lets keeper's
// guarded resources report what they did without knowing who is watching.
//
// # Main Types
//
//   - [Event]: interface with EventType() and Timestamp()
//   - [Bus]: thread-safe synchronous dispatcher
//   - [Handler]: func(Event)
//
// # Event Categories
//
// Directory: [EntryUpsertedEvent], [EntryDeletedEvent], [LogChangedEvent].
//
// Grid: [CellWateredEvent], [CellMutatedEvent], [GridRenderedEvent].
//
// Routes: [RouteChangedEvent].
//
// Workers: [WorkerFailedEvent].
//
// # Thread Safety
//
// Publish may be called from any goroutine. Handlers run synchronously on
// the publishing goroutine, after the resource lock has been released.
// A nil *Bus silently drops events.
package event
