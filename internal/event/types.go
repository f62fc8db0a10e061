package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "grid.watered".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeEntryUpserted = "directory.upserted"
	TypeEntryDeleted  = "directory.deleted"
	TypeLogChanged    = "directory.log_changed"
	TypeCellWatered   = "grid.watered"
	TypeCellMutated   = "grid.mutated"
	TypeGridRendered  = "grid.rendered"
	TypeRouteChanged  = "routes.changed"
	TypeWorkerFailed  = "worker.failed"
)

// -----------------------------------------------------------------------------
// Directory Events
// -----------------------------------------------------------------------------

// EntryUpsertedEvent is emitted after a directory entry was written and
// its record appended to the log.
type EntryUpsertedEvent struct {
	baseEvent
	Name  string
	Phone string
}

// NewEntryUpsertedEvent creates an EntryUpsertedEvent.
func NewEntryUpsertedEvent(name, phone string) EntryUpsertedEvent {
	return EntryUpsertedEvent{
		baseEvent: newBaseEvent(TypeEntryUpserted),
		Name:      name,
		Phone:     phone,
	}
}

// EntryDeletedEvent is emitted after a delete rewrote the log.
type EntryDeletedEvent struct {
	baseEvent
	Name    string
	Existed bool // Whether the name was present in memory
	Dropped int  // Log records removed by the rewrite
}

// NewEntryDeletedEvent creates an EntryDeletedEvent.
func NewEntryDeletedEvent(name string, existed bool, dropped int) EntryDeletedEvent {
	return EntryDeletedEvent{
		baseEvent: newBaseEvent(TypeEntryDeleted),
		Name:      name,
		Existed:   existed,
		Dropped:   dropped,
	}
}

// LogChangedEvent is emitted by the directory watcher when the log file
// changes on disk, whether by this process or another one.
type LogChangedEvent struct {
	baseEvent
	Path string
	Op   string // fsnotify operation, e.g. "WRITE", "RENAME"
}

// NewLogChangedEvent creates a LogChangedEvent.
func NewLogChangedEvent(path, op string) LogChangedEvent {
	return LogChangedEvent{
		baseEvent: newBaseEvent(TypeLogChanged),
		Path:      path,
		Op:        op,
	}
}

// -----------------------------------------------------------------------------
// Grid Events
// -----------------------------------------------------------------------------

// CellWateredEvent is emitted when the gardener turned an unhealthy cell healthy.
type CellWateredEvent struct {
	baseEvent
	Row int
	Col int
}

// NewCellWateredEvent creates a CellWateredEvent.
func NewCellWateredEvent(row, col int) CellWateredEvent {
	return CellWateredEvent{
		baseEvent: newBaseEvent(TypeCellWatered),
		Row:       row,
		Col:       col,
	}
}

// CellMutatedEvent is emitted whenever nature set a cell, changed or not.
type CellMutatedEvent struct {
	baseEvent
	Row   int
	Col   int
	Value int
}

// NewCellMutatedEvent creates a CellMutatedEvent.
func NewCellMutatedEvent(row, col, value int) CellMutatedEvent {
	return CellMutatedEvent{
		baseEvent: newBaseEvent(TypeCellMutated),
		Row:       row,
		Col:       col,
		Value:     value,
	}
}

// GridRenderedEvent is emitted after a grid dump reached its sink.
type GridRenderedEvent struct {
	baseEvent
	Sink string
	Rows int
}

// NewGridRenderedEvent creates a GridRenderedEvent.
func NewGridRenderedEvent(sink string, rows int) GridRenderedEvent {
	return GridRenderedEvent{
		baseEvent: newBaseEvent(TypeGridRendered),
		Sink:      sink,
		Rows:      rows,
	}
}

// -----------------------------------------------------------------------------
// Route Events
// -----------------------------------------------------------------------------

// RouteChangedEvent is emitted after any write to the route graph.
type RouteChangedEvent struct {
	baseEvent
	Op    string // "price", "route", "remove", "city"
	From  string
	To    string
	Price int
}

// NewRouteChangedEvent creates a RouteChangedEvent.
func NewRouteChangedEvent(op, from, to string, price int) RouteChangedEvent {
	return RouteChangedEvent{
		baseEvent: newBaseEvent(TypeRouteChanged),
		Op:        op,
		From:      from,
		To:        to,
		Price:     price,
	}
}

// -----------------------------------------------------------------------------
// Worker Events
// -----------------------------------------------------------------------------

// WorkerFailedEvent is emitted when a worker run returned an error.
type WorkerFailedEvent struct {
	baseEvent
	Task string
	Kind string
	Err  error
}

// NewWorkerFailedEvent creates a WorkerFailedEvent.
func NewWorkerFailedEvent(task, kind string, err error) WorkerFailedEvent {
	return WorkerFailedEvent{
		baseEvent: newBaseEvent(TypeWorkerFailed),
		Task:      task,
		Kind:      kind,
		Err:       err,
	}
}
