package directory

import (
	"context"
	"strings"

	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

const resourceName = "directory"

// Directory is a name to phone number mapping mirrored to a Log. Reads
// share the lock; writes hold it exclusively for both the map update and
// the log I/O, so the log never records interleaved writes.
type Directory struct {
	lock    *rwlock.Lock
	log     *Log
	entries map[string]string

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Directory.
type Option func(*options)

type options struct {
	bus      *event.Bus
	logger   *logging.Logger
	lockOpts []rwlock.Option
	noReplay bool
}

// WithBus publishes directory events on bus.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLockOptions passes options to the directory's rwlock, e.g. an observer.
func WithLockOptions(opts ...rwlock.Option) Option {
	return func(o *options) { o.lockOpts = append(o.lockOpts, opts...) }
}

// WithoutReplay starts from an empty mapping even if the log has records.
func WithoutReplay() Option {
	return func(o *options) { o.noReplay = true }
}

// Open creates a Directory backed by the log at path. Existing records are
// replayed in order, so the last record for a name wins.
func Open(path string, opts ...Option) (*Directory, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	if path == "" {
		return nil, errors.NewValidationError("log path is required").WithField("directory.log_path")
	}

	d := &Directory{
		lock:    rwlock.New(resourceName, o.lockOpts...),
		log:     NewLog(path),
		entries: make(map[string]string),
		bus:     o.bus,
		logger:  o.logger.WithResource(resourceName),
	}

	if o.noReplay {
		return d, nil
	}

	records, malformed, err := d.log.Replay()
	if err != nil {
		return nil, err
	}
	for _, line := range malformed {
		d.logger.Warn("skipping malformed log record", "path", path, "line", line)
	}
	for _, rec := range records {
		d.entries[rec.Name] = rec.Phone
	}
	d.logger.Debug("directory opened", "path", path, "entries", len(d.entries))
	return d, nil
}

// Path returns the log file path.
func (d *Directory) Path() string {
	return d.log.Path()
}

// Stats returns a snapshot of the directory lock.
func (d *Directory) Stats() rwlock.Stats {
	return d.lock.Stats()
}

// LookupPhoneNumber returns the phone number stored for name. A missing
// name is not an error.
func (d *Directory) LookupPhoneNumber(ctx context.Context, name string) (string, bool, error) {
	var (
		phone string
		found bool
	)
	err := d.lock.WithRead(ctx, func() error {
		phone, found = d.entries[name]
		return nil
	})
	return phone, found, err
}

// LookupNameByPhoneNumber returns a name whose phone number equals phone.
// If several names share the number, which one is returned is unspecified.
func (d *Directory) LookupNameByPhoneNumber(ctx context.Context, phone string) (string, bool, error) {
	var (
		name  string
		found bool
	)
	err := d.lock.WithRead(ctx, func() error {
		for n, p := range d.entries {
			if p == phone {
				name, found = n, true
				return nil
			}
		}
		return nil
	})
	return name, found, err
}

// Upsert maps name to phone and appends a record to the log. If the append
// fails the mapping keeps the new value and the error is returned.
func (d *Directory) Upsert(ctx context.Context, name, phone string) error {
	if err := validateEntry(name, phone); err != nil {
		return err
	}

	err := d.lock.WithWrite(ctx, func() error {
		d.entries[name] = phone
		return d.log.Append(Record{Name: name, Phone: phone})
	})
	if err != nil {
		if !errors.Is(err, errors.ErrWaitAbandoned) {
			d.logger.Warn("upsert not persisted", "name", name, "error", err)
		}
		return err
	}

	d.logger.Debug("entry upserted", "name", name, "phone", phone)
	d.bus.Publish(event.NewEntryUpsertedEvent(name, phone))
	return nil
}

// Delete removes name and rewrites the log without any of its records.
// Deleting a missing name still rewrites the log, so stale records left by
// an earlier failure are dropped.
func (d *Directory) Delete(ctx context.Context, name string) error {
	var (
		existed bool
		dropped int
	)
	err := d.lock.WithWrite(ctx, func() error {
		_, existed = d.entries[name]
		delete(d.entries, name)

		var err error
		dropped, err = d.log.Rewrite(func(line string) bool {
			return matchesName(line, name)
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, errors.ErrWaitAbandoned) {
			d.logger.Warn("delete not persisted", "name", name, "error", err)
		}
		return err
	}

	d.logger.Debug("entry deleted", "name", name, "existed", existed, "dropped", dropped)
	d.bus.Publish(event.NewEntryDeletedEvent(name, existed, dropped))
	return nil
}

// Snapshot returns a copy of the current mapping.
func (d *Directory) Snapshot(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := d.lock.WithRead(ctx, func() error {
		out = make(map[string]string, len(d.entries))
		for k, v := range d.entries {
			out[k] = v
		}
		return nil
	})
	return out, err
}

// Len returns the number of entries.
func (d *Directory) Len(ctx context.Context) (int, error) {
	n := 0
	err := d.lock.WithRead(ctx, func() error {
		n = len(d.entries)
		return nil
	})
	return n, err
}

func validateEntry(name, phone string) error {
	switch {
	case name == "":
		return errors.NewValidationError("name is required").WithField("name")
	case strings.Contains(name, separator):
		return errors.NewValidationError("name must not contain the record separator").
			WithField("name").WithValue(name)
	case strings.ContainsAny(name, "\r\n"):
		return errors.NewValidationError("name must be a single line").WithField("name").WithValue(name)
	case strings.ContainsAny(phone, "\r\n"):
		return errors.NewValidationError("phone must be a single line").WithField("phone").WithValue(phone)
	}
	return nil
}
