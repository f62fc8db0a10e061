package grid

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

const resourceName = "grid"

// Cell values.
const (
	Unhealthy = 0
	Healthy   = 1
)

// Cell addresses one plant in the grid.
type Cell struct {
	Row int
	Col int
}

// Grid is a fixed rows x cols garden of plants, each either Healthy or
// Unhealthy. All access goes through the grid's rwlock.
type Grid struct {
	lock  *rwlock.Lock
	rows  int
	cols  int
	cells [][]int
	rng   *rand.Rand // guarded by the write lock

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Grid.
type Option func(*options)

type options struct {
	rng      *rand.Rand
	bus      *event.Bus
	logger   *logging.Logger
	lockOpts []rwlock.Option
}

// WithRand sets the random source used to pick cells and values.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithBus publishes grid events on bus.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLockOptions passes options to the grid's rwlock.
func WithLockOptions(opts ...rwlock.Option) Option {
	return func(o *options) { o.lockOpts = append(o.lockOpts, opts...) }
}

// New creates a rows x cols grid with every plant healthy.
func New(rows, cols int, opts ...Option) (*Grid, error) {
	if rows < 1 {
		return nil, errors.NewValidationError("rows must be at least 1").WithField("rows").WithValue(rows)
	}
	if cols < 1 {
		return nil, errors.NewValidationError("cols must be at least 1").WithField("cols").WithValue(cols)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}

	cells := make([][]int, rows)
	for r := range cells {
		cells[r] = make([]int, cols)
		for c := range cells[r] {
			cells[r][c] = Healthy
		}
	}

	return &Grid{
		lock:   rwlock.New(resourceName, o.lockOpts...),
		rows:   rows,
		cols:   cols,
		cells:  cells,
		rng:    o.rng,
		bus:    o.bus,
		logger: o.logger.WithResource(resourceName),
	}, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Stats returns a snapshot of the grid lock.
func (g *Grid) Stats() rwlock.Stats {
	return g.lock.Stats()
}

// WaterRandomUnhealthyCell picks a random cell and waters it if it is
// unhealthy. It reports the chosen cell and whether it was watered. The
// write lock is held even when the cell is already healthy.
func (g *Grid) WaterRandomUnhealthyCell(ctx context.Context) (Cell, bool, error) {
	var (
		cell    Cell
		watered bool
	)
	err := g.lock.WithWrite(ctx, func() error {
		cell = g.randomCellLocked()
		if g.cells[cell.Row][cell.Col] == Unhealthy {
			g.cells[cell.Row][cell.Col] = Healthy
			watered = true
		}
		return nil
	})
	if err != nil {
		return Cell{}, false, err
	}

	if watered {
		g.logger.Debug("plant watered", "row", cell.Row, "col", cell.Col)
		g.bus.Publish(event.NewCellWateredEvent(cell.Row, cell.Col))
	}
	return cell, watered, nil
}

// MutateRandomCell sets a random cell to a random value.
func (g *Grid) MutateRandomCell(ctx context.Context) (Cell, int, error) {
	var (
		cell  Cell
		value int
	)
	err := g.lock.WithWrite(ctx, func() error {
		cell = g.randomCellLocked()
		value = g.rng.IntN(2)
		g.cells[cell.Row][cell.Col] = value
		return nil
	})
	if err != nil {
		return Cell{}, 0, err
	}

	g.logger.Debug("plant changed", "row", cell.Row, "col", cell.Col, "value", value)
	g.bus.Publish(event.NewCellMutatedEvent(cell.Row, cell.Col, value))
	return cell, value, nil
}

// RenderTo writes the grid to w under the read lock: one line per row,
// cells separated by a single space.
func (g *Grid) RenderTo(ctx context.Context, w io.Writer) error {
	return g.render(ctx, w, strconv.Itoa)
}

// render formats every cell with format and writes the whole grid to w in
// a single call while holding the read lock.
func (g *Grid) render(ctx context.Context, w io.Writer, format func(int) string) error {
	return g.lock.WithRead(ctx, func() error {
		var buf bytes.Buffer
		for _, row := range g.cells {
			for c, v := range row {
				if c > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(format(v))
			}
			buf.WriteByte('\n')
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Healthy returns the number of healthy plants.
func (g *Grid) Healthy(ctx context.Context) (int, error) {
	n := 0
	err := g.lock.WithRead(ctx, func() error {
		for _, row := range g.cells {
			for _, v := range row {
				n += v
			}
		}
		return nil
	})
	return n, err
}

// Snapshot returns a copy of the cells.
func (g *Grid) Snapshot(ctx context.Context) ([][]int, error) {
	var out [][]int
	err := g.lock.WithRead(ctx, func() error {
		out = make([][]int, g.rows)
		for r, row := range g.cells {
			out[r] = append([]int(nil), row...)
		}
		return nil
	})
	return out, err
}

// Dump renders the grid to sink and publishes a GridRenderedEvent on success.
func (g *Grid) Dump(ctx context.Context, sink Sink) error {
	if err := sink.Render(ctx, g); err != nil {
		if !errors.Is(err, errors.ErrWaitAbandoned) {
			g.logger.Warn("grid dump failed", "sink", sink.Name(), "error", err)
		}
		return err
	}
	g.bus.Publish(event.NewGridRenderedEvent(sink.Name(), g.rows))
	return nil
}

func (g *Grid) randomCellLocked() Cell {
	return Cell{Row: g.rng.IntN(g.rows), Col: g.rng.IntN(g.cols)}
}
