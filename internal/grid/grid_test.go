package grid

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
)

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

func newGrid(t *testing.T, rows, cols int, opts ...Option) *Grid {
	t.Helper()
	g, err := New(rows, cols, append([]Option{seeded()}, opts...)...)
	require.NoError(t, err)
	return g
}

// requireDump checks that out is rows lines of cols space-separated 0/1 tokens.
func requireDump(t *testing.T, out string, rows, cols int) {
	t.Helper()
	require.True(t, strings.HasSuffix(out, "\n"), "dump must end with a newline")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, rows)
	for _, line := range lines {
		tokens := strings.Split(line, " ")
		require.Len(t, tokens, cols, "line %q", line)
		for _, tok := range tokens {
			require.Contains(t, []string{"0", "1"}, tok, "line %q", line)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		wantErr    bool
	}{
		{"5x5", 5, 5, false},
		{"1x1", 1, 1, false},
		{"zero rows", 0, 5, true},
		{"zero cols", 5, 0, true},
		{"negative", -1, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.rows, tt.cols)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidInput)
				require.Nil(t, g)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.rows, g.Rows())
			require.Equal(t, tt.cols, g.Cols())
		})
	}
}

func TestNew_AllHealthy(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 5, 5)

	healthy, err := g.Healthy(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, healthy)

	var buf bytes.Buffer
	require.NoError(t, g.RenderTo(ctx, &buf))
	require.Equal(t, strings.Repeat("1 1 1 1 1\n", 5), buf.String())
}

func TestMutateRandomCell_StaysInBounds(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 5, 3)

	seen := map[int]bool{}
	for range 500 {
		cell, value, err := g.MutateRandomCell(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, cell.Row, 0)
		require.Less(t, cell.Row, 5)
		require.GreaterOrEqual(t, cell.Col, 0)
		require.Less(t, cell.Col, 3)
		require.Contains(t, []int{Unhealthy, Healthy}, value)
		seen[value] = true

		snap, err := g.Snapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, value, snap[cell.Row][cell.Col])
	}
	require.True(t, seen[Unhealthy] && seen[Healthy], "both values should appear")

	var buf bytes.Buffer
	require.NoError(t, g.RenderTo(ctx, &buf))
	requireDump(t, buf.String(), 5, 3)
}

func TestWaterRandomUnhealthyCell(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 1, 1)

	// Healthy plant: nothing to water, but the write lock is still taken.
	before := g.Stats().WriteAcquisitions
	cell, watered, err := g.WaterRandomUnhealthyCell(ctx)
	require.NoError(t, err)
	require.False(t, watered)
	require.Equal(t, Cell{}, cell)
	require.Equal(t, before+1, g.Stats().WriteAcquisitions)

	for {
		_, value, err := g.MutateRandomCell(ctx)
		require.NoError(t, err)
		if value == Unhealthy {
			break
		}
	}

	_, watered, err = g.WaterRandomUnhealthyCell(ctx)
	require.NoError(t, err)
	require.True(t, watered)

	healthy, err := g.Healthy(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, healthy)
}

func TestGrid_Snapshot_IsCopy(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 2, 2)

	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)
	snap[0][0] = Unhealthy

	healthy, err := g.Healthy(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, healthy)
}

func TestGrid_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus()

	var types []string
	bus.SubscribeAll(func(e event.Event) {
		types = append(types, e.EventType())
	})

	g := newGrid(t, 1, 1, WithBus(bus))
	for {
		_, value, err := g.MutateRandomCell(ctx)
		require.NoError(t, err)
		if value == Unhealthy {
			break
		}
	}
	_, watered, err := g.WaterRandomUnhealthyCell(ctx)
	require.NoError(t, err)
	require.True(t, watered)
	require.NoError(t, g.Dump(ctx, NewWriterSink(&bytes.Buffer{}, "test")))

	require.NotEmpty(t, types)
	require.Equal(t, event.TypeCellMutated, types[0])
	require.Equal(t, []string{event.TypeCellWatered, event.TypeGridRendered}, types[len(types)-2:])
}

func TestGrid_ConcurrentWritersAndMonitors(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 5, 5)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 200 {
				if _, _, err := g.MutateRandomCell(ctx); !assert.NoError(t, err, "MutateRandomCell") {
					return
				}
				if _, _, err := g.WaterRandomUnhealthyCell(ctx); !assert.NoError(t, err, "WaterRandomUnhealthyCell") {
					return
				}
			}
		})
	}

	dumps := make([]bytes.Buffer, 4)
	for i := range dumps {
		wg.Go(func() {
			for range 50 {
				if !assert.NoError(t, g.RenderTo(ctx, &dumps[i]), "RenderTo") {
					return
				}
			}
		})
	}
	wg.Wait()

	for i := range dumps {
		requireDump(t, dumps[i].String(), 5*50, 5)
	}

	stats := g.Stats()
	require.Zero(t, stats.Readers)
	require.False(t, stats.Writer)
	require.Equal(t, uint64(4*200*2), stats.WriteAcquisitions)
}

func TestFileSink_Appends(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 5, 5)
	path := filepath.Join(t.TempDir(), "garden.txt")
	sink := NewFileSink(path)

	require.NoError(t, g.Dump(ctx, sink))
	_, _, err := g.MutateRandomCell(ctx)
	require.NoError(t, err)
	require.NoError(t, g.Dump(ctx, sink))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	requireDump(t, string(data), 10, 5)
	require.True(t, strings.HasPrefix(string(data), strings.Repeat("1 1 1 1 1\n", 5)))
}

func TestFileSink_IOFailure(t *testing.T) {
	g := newGrid(t, 2, 2)
	dir := t.TempDir()

	err := g.Dump(context.Background(), NewFileSink(dir))
	require.ErrorIs(t, err, errors.ErrIO)

	var storeErr *errors.StoreError
	require.True(t, errors.As(err, &storeErr))
	require.Equal(t, "dump", storeErr.Op)
	require.Equal(t, "grid", storeErr.Resource)

	stats := g.Stats()
	require.Zero(t, stats.Readers)
	require.False(t, stats.Writer)
}

func TestConsoleSink(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 3, 3)

	var plain bytes.Buffer
	require.NoError(t, g.RenderTo(ctx, &plain))

	t.Run("never", func(t *testing.T) {
		var buf bytes.Buffer
		sink := NewConsoleSink(&buf, ColorNever)
		require.False(t, sink.Colorized())
		require.NoError(t, g.Dump(ctx, sink))
		require.Equal(t, plain.String(), buf.String())
	})

	t.Run("auto on a buffer", func(t *testing.T) {
		var buf bytes.Buffer
		sink := NewConsoleSink(&buf, ColorAuto)
		require.False(t, sink.Colorized())
		require.NoError(t, g.Dump(ctx, sink))
		require.Equal(t, plain.String(), buf.String())
	})

	t.Run("always", func(t *testing.T) {
		var buf bytes.Buffer
		sink := NewConsoleSink(&buf, ColorAlways)
		require.True(t, sink.Colorized())
		require.NoError(t, g.Dump(ctx, sink))
		require.Contains(t, buf.String(), "\x1b[")
		require.Equal(t, 3, strings.Count(buf.String(), "\n"))
	})
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorMode
		wantErr bool
	}{
		{"auto", ColorAuto, false},
		{"always", ColorAlways, false},
		{"never", ColorNever, false},
		{"", ColorAuto, false},
		{"rainbow", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColorMode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestModel(t *testing.T) {
	ctx := context.Background()
	g := newGrid(t, 2, 3)
	m := NewModel(ctx, g, 0)

	require.NotNil(t, m.Init())

	updated, _ := m.Update(m.refresh()())
	m = updated.(Model)
	view := m.View()
	require.Contains(t, view, "keeper garden")
	require.Contains(t, view, "healthy 6/6")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	m = updated.(Model)
	require.NotNil(t, cmd)
	updated, cmd = m.Update(cmd())
	m = updated.(Model)
	require.NotNil(t, cmd, "an action should trigger a refresh")
	require.Contains(t, m.View(), "nature set")

	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)
	require.NotNil(t, cmd)
	require.Empty(t, m.View())
}
