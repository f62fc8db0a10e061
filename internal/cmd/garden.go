package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/keeper/internal/grid"
	"github.com/Iron-Ham/keeper/internal/metrics"
	"github.com/Iron-Ham/keeper/internal/worker"
)

var gardenCmd = &cobra.Command{
	Use:   "garden",
	Short: "Tend the garden grid",
	Long: `Tend the garden grid. A gardener waters an unhealthy cell, nature
damages a random cell, and monitors render the grid, each on its own
interval (garden.*_interval_ms).`,
}

var gardenRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gardener, nature and both monitors until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runGardenRun,
}

var gardenViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Watch the garden live in the terminal",
	Long: `Watch the garden live. The gardener and nature keep working in the
background. Press w to water, m to mutate and q to quit.`,
	Args: cobra.NoArgs,
	RunE: runGardenView,
}

func init() {
	rootCmd.AddCommand(gardenCmd)
	gardenCmd.AddCommand(gardenRunCmd)
	gardenCmd.AddCommand(gardenViewCmd)

	gardenRunCmd.Flags().Duration("duration", 0, "stop after this long (0 runs until interrupted)")
}

func (r *runtime) newGrid() (*grid.Grid, error) {
	return grid.New(r.cfg.Garden.Rows, r.cfg.Garden.Cols,
		grid.WithBus(r.bus),
		grid.WithLogger(r.logger),
		grid.WithLockOptions(r.lockOptions()...),
	)
}

func (r *runtime) newScheduler() *worker.Scheduler {
	return worker.NewScheduler(
		worker.WithLogger(r.logger),
		worker.WithBus(r.bus),
		worker.WithRecorder(r.collector),
	)
}

// tendTasks returns the gardener and nature workers for g.
func tendTasks(r *runtime, g *grid.Grid) []worker.Task {
	return []worker.Task{
		{Name: "gardener", Kind: worker.KindMutator, Interval: r.cfg.Garden.WaterInterval(),
			Run: func(ctx context.Context) error {
				_, _, err := g.WaterRandomUnhealthyCell(ctx)
				return err
			}},
		{Name: "nature", Kind: worker.KindMutator, Interval: r.cfg.Garden.MutateInterval(),
			Run: func(ctx context.Context) error {
				_, _, err := g.MutateRandomCell(ctx)
				return err
			}},
	}
}

// monitorTask returns an observer that dumps g to sink.
func monitorTask(name string, interval time.Duration, g *grid.Grid, sink grid.Sink) worker.Task {
	return worker.Task{Name: name, Kind: worker.KindObserver, Interval: interval,
		Run: func(ctx context.Context) error {
			return g.Dump(ctx, sink)
		}}
}

func runGardenRun(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	mode, err := grid.ParseColorMode(rt.cfg.Garden.Color)
	if err != nil {
		return err
	}
	g, err := rt.newGrid()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	s := rt.newScheduler()
	tasks := append(tendTasks(rt, g),
		monitorTask("file-monitor", rt.cfg.Garden.DumpInterval(), g, grid.NewFileSink(rt.cfg.Garden.DumpFile)),
		monitorTask("console-monitor", rt.cfg.Garden.DumpInterval(), g, grid.NewConsoleSink(out, mode)),
	)
	for _, t := range tasks {
		if err := s.Add(t); err != nil {
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.Run(ctx) })
	rt.serveMetrics(ctx, eg, map[string]metrics.LockSource{"grid": g})
	if err := eg.Wait(); err != nil {
		return err
	}

	healthy, err := g.Healthy(context.Background())
	if err != nil {
		return err
	}
	st := g.Stats()
	fmt.Fprintf(out, "Garden stopped: %d/%d healthy, %d writes, %d reads\n",
		healthy, g.Rows()*g.Cols(), st.WriteAcquisitions, st.ReadAcquisitions)
	return nil
}

func runGardenView(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, err := rt.newGrid()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := rt.newScheduler()
	for _, t := range tendTasks(rt, g) {
		if err := s.Add(t); err != nil {
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.Run(ctx) })
	rt.serveMetrics(ctx, eg, map[string]metrics.LockSource{"grid": g})

	p := tea.NewProgram(grid.NewModel(ctx, g, 0),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	_, runErr := p.Run()
	interrupted := ctx.Err() != nil
	cancel()

	if err := eg.Wait(); err != nil {
		return err
	}
	if runErr != nil && !interrupted {
		return fmt.Errorf("viewer error: %w", runErr)
	}
	return nil
}
