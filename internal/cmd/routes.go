package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/keeper/internal/routes"
	"github.com/Iron-Ham/keeper/internal/worker"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Work with the bus-route graph",
}

var routesDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Change prices and cities concurrently while travellers query fares",
	Long: `Build the line A-B 50, B-C 40, C-D 30, then run concurrently:
  - a writer raising A-B to 60
  - a writer adding A-C at 100
  - writers removing cities E and G
  - readers pricing A->D, A->C and B->A

Readers may see the graph before or after any writer. The final fares are
printed once every worker is done.`,
	Args: cobra.NoArgs,
	RunE: runRoutesDemo,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesDemoCmd)
}

// fareQueries are priced by the demo readers and again at the end.
var fareQueries = [][2]string{{"A", "D"}, {"A", "C"}, {"B", "A"}}

func runRoutesDemo(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	g := routes.New(
		routes.WithBus(rt.bus),
		routes.WithLogger(rt.logger),
		routes.WithLockOptions(rt.lockOptions()...),
	)
	for _, r := range []routes.Route{
		{From: "A", To: "B", Price: 50},
		{From: "B", To: "C", Price: 40},
		{From: "C", To: "D", Price: 30},
	} {
		if err := g.ModifyRoute(ctx, r); err != nil {
			return err
		}
	}

	tasks := []worker.Task{
		{Name: "price-a-b", Kind: worker.KindWriter, Run: func(ctx context.Context) error {
			_, err := g.ChangeTicketPrice(ctx, "A", "B", 60)
			return err
		}},
		{Name: "route-a-c", Kind: worker.KindWriter, Run: func(ctx context.Context) error {
			return g.ModifyRoute(ctx, routes.Route{From: "A", To: "C", Price: 100})
		}},
		{Name: "remove-e", Kind: worker.KindWriter, Run: func(ctx context.Context) error {
			return g.ReplaceCity(ctx, "E", "")
		}},
		{Name: "remove-g", Kind: worker.KindWriter, Run: func(ctx context.Context) error {
			return g.ReplaceCity(ctx, "G", "")
		}},
	}
	fares := make([]string, len(fareQueries))
	for i, q := range fareQueries {
		tasks = append(tasks, worker.Task{Name: "fare-" + q[0] + "-" + q[1], Kind: worker.KindReader,
			Run: func(ctx context.Context) error {
				s, err := fare(ctx, g, q[0], q[1])
				fares[i] = s
				return err
			}})
	}

	results := worker.RunOnce(ctx, tasks...)
	rt.collector.RecordResults(results)
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.Name, r.Err)
		}
	}

	fmt.Fprintln(out, "Fares seen while writers ran:")
	for _, f := range fares {
		fmt.Fprintln(out, "  "+f)
	}

	fmt.Fprintln(out, "Final fares:")
	for _, q := range fareQueries {
		s, err := fare(ctx, g, q[0], q[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "  "+s)
	}
	return nil
}

func fare(ctx context.Context, g *routes.Graph, from, to string) (string, error) {
	price, ok, err := g.FindRoutePrice(ctx, from, to)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("%s -> %s: no route", from, to), nil
	}
	return fmt.Sprintf("%s -> %s: %d", from, to, price), nil
}
