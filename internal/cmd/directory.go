package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/keeper/internal/directory"
	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/worker"
)

var directoryCmd = &cobra.Command{
	Use:     "directory",
	Aliases: []string{"dir"},
	Short:   "Work with the phone directory",
	Long: `Work with the phone directory. Entries live in memory and every change is
written to the log file (directory.log_path), which is replayed on start.`,
}

var directoryScenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run six concurrent readers, writers and finders against the directory",
	Long: `Seed the directory, then run concurrently:
  - readers for Smith and Johnson
  - writers inserting Jean -> 555-1234 and Brown -> 555-5678
  - a finder by phone 555-1234 and a finder by name Smith

Seed entries come from directory.seed_file when set, otherwise Smith -> 555-1111
and Johnson -> 555-2222.`,
	Args: cobra.NoArgs,
	RunE: runDirectoryScenario,
}

var directoryLookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Print the phone number stored for a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runDirectoryLookup,
}

var directoryFindCmd = &cobra.Command{
	Use:   "find <phone>",
	Short: "Print a name stored with a phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runDirectoryFind,
}

var directorySetCmd = &cobra.Command{
	Use:   "set <name> <phone>",
	Short: "Insert or update an entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runDirectorySet,
}

var directoryDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove an entry and its log records",
	Args:  cobra.ExactArgs(1),
	RunE:  runDirectoryDelete,
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every entry",
	Args:  cobra.NoArgs,
	RunE:  runDirectoryList,
}

var directoryWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print changes to the log file until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runDirectoryWatch,
}

func init() {
	rootCmd.AddCommand(directoryCmd)
	directoryCmd.AddCommand(directoryScenarioCmd)
	directoryCmd.AddCommand(directoryLookupCmd)
	directoryCmd.AddCommand(directoryFindCmd)
	directoryCmd.AddCommand(directorySetCmd)
	directoryCmd.AddCommand(directoryDeleteCmd)
	directoryCmd.AddCommand(directoryListCmd)
	directoryCmd.AddCommand(directoryWatchCmd)

	directoryCmd.PersistentFlags().String("log-path", "", "directory log file (default from directory.log_path)")

	directoryScenarioCmd.Flags().Bool("fresh", false, "remove the log file before seeding")
}

func runDirectoryScenario(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
		if err := os.Remove(rt.cfg.Directory.LogPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove log: %w", err)
		}
	}

	seed := directory.DefaultSeed()
	if rt.cfg.Directory.SeedFile != "" {
		if seed, err = directory.LoadSeedFile(rt.cfg.Directory.SeedFile); err != nil {
			return err
		}
	}

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}
	if err := dir.Seed(ctx, seed); err != nil {
		return err
	}

	if rt.cfg.Directory.Watch {
		stop, err := watchLog(rt, dir.Path(), out)
		if err != nil {
			return err
		}
		defer stop()
	}

	tasks, outputs := scenarioTasks(dir)
	results := worker.RunOnce(ctx, tasks...)
	rt.collector.RecordResults(results)

	var failed int
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%-15s %-7s error: %v\n", r.Name, r.Kind, r.Err)
			continue
		}
		fmt.Fprintf(out, "%-15s %-7s %s\n", r.Name, r.Kind, outputs[i])
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Final directory:")
	if err := printEntries(ctx, dir, out); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d workers failed", failed, len(results))
	}
	return nil
}

// scenarioTasks returns the six scenario workers. Each worker writes its
// outcome to the matching index of the returned slice.
func scenarioTasks(dir *directory.Directory) ([]worker.Task, []string) {
	outputs := make([]string, 6)

	lookup := func(i int, name string) worker.Task {
		return worker.Task{Name: "reader-" + strings.ToLower(name), Kind: worker.KindReader,
			Run: func(ctx context.Context) error {
				phone, ok, err := dir.LookupPhoneNumber(ctx, name)
				if err != nil {
					return err
				}
				outputs[i] = foundOrNot(name+" -> "+phone, ok, name)
				return nil
			}}
	}
	upsert := func(i int, name, phone string) worker.Task {
		return worker.Task{Name: "writer-" + strings.ToLower(name), Kind: worker.KindWriter,
			Run: func(ctx context.Context) error {
				if err := dir.Upsert(ctx, name, phone); err != nil {
					return err
				}
				outputs[i] = "inserted " + name + " -> " + phone
				return nil
			}}
	}

	tasks := []worker.Task{
		lookup(0, "Smith"),
		lookup(1, "Johnson"),
		upsert(2, "Jean", "555-1234"),
		upsert(3, "Brown", "555-5678"),
		{Name: "finder-phone", Kind: worker.KindReader,
			Run: func(ctx context.Context) error {
				name, ok, err := dir.LookupNameByPhoneNumber(ctx, "555-1234")
				if err != nil {
					return err
				}
				outputs[4] = foundOrNot("555-1234 -> "+name, ok, "555-1234")
				return nil
			}},
		{Name: "finder-name", Kind: worker.KindReader,
			Run: func(ctx context.Context) error {
				phone, ok, err := dir.LookupPhoneNumber(ctx, "Smith")
				if err != nil {
					return err
				}
				outputs[5] = foundOrNot("Smith -> "+phone, ok, "Smith")
				return nil
			}},
	}
	return tasks, outputs
}

func foundOrNot(found string, ok bool, key string) string {
	if ok {
		return found
	}
	return key + " not found"
}

func runDirectoryLookup(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}
	phone, ok, err := dir.LookupPhoneNumber(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "no entry for %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), phone)
	return nil
}

func runDirectoryFind(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}
	name, ok, err := dir.LookupNameByPhoneNumber(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "no entry with phone %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), name)
	return nil
}

func runDirectorySet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}
	if err := dir.Upsert(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
	return nil
}

func runDirectoryDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}

	var existed bool
	rt.bus.Subscribe(event.TypeEntryDeleted, func(e event.Event) {
		existed = e.(event.EntryDeletedEvent).Existed
	})
	if err := dir.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	if existed {
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "No entry for %s\n", args[0])
	}
	return nil
}

func runDirectoryList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	dir, err := rt.openDirectory()
	if err != nil {
		return err
	}
	return printEntries(cmd.Context(), dir, cmd.OutOrStdout())
}

func runDirectoryWatch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	stopWatch, err := watchLog(rt, rt.cfg.Directory.LogPath, out)
	if err != nil {
		return err
	}
	defer stopWatch()

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", rt.cfg.Directory.LogPath)
	<-ctx.Done()
	return nil
}

// watchLog prints a line to out for every change to the log at path.
func watchLog(rt *runtime, path string, out io.Writer) (stop func(), err error) {
	w, err := directory.NewWatcher(path, rt.bus, rt.logger)
	if err != nil {
		return nil, err
	}
	id := rt.bus.Subscribe(event.TypeLogChanged, func(e event.Event) {
		c := e.(event.LogChangedEvent)
		fmt.Fprintf(out, "%s %s %s\n", c.Timestamp().Format("15:04:05.000"), c.Op, c.Path)
	})
	w.Start()
	return func() {
		_ = w.Stop()
		rt.bus.Unsubscribe(id)
	}, nil
}

func printEntries(ctx context.Context, dir *directory.Directory, out io.Writer) error {
	entries, err := dir.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "(empty)")
		return nil
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s - %s\n", name, entries[name])
	}
	return nil
}
