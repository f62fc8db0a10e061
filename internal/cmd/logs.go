package cmd

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/keeper/internal/config"
	"github.com/Iron-Ham/keeper/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View keeper's structured logs",
	Long: `View and filter keeper.log from logging.dir.

Examples:
  # Show the last 50 entries
  keeper logs

  # Only warnings and errors from the garden
  keeper logs --level warn --resource grid

  # Everything a worker logged in the last ten minutes
  keeper logs --worker gardener --since 10m -n 0

  # Export as CSV
  keeper logs -n 0 --format csv > keeper.csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail     int
	logsLevel    string
	logsSince    string
	logsResource string
	logsWorker   string
	logsGrep     string
	logsFormat   string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsResource, "resource", "", "Filter by resource (directory, grid, routes)")
	logsCmd.Flags().StringVar(&logsWorker, "worker", "", "Filter by worker name")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter by text in the message or attributes")
	logsCmd.Flags().StringVar(&logsFormat, "format", "pretty", "Output format: pretty, "+strings.Join(logging.ExportFormats(), ", "))
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	if cfg.Logging.Dir == "" {
		fmt.Fprintln(out, "logging.dir is not set; keeper is logging to stderr.")
		return nil
	}
	logPath := filepath.Join(cfg.Logging.Dir, logging.FileName)

	filter := logging.Filter{
		Resource: logsResource,
		Worker:   logsWorker,
		Contains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries, err := logging.ReadEntries(logPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "No logs found at %s\n", logPath)
		return nil
	}
	if err != nil {
		return err
	}

	entries = logging.FilterEntries(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if logsFormat != "pretty" {
		return logging.Export(out, entries, logsFormat)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	styles := newLogStyles(out)
	for _, e := range entries {
		fmt.Fprintln(out, styles.format(e))
	}
	return nil
}

type logStyles struct {
	time   lipgloss.Style
	levels map[string]lipgloss.Style
	attr   lipgloss.Style
}

func newLogStyles(out io.Writer) logStyles {
	r := lipgloss.NewRenderer(out)
	return logStyles{
		time: r.NewStyle().Foreground(lipgloss.Color("244")),
		levels: map[string]lipgloss.Style{
			logging.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("244")),
			logging.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("39")),
			logging.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("214")),
			logging.LevelError: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		attr: r.NewStyle().Foreground(lipgloss.Color("37")),
	}
}

// format renders e as "[15:04:05.000] [LEVEL] msg key=value ...".
func (s logStyles) format(e logging.Entry) string {
	var sb strings.Builder
	sb.WriteString(s.time.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	level := strings.ToUpper(e.Level)
	sb.WriteString(s.levels[level].Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	for _, kv := range [][2]string{{"resource", e.Resource}, {"worker", e.Worker}, {"kind", e.Kind}} {
		if kv[1] != "" {
			sb.WriteString(" " + s.attr.Render(kv[0]+"=") + kv[1])
		}
	}
	for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
		sb.WriteString(" " + s.attr.Render(k+"=") + fmt.Sprint(e.Attrs[k]))
	}
	return sb.String()
}
