package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/keeper/internal/config"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lock statistics from a running keeper",
	Long: `Query the metrics server of a running keeper (started with metrics.enabled
or --metrics-addr) and print the state of every lock:

- Readers currently holding it and whether a writer does
- Writers waiting
- Read and write acquisitions, and waits abandoned`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var (
	statsJSON bool // Output as JSON
	statsURL  string
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().StringVar(&statsURL, "url", "", "metrics server URL (default from metrics.addr)")
	rootCmd.AddCommand(statsCmd)
}

// serverURL turns a listen address such as ":9090" into a URL.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func fetchLockStats(baseURL string) (map[string]rwlock.Stats, error) {
	var stats map[string]rwlock.Stats
	resp, err := resty.New().
		SetHostURL(baseURL).
		SetTimeout(5 * time.Second).
		R().
		SetResult(&stats).
		Get("/locks")
	if err != nil {
		return nil, fmt.Errorf("failed to reach keeper at %s: %w", baseURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("keeper at %s returned %s", baseURL, resp.Status())
	}
	return stats, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	url := statsURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		url = cfg.Metrics.Addr
	}

	stats, err := fetchLockStats(serverURL(url))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats) == 0 {
		fmt.Fprintln(out, "No locks registered")
		return nil
	}
	fmt.Fprintf(out, "%-10s %7s %6s %8s %10s %10s %9s\n",
		"LOCK", "READERS", "WRITER", "WAITING", "READS", "WRITES", "ABANDONED")
	for _, name := range slices.Sorted(maps.Keys(stats)) {
		s := stats[name]
		writer := "-"
		if s.Writer {
			writer = "held"
		}
		fmt.Fprintf(out, "%-10s %7d %6s %8d %10d %10d %9d\n",
			name, s.Readers, writer, s.WritersWaiting, s.ReadAcquisitions, s.WriteAcquisitions, s.Abandoned)
	}
	return nil
}
