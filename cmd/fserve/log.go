package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fserve/internal/accesslog"
	"fserve/internal/config"
	"fserve/internal/logging"
)

var (
	logLines int
	logJSON  bool
	logDB    string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the access ledger",
	Long: `Show the most recent connections recorded by 'fserve serve' when the
access ledger is enabled.

Examples:
  fserve log              # Show the last 20 connections
  fserve log -n 100       # Show the last 100 connections
  fserve log --json       # Output entries as JSON`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 20, "Number of entries to show")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")
	logCmd.Flags().StringVar(&logDB, "db", "", "Ledger database (default from config)")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	path := logDB
	if path == "" {
		result, err := config.LoadConfigWithDetails(configPathFlag)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		path, err = ledgerPath(result.Config)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No access ledger found.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Ledger location: %s\n", path)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "The ledger is created when:")
		fmt.Fprintln(out, "  - Running 'fserve serve --access-log'")
		fmt.Fprintln(out, "  - Setting accessLog.enabled or FSERVE_ACCESS_LOG_ENABLED=true")
		return nil
	}

	store, err := accesslog.Open(path, logging.NewNopLogger())
	if err != nil {
		return fmt.Errorf("failed to open access ledger: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(cmd.Context(), logLines)
	if err != nil {
		return err
	}
	if err := writeEntries(out, entries, logJSON); err != nil {
		return err
	}
	if !logJSON {
		total, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nShowing %d of %d entries from %s\n", len(entries), total, store.Path())
	}
	return nil
}

// writeEntries prints entries oldest first so the newest ends up at the
// bottom, like a log tail.
func writeEntries(w io.Writer, entries []accesslog.Entry, asJSON bool) error {
	ordered := make([]accesslog.Entry, len(entries))
	for i, e := range entries {
		ordered[len(entries)-1-i] = e
	}

	if asJSON {
		data, err := json.MarshalIndent(ordered, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for _, e := range ordered {
		fmt.Fprintln(w, formatEntry(e))
	}
	return nil
}

func formatEntry(e accesslog.Entry) string {
	status := "---"
	if e.Status != 0 {
		status = fmt.Sprintf("%d", e.Status)
	}
	line := fmt.Sprintf("%s %s %s %s %s",
		e.CreatedAt.UTC().Format(time.RFC3339),
		status,
		valueOrDefault(e.RemoteAddr, "-"),
		valueOrDefault(e.Method, "-"),
		valueOrDefault(e.Target, "-"),
	)
	if e.ResolvedPath != "" {
		line += " → " + e.ResolvedPath
	}
	line += fmt.Sprintf(" (%d bytes, %dms)", e.Bytes, e.DurationMs)
	if e.Escaped {
		line += " [escaped]"
	}
	if e.Error != "" {
		line += " error: " + e.Error
	}
	return line
}
