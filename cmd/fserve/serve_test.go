package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"fserve/internal/accesslog"
	"fserve/internal/config"
	"fserve/internal/errors"
	"fserve/internal/logging"
)

// isolateEnv points the state directory at a temp dir and clears every
// FSERVE_* override.
func isolateEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("FSERVE_HOME", home)
	for _, name := range config.GetSupportedEnvVars() {
		t.Setenv(name, "")
	}
	return home
}

// newServeFlags returns a command carrying the serve flags, bound to the
// package flag variables, with args already parsed.
func newServeFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().StringVar(&serveHost, "host", "", "")
	cmd.Flags().IntVar(&servePort, "port", 0, "")
	cmd.Flags().StringVar(&serveRoot, "root", "", "")
	cmd.Flags().IntVar(&serveMaxConnections, "max-connections", 0, "")
	cmd.Flags().IntVar(&serveMaxRequestBytes, "max-request-bytes", 0, "")
	cmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "")
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cmd
}

func TestLoadServeConfig_Precedence(t *testing.T) {
	home := isolateEnv(t)
	configPathFlag = ""
	t.Cleanup(func() { configPathFlag = "" })

	file := filepath.Join(home, "config.toml")
	data := "version = 1\n\n[server]\nhost = \"0.0.0.0\"\nport = 6000\n\n[limits]\nmaxConcurrent = 8\n"
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	// File only.
	result, err := loadServeConfig(newServeFlags(t))
	if err != nil {
		t.Fatalf("loadServeConfig() error = %v", err)
	}
	if result.ConfigPath != file {
		t.Errorf("ConfigPath = %q, want %q", result.ConfigPath, file)
	}
	if result.Config.Server.Port != 6000 || result.Config.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v, want file values", result.Config.Server)
	}

	// Env beats file.
	t.Setenv("FSERVE_PORT", "7000")
	result, err = loadServeConfig(newServeFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	if result.Config.Server.Port != 7000 {
		t.Errorf("Port = %d, want env value 7000", result.Config.Server.Port)
	}

	// Flags beat env.
	root := t.TempDir()
	result, err = loadServeConfig(newServeFlags(t, "--port", "8080", "--root", root, "--max-connections", "2", "--access-log"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := result.Config
	if cfg.Server.Port != 8080 || cfg.Server.Root != root || cfg.Limits.MaxConcurrent != 2 || !cfg.AccessLog.Enabled {
		t.Errorf("config = %+v, want flag values", cfg)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, unset flag should keep file value", cfg.Server.Host)
	}
}

func TestLoadServeConfig_Invalid(t *testing.T) {
	isolateEnv(t)
	configPathFlag = ""

	_, err := loadServeConfig(newServeFlags(t, "--port", "70000"))
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("error = %v, want %s", err, errors.ConfigInvalid)
	}

	configPathFlag = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { configPathFlag = "" })
	if _, err := loadServeConfig(newServeFlags(t)); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLedgerPath(t *testing.T) {
	home := isolateEnv(t)

	cfg := config.DefaultConfig()
	path, err := ledgerPath(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "access.db"); path != want {
		t.Errorf("ledgerPath() = %q, want %q", path, want)
	}

	cfg.AccessLog.Path = "/var/lib/fserve/access.db"
	if path, _ := ledgerPath(cfg); path != cfg.AccessLog.Path {
		t.Errorf("ledgerPath() = %q, want configured path", path)
	}
}

func TestOpenLedger_PrunesExpired(t *testing.T) {
	isolateEnv(t)
	ctx := context.Background()
	logger := logging.NewNopLogger()

	cfg := config.DefaultConfig()
	cfg.AccessLog.Path = filepath.Join(t.TempDir(), "access.db")
	cfg.AccessLog.RetentionDays = 7

	store, err := accesslog.Open(cfg.AccessLog.Path, logger)
	if err != nil {
		t.Fatal(err)
	}
	old := accesslog.Entry{ConnID: "old", Status: 200, CreatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	fresh := accesslog.Entry{ConnID: "fresh", Status: 200, CreatedAt: time.Now().Add(-time.Hour)}
	for _, e := range []accesslog.Entry{old, fresh} {
		if err := store.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = openLedger(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("openLedger() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ConnID != "fresh" {
		t.Errorf("entries after prune = %+v, want only fresh", entries)
	}
}

func TestMillis(t *testing.T) {
	if got := millis(1500); got != 1500*time.Millisecond {
		t.Errorf("millis(1500) = %v", got)
	}
	if millis(0) != 0 {
		t.Error("millis(0) should be zero")
	}
}
