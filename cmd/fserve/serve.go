package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fserve/internal/accesslog"
	"fserve/internal/config"
	"fserve/internal/errors"
	"fserve/internal/logging"
	"fserve/internal/paths"
	"fserve/internal/server"
)

var (
	serveHost            string
	servePort            int
	serveRoot            string
	serveMaxConnections  int
	serveMaxRequestBytes int
	serveAccessLog       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a directory over TCP",
	Long: `Serve the files beneath a root directory. Each connection carries one
request and receives one response, after which it is closed.

Settings come from command-line flags, then FSERVE_* environment variables,
then the config file, then built-in defaults.

Examples:
  fserve serve                         # Serve the working directory on 127.0.0.1:5500
  fserve serve --root ./public --port 8080
  fserve serve --access-log            # Record every connection in ~/.fserve/access.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 5500)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Directory to serve (default: working directory)")
	serveCmd.Flags().IntVar(&serveMaxConnections, "max-connections", 0, "Maximum connections handled at once")
	serveCmd.Flags().IntVar(&serveMaxRequestBytes, "max-request-bytes", 0, "Largest request head read from a connection")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "Record connections in the access ledger")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	result, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	cfg := result.Config

	logger := newLogger(cfg)
	defer func() { _ = logger.Close() }()

	if result.ConfigPath != "" {
		logger.Debug("Loaded config", map[string]interface{}{
			"path":         result.ConfigPath,
			"envOverrides": len(result.EnvOverrides),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Root:            cfg.Server.Root,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		ReadTimeout:     millis(cfg.Server.ReadTimeoutMs),
		WriteTimeout:    millis(cfg.Server.WriteTimeoutMs),
		Limits: server.LimiterConfig{
			MaxConcurrent: cfg.Limits.MaxConcurrent,
			QueueSize:     cfg.Limits.QueueSize,
			QueueTimeout:  millis(cfg.Limits.QueueTimeoutMs),
		},
		Logger: logger,
	}

	if cfg.AccessLog.Enabled {
		store, err := openLedger(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts.Recorder = store
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fserve serving %s on %s\n", srv.Root(), cfg.Server.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr()); err != nil {
		logger.Error("Server error", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	if stats := srv.Stats(); stats.Shed > 0 {
		logger.Warn("Connections were shed during this run", map[string]interface{}{
			"shed":          stats.Shed,
			"maxConcurrent": cfg.Limits.MaxConcurrent,
			"queueSize":     cfg.Limits.QueueSize,
		})
	}
	return nil
}

// loadServeConfig resolves the effective configuration and applies the
// flags the user set explicitly.
func loadServeConfig(cmd *cobra.Command) (*config.LoadResult, error) {
	result, err := config.LoadConfigWithDetails(configPathFlag)
	if err != nil {
		return nil, err
	}
	applyServeFlags(cmd, result.Config)
	if err := result.Config.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}
	return result, nil
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("root") {
		cfg.Server.Root = serveRoot
	}
	if flags.Changed("max-connections") {
		cfg.Limits.MaxConcurrent = serveMaxConnections
	}
	if flags.Changed("max-request-bytes") {
		cfg.Server.MaxRequestBytes = serveMaxRequestBytes
	}
	if flags.Changed("access-log") {
		cfg.AccessLog.Enabled = serveAccessLog
	}
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format:     logging.ParseFormat(cfg.Logging.Format),
		Level:      logging.LogLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// openLedger opens the access ledger named by cfg and drops rows older
// than the retention window.
func openLedger(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*accesslog.Store, error) {
	path, err := ledgerPath(cfg)
	if err != nil {
		return nil, err
	}
	store, err := accesslog.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open access ledger: %w", err)
	}

	if days := cfg.AccessLog.RetentionDays; days > 0 {
		pruned, err := store.Prune(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			logger.Warn("Failed to prune access ledger", map[string]interface{}{
				"error": err.Error(),
			})
		} else if pruned > 0 {
			logger.Info("Pruned access ledger", map[string]interface{}{
				"removed":       pruned,
				"retentionDays": days,
			})
		}
	}
	return store, nil
}

func ledgerPath(cfg *config.Config) (string, error) {
	if cfg.AccessLog.Path != "" {
		return cfg.AccessLog.Path, nil
	}
	path, err := paths.AccessLogPath()
	if err != nil {
		return "", fmt.Errorf("failed to get access ledger path: %w", err)
	}
	return path, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
