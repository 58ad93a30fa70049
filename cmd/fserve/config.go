package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fserve/internal/config"
	"fserve/internal/paths"
)

var (
	configFormat    string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fserve configuration",
	Long:  "View and create fserve configuration files (~/.fserve/config.json or config.toml)",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration fserve would run with, after environment
overrides are applied.

Examples:
  fserve config show                 # Annotated listing
  fserve config show --format json   # Source, overrides and config as JSON
  fserve config show --format toml   # Config only, ready to save as config.toml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printEnvVars(cmd.OutOrStdout())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Long: `Write the default configuration to path (default ~/.fserve/config.json).
The encoding follows the extension: .json, .toml, .yaml or .yml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (human, json, toml, yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	result, err := config.LoadConfigWithDetails(configPathFlag)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), result, configFormat)
}

func writeConfig(w io.Writer, result *config.LoadResult, format string) error {
	switch strings.ToLower(format) {
	case "human", "":
		printConfigHuman(w, result)
		return nil
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		data, err := config.Encode(result.Config, format)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
}

func printConfigHuman(w io.Writer, result *config.LoadResult) {
	fmt.Fprintln(w, "fserve Configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))

	if result.UsedDefaults {
		fmt.Fprintln(w, "Source: defaults (no config file found)")
	} else {
		fmt.Fprintf(w, "Source: %s\n", result.ConfigPath)
	}

	if len(result.EnvOverrides) > 0 {
		fmt.Fprintln(w, "\nEnvironment Overrides:")
		for _, ov := range result.EnvOverrides {
			fmt.Fprintf(w, "  %s=%s → %s\n", ov.EnvVar, ov.Value, ov.Path)
		}
	}

	cfg, defaults := result.Config, config.DefaultConfig()
	fmt.Fprintln(w)
	printSetting(w, "version", cfg.Version, defaults.Version)

	fmt.Fprintln(w, "\nserver:")
	printSetting(w, "  host", cfg.Server.Host, defaults.Server.Host)
	printSetting(w, "  port", cfg.Server.Port, defaults.Server.Port)
	printSetting(w, "  root", cfg.Server.Root, defaults.Server.Root)
	printSetting(w, "  maxRequestBytes", cfg.Server.MaxRequestBytes, defaults.Server.MaxRequestBytes)
	printSetting(w, "  readTimeoutMs", cfg.Server.ReadTimeoutMs, defaults.Server.ReadTimeoutMs)
	printSetting(w, "  writeTimeoutMs", cfg.Server.WriteTimeoutMs, defaults.Server.WriteTimeoutMs)

	fmt.Fprintln(w, "\nlimits:")
	printSetting(w, "  maxConcurrent", cfg.Limits.MaxConcurrent, defaults.Limits.MaxConcurrent)
	printSetting(w, "  queueSize", cfg.Limits.QueueSize, defaults.Limits.QueueSize)
	printSetting(w, "  queueTimeoutMs", cfg.Limits.QueueTimeoutMs, defaults.Limits.QueueTimeoutMs)

	fmt.Fprintln(w, "\naccessLog:")
	printSetting(w, "  enabled", cfg.AccessLog.Enabled, defaults.AccessLog.Enabled)
	printSetting(w, "  path", valueOrDefault(cfg.AccessLog.Path, "~/.fserve/access.db"), "~/.fserve/access.db")
	printSetting(w, "  retentionDays", cfg.AccessLog.RetentionDays, defaults.AccessLog.RetentionDays)

	fmt.Fprintln(w, "\nlogging:")
	printSetting(w, "  format", cfg.Logging.Format, defaults.Logging.Format)
	printSetting(w, "  level", cfg.Logging.Level, defaults.Logging.Level)
	printSetting(w, "  file", valueOrDefault(cfg.Logging.File, "(none)"), "(none)")
	printSetting(w, "  maxSize", cfg.Logging.MaxSize, defaults.Logging.MaxSize)
	printSetting(w, "  maxBackups", cfg.Logging.MaxBackups, defaults.Logging.MaxBackups)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'fserve config show --format json' for machine-readable output")
	fmt.Fprintln(w, "Use 'fserve config env' to see supported environment variables")
}

func printSetting(w io.Writer, name string, value, defaultValue interface{}) {
	modified := ""
	if !isEqual(value, defaultValue) {
		modified = fmt.Sprintf(" (default: %v)", defaultValue)
	}
	fmt.Fprintf(w, "%s: %v%s\n", name, value, modified)
}

func printEnvVars(w io.Writer) {
	fmt.Fprintln(w, "Supported fserve Environment Variables")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintln(w)

	for _, name := range config.GetSupportedEnvVars() {
		target := config.EnvPath(name)
		if name == config.ConfigPathEnvVar {
			target = "path to config file"
		}
		fmt.Fprintf(w, "  %-34s %s\n", name, target)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example usage:")
	fmt.Fprintln(w, "  FSERVE_PORT=8080 fserve serve")
	fmt.Fprintln(w, "  FSERVE_LOG_LEVEL=debug FSERVE_ACCESS_LOG_ENABLED=true fserve serve")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		dir, err := paths.EnsureStateDir()
		if err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		path = filepath.Join(dir, "config.json")
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func isEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
