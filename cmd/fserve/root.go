package main

import (
	"github.com/spf13/cobra"

	"fserve/internal/version"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "fserve",
	Short: "fserve - a minimal static file server",
	Long: `fserve answers one request per TCP connection with the contents of a
file, an HTML listing of a directory, or a fixed 404 page. Every path is
confined beneath a single root directory.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("fserve version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to config file (overrides FSERVE_CONFIG_PATH)")
}
