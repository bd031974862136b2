package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/unijord/contentmeta/pkg/config"
)

var errConfigRequired = errors.New("--config is required")

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "contentmeta",
	Short: "Build and load the object content-metadata table",
	Long: `contentmeta derives the content-metadata table schema from a properties
file, renders its DDL and loads change-stream records into it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "application properties file (.json or .toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func loadValues() (config.Values, error) {
	if configPath == "" {
		return nil, errConfigRequired
	}
	return config.LoadFile(configPath)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
