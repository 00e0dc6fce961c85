// crategraph builds a resolved code graph over one or more Rust crates:
// discovery, parallel parse, and batch resolution, with the result
// persisted to SQLite or dumped to stdout.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootFlags struct {
	projectRoot string
	crates      []string
	ignoreFile  string
	workers     int
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:     "crategraph",
		Short:   "Build a resolved code graph over Rust crates",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flags.logLevel)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.projectRoot, "root", ".", "project root directory")
	cmd.PersistentFlags().StringSliceVar(&flags.crates, "crate", []string{"."}, "crate directories relative to the root (repeatable)")
	cmd.PersistentFlags().StringVar(&flags.ignoreFile, "ignore-file", "", "extra ignore-pattern file")
	cmd.PersistentFlags().IntVar(&flags.workers, "workers", 0, "parse workers (0 = all CPUs)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd(flags))
	cmd.AddCommand(newDumpCmd(flags))
	cmd.AddCommand(newUnresolvedCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	return cmd
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// projectName derives the default project identifier from the root dir.
func projectName(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return filepath.Base(projectRoot)
	}
	return filepath.Base(abs)
}
