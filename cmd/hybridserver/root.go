package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"hybridserver/internal/slogutil"
	"hybridserver/internal/version"
)

var (
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "hybridserver",
	Short: "Hybrid Server - structured document server",
	Long: `Hybrid Server stores and serves HTML pages, XML documents, XSD schemas and
XSLT transforms over a minimal HTTP protocol. Documents live in memory, in an
embedded bolt file, or in a relational database.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("Hybrid Server version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}

// cliLevel returns the log level requested on the command line, or nil to
// defer to the configuration.
func cliLevel() *slog.Level {
	if verbosity == 0 && !quiet {
		return nil
	}
	level := slogutil.LevelFromVerbosity(verbosity, quiet)
	return &level
}
