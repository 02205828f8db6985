package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "draftsmith",
	Short: "LLM-driven KiCad schematic generator",
	Long: `draftsmith turns a circuit description (JSON) into a KiCad 9 schematic
by iterating an LLM generator against a consistency checker and KiCad's
electrical rule checker until the schematic converges.

Examples:
  draftsmith generate --input circuit.json               # Generate into ./output
  draftsmith generate --input circuit.json --iters 5     # Allow more repair rounds
  draftsmith index                                       # Build the symbol similarity index`,
}

// Execute runs the root command
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger builds the process logger. Normal runs keep zap quiet so the
// progress lines stay readable; --verbose opens it up to debug level.
func newLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	if verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, _ := logConfig.Build()
	return logger
}
