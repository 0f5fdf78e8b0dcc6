package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/logging"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var (
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "juris",
	Short: "Contract clause risk analysis",
	Long: "Juris reviews contract clauses with a chat-completion model, flags risky clauses, " +
		"generates a review checklist and explains clauses in plain language.",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)

	defer func() { _ = zap.L().Sync() }()

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// setupLogging installs the process-wide logger from config, with the
// --log-level and --log-format flags taking precedence.
func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	level, format := cfg.Log.Level, cfg.Log.Format
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	logger, err := logging.New(level, format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print juris version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "juris version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (json, console)")
}
