package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/ingest"
	"github.com/dshills/juris/internal/output"
	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/providers"
	"github.com/dshills/juris/internal/review"
	"github.com/dshills/juris/internal/store"
)

// Shared analysis flags
var (
	flagType        string
	flagModel       string
	flagBaseURL     string
	flagFormat      string
	flagOut         string
	flagFailOn      string
	flagBatchSize   int
	flagConcurrency int
	flagTimeout     int
	flagThreshold   int
	flagPromptsFile string
	flagSave        bool
	flagNoRedact    bool
	flagNoCache     bool
)

func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Chat completions endpoint URL")
	cmd.Flags().StringVar(&flagPromptsFile, "prompts", "", "YAML prompt catalog file")
	cmd.Flags().StringVarP(&flagType, "type", "t", "", "Contract type (sla, msa, nda, sales_contract, other)")
}

func addAnalyzeFlags(cmd *cobra.Command) {
	addProviderFlags(cmd)
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "none", "Exit 1 when a finding meets this risk level (none, low, medium, high)")
	cmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "Clauses per request")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Maximum concurrent requests")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Deadline for all batches, in seconds")
	cmd.Flags().IntVar(&flagThreshold, "threshold", 0, "Minimum risk level to report (1-3)")
	cmd.Flags().BoolVar(&flagSave, "save", false, "Persist the result to the review store")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Send clause text unredacted (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagModel != "" {
		m["provider.model"] = flagModel
	}
	if flagBaseURL != "" {
		m["provider.baseURL"] = flagBaseURL
	}
	if flagPromptsFile != "" {
		m["prompts.file"] = flagPromptsFile
	}
	if flagBatchSize > 0 {
		m["review.batchSize"] = strconv.Itoa(flagBatchSize)
	}
	if flagConcurrency > 0 {
		m["review.maxConcurrency"] = strconv.Itoa(flagConcurrency)
	}
	if flagTimeout > 0 {
		m["review.timeoutSeconds"] = strconv.Itoa(flagTimeout)
	}
	if flagThreshold > 0 {
		m["review.riskThreshold"] = strconv.Itoa(flagThreshold)
	}
	return m
}

// loadConfig loads and validates the effective config for a command.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return config.Config{}, err
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(os.Stderr, "WARNING: clause redaction is disabled")
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func contractTypeFlag() prompts.ContractType {
	if strings.TrimSpace(flagType) == "" {
		return prompts.Other
	}
	ct := prompts.Normalize(flagType)
	if !ct.Known() {
		zap.L().Warn("unknown contract type, using default prompts", zap.String("type", flagType))
	}
	return ct
}

func openStore(cfg config.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		p, err := config.DefaultStorePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return store.Open(path)
}

// failOnLevel parses --fail-on. "none" disables the check and returns 0.
func failOnLevel(s string) (int, error) {
	level, err := review.ParseRiskLevel(s)
	if err != nil {
		return 0, eris.Wrap(err, "invalid --fail-on")
	}
	return level, nil
}

// exceedsFailOn reports whether any finding meets the fail-on level.
func exceedsFailOn(findings []review.RiskyClause, level int) bool {
	if level <= review.RiskNone {
		return false
	}
	for _, f := range findings {
		if review.MeetsThreshold(f.RiskLevel, level) {
			return true
		}
	}
	return false
}

func runAnalyze(ctx context.Context, path string, cfg config.Config) {
	log := zap.L()

	failOn, err := failOnLevel(flagFailOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	if _, err := output.GetWriter(flagFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	contract, err := ingest.LoadContract(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	client, err := providers.FromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitAuthError
		return
	}
	engine, err := review.FromConfig(cfg, client, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	result, err := engine.Analyze(ctx, contract, contractTypeFlag())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if eris.Is(err, review.ErrDuplicateClauseKey) {
			exitCode = ExitUsageError
		} else {
			exitCode = ExitRuntimeError
		}
		return
	}
	if result.Analytics.TotalBatches > 0 && result.Analytics.SuccessRate == 0 {
		// every batch failed; an auth problem shows up here rather than as an error
		log.Warn("no batch succeeded; check provider credentials and endpoint")
	}

	if err := output.WriteResult(result, flagFormat, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if flagSave {
		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return
		}
		defer st.Close()
		if err := st.SaveReview(ctx, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving review: %v\n", err)
			exitCode = ExitRuntimeError
			return
		}
		fmt.Fprintf(os.Stderr, "Saved review %s\n", result.ID)
	}

	if exceedsFailOn(result.Findings, failOn) {
		exitCode = ExitFindings
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Review a contract for risky clauses",
	Long: "Review a contract file (.json, .html, .htm, .txt or .md) clause by clause, " +
		"then print the risky clauses, a review checklist and run analytics.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		runAnalyze(ctx, args[0], cfg)
		return nil
	},
}

func init() {
	addAnalyzeFlags(analyzeCmd)
}
