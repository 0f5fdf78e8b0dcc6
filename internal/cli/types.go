package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/providers"
)

func promptsFromConfig(cfg config.Config) (*prompts.Catalog, error) {
	return prompts.Load(cfg.Prompts.File)
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List contract types and their prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		catalog, err := promptsFromConfig(cfg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, ct := range prompts.ContractTypes {
			fmt.Fprintf(w, "%s:\n", ct)
			fmt.Fprintf(w, "  analysis:    %s\n", firstLine(catalog.Analysis(ct)))
			fmt.Fprintf(w, "  explanation: %s\n\n", firstLine(catalog.Explanation(ct)))
		}
		fmt.Fprintln(w, "Aliases: sla, msa, nda. Unknown types use the default prompts.")
		return nil
	},
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 90
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials and connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Provider.BaseURL, cfg.Provider.Model)

		client, err := providers.FromConfig(cfg, zap.L())
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var hits providers.RateLimitCounter
		if _, err := client.Call(ctx, "Respond with exactly: ok", "ping", &hits); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", cfg.Provider.Model)
		return nil
	},
}

func init() {
	doctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
	doctorCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Chat completions endpoint URL")
}
