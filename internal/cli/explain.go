package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/explain"
	"github.com/dshills/juris/internal/providers"
)

// clauseText returns the clause from args, or from stdin when args are empty
// or a single "-".
func clauseText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "reading clause from stdin")
	}
	return strings.TrimSpace(string(data)), nil
}

func runExplain(ctx context.Context, clause string, cfg config.Config, w io.Writer) {
	log := zap.L()

	client, err := providers.FromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitAuthError
		return
	}
	catalog, err := promptsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	stream, err := explain.New(client, catalog, log).Explain(ctx, clause, contractTypeFlag())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case eris.Is(err, explain.ErrEmptyClause):
			exitCode = ExitUsageError
		case providers.IsAuthError(err):
			exitCode = ExitAuthError
		default:
			exitCode = ExitRuntimeError
		}
		return
	}
	defer stream.Close()

	if _, err := stream.WriteTo(w); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}
	fmt.Fprintln(w)
}

var explainCmd = &cobra.Command{
	Use:   "explain [clause text | -]",
	Short: "Explain a clause in plain language",
	Long:  "Stream a plain-language explanation of one clause. The clause is read from the arguments, or from stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		clause, err := clauseText(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		runExplain(ctx, clause, cfg, cmd.OutOrStdout())
		return nil
	},
}

func init() {
	addProviderFlags(explainCmd)
}
