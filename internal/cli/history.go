package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/output"
	"github.com/dshills/juris/internal/store"
)

var (
	flagLimit      int
	flagHistoryFmt string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse stored reviews",
}

func withStore(fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}

func printReviewList(w io.Writer, reviews []store.ReviewSummary) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, "No stored reviews.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tTITLE\tRISKY/TOTAL\tSUCCESS")
	for _, r := range reviews {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%.0f%%\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.ContractType, r.ContractTitle,
			r.RiskyClauses, r.TotalClauses, r.SuccessRate)
	}
	return tw.Flush()
}

func printTotals(w io.Writer, t store.Totals) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Contracts reviewed\t%d\n", t.Contracts)
	fmt.Fprintf(tw, "Pages\t%d\n", t.Pages)
	fmt.Fprintf(tw, "Clauses\t%d\n", t.Clauses)
	fmt.Fprintf(tw, "Risky clauses\t%d\n", t.RiskyClauses)
	fmt.Fprintf(tw, "Tokens used\t%d\n", t.TokensUsed)

	types := make([]string, 0, len(t.ByType))
	for ct := range t.ByType {
		types = append(types, ct)
	}
	sort.Strings(types)
	for _, ct := range types {
		fmt.Fprintf(tw, "  %s\t%d\n", ct, t.ByType[ct])
	}
	return tw.Flush()
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			reviews, err := st.ListReviews(ctx, flagLimit)
			if err != nil {
				return err
			}
			return printReviewList(cmd.OutOrStdout(), reviews)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := output.GetWriter(flagHistoryFmt)
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, st *store.Store) error {
			result, err := st.GetReview(ctx, args[0])
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "Review %s not found\n", args[0])
					exitCode = ExitUsageError
					return nil
				}
				return err
			}
			return w.Write(cmd.OutOrStdout(), result)
		})
	},
}

var historyTotalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Show totals across stored reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			totals, err := st.Totals(ctx)
			if err != nil {
				return err
			}
			if flagHistoryFmt == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(totals)
			}
			return printTotals(cmd.OutOrStdout(), totals)
		})
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyTotalsCmd)

	historyListCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum reviews to list (0 for all)")
	historyShowCmd.Flags().StringVar(&flagHistoryFmt, "format", "text", "Output format (text, json, markdown)")
	historyTotalsCmd.Flags().StringVar(&flagHistoryFmt, "format", "text", "Output format (text, json)")
}
