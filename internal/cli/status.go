package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/store"
)

var staleAfter time.Duration

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [business-id]",
	Short: "Show stored publish status and QIDs",
	Long: `Status lists every business known to the local store with its
publish status and QID. With a business ID it also lists the publish
attempts recorded for it.

Example:
  wikiclaim status
  wikiclaim status biz_123 --target production`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var resetStaleCmd = &cobra.Command{
	Use:   "reset-stale",
	Short: "Release businesses stuck in publishing",
	Long: `A run that was killed mid-publish leaves its businesses in the
publishing state, which blocks further attempts. reset-stale moves every
business that has been publishing for longer than --older-than to error
so it can be retried. Check the target wiki for a created item first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := st.ReleaseStale(context.Background(), time.Now().Add(-staleAfter))
		if err != nil {
			return err
		}
		fmt.Printf("✓ Released %d stale publish(es)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(resetStaleCmd)

	statusCmd.PersistentFlags().StringVar(&targetName, "target", "", "wikibase target: test or production (default: all for listing, config for a single business)")
	resetStaleCmd.Flags().DurationVar(&staleAfter, "older-than", time.Hour, "minimum time spent in publishing")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	if len(args) == 0 {
		var target model.Target
		if targetName != "" {
			if target, err = model.ParseTarget(targetName); err != nil {
				return err
			}
		}
		records, err := st.List(ctx, target)
		if err != nil {
			return err
		}
		return printRecords(records)
	}

	target, err := resolveTarget(cfg, targetName)
	if err != nil {
		return err
	}

	rec, err := st.Get(ctx, args[0], target)
	if err != nil {
		return fmt.Errorf("%s on %s: %w", args[0], target, err)
	}
	if err := printRecords([]store.Record{*rec}); err != nil {
		return err
	}

	attempts, err := st.Attempts(ctx, rec.BusinessID, target)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSTARTED\tDURATION\tOUTCOME\tKIND\tQID\tERROR")
	for _, a := range attempts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Number, a.StartedAt.Local().Format(time.DateTime), a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond),
			a.Outcome, a.ErrorKind, a.QID, a.Error)
	}
	return w.Flush()
}

func printRecords(records []store.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "No businesses in the store")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUSINESS\tTARGET\tSTATUS\tQID\tATTEMPTS\tUPDATED\tNAME\tLAST ERROR")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.BusinessID, r.Target, r.Status, r.QID, r.Attempts,
			r.UpdatedAt.Local().Format(time.DateTime), r.Name, r.LastError)
	}
	return w.Flush()
}
