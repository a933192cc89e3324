package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Krimson/eda-forensics/internal/archive"
	"github.com/Krimson/eda-forensics/internal/audit"
)

func archiveCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse the local SQLite archive",
	}
	cmd.PersistentFlags().StringVar(&path, "db", "eda-archive.db", "SQLite archive path")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := archive.Open(path)
			if err != nil {
				return err
			}
			defer ar.Close()

			batches, err := ar.Batches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tSOURCE\tROWS\tARTIFACTS\tMEAN EDA\tCREATED")
			for _, b := range batches {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.4f\t%s\n",
					b.ID, b.Source, b.Rows, b.Artifacts, b.MeanEDA, b.CreatedAt.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "batches to list")

	show := &cobra.Command{
		Use:   "show <batch>",
		Short: "Print rows summary and ledger of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q: %w", args[0], err)
			}

			ar, err := archive.Open(path)
			if err != nil {
				return err
			}
			defer ar.Close()

			rows, err := ar.Rows(cmd.Context(), id)
			if err != nil {
				return err
			}
			trials, err := ar.Trials(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "batch %d: %d rows\n", id, len(rows))
			if len(trials) == 0 {
				return nil
			}

			ledger := audit.RestoreLedger(a.prof.LedgerLimit, trials, 0)
			printLedger(out, ledger, 0)
			printLedgerVerdict(out, ledger.Verdict())
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
