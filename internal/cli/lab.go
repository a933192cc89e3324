package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

func cleanCmd(a *app) *cobra.Command {
	var (
		mode        string
		techniques  []string
		outPath     string
		archivePath string
	)

	cmd := &cobra.Command{
		Use:     "clean <file.csv>",
		Short:   "Reconstruct the EDA_Mean column and rewrite SCL_Tonic and Motion",
		Example: "edactl clean session.csv --mode hybrid --tech cul --tech gmm --out cleaned.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.prof.MLMode
			}
			if mode != string(audit.ModeSolo) && mode != string(audit.ModeHybrid) {
				return fmt.Errorf("mode must be solo or hybrid, got %q", mode)
			}
			if len(techniques) == 0 {
				techniques = a.prof.MLTechniques
			}
			for _, t := range techniques {
				if !reconstruct.ValidTechnique(t) {
					return fmt.Errorf("%w: %s", reconstruct.ErrUnknownTechnique, t)
				}
			}

			rows, summary, err := a.readRows(args[0])
			if err != nil {
				return err
			}

			ledger := audit.NewLedger(a.prof.LedgerLimit)
			cleaned, cleanErr := a.clean(cmd.Context(), rows, audit.Mode(mode), techniques, ledger)

			out := cmd.OutOrStdout()
			printLedger(out, ledger, 0)
			printLedgerVerdict(out, ledger.Verdict())

			if archivePath != "" {
				result := rows
				if cleanErr == nil {
					result = cleaned
				}
				id, err := archiveRun(cmd, archivePath, args[0], result, summary, ledger.Trials())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "archived as batch %d\n", id)
			}

			if cleanErr != nil {
				return fmt.Errorf("reconstruction failed, rows left untouched: %w", cleanErr)
			}

			if outPath != "" {
				if err := writeRows(outPath, cleaned); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleaned rows written to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "solo or hybrid (profile ml_mode when empty)")
	cmd.Flags().StringSliceVar(&techniques, "tech", nil, "technique id, repeatable: "+techniqueList())
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the cleaned CSV here")
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive to store rows and ledger in")
	return cmd
}

// clean один вызов /analyze; упавший вызов пишется в журнал как failed
func (a *app) clean(ctx context.Context, rows []ingest.Row, mode audit.Mode, techniques []string, ledger *audit.Ledger) ([]ingest.Row, error) {
	rec := reconstruct.NewReconstructor(a.client(), a.fallbackParams(), ledger)
	cleaned, _, err := rec.CleanRows(ctx, rows, mode, techniques, a.prof.DivergenceDelta)
	return cleaned, err
}

func (a *app) fallbackParams() reconstruct.FallbackParams {
	return reconstruct.FallbackParams{
		ArtifactThreshold: a.prof.ArtifactThreshold,
		Floor:             a.prof.FallbackFloor,
		Jitter:            a.prof.FallbackJitter,
	}
}

func benchmarkCmd(a *app) *cobra.Command {
	var (
		top         int
		archivePath string
	)

	cmd := &cobra.Command{
		Use:   "benchmark <file.csv>",
		Short: "Run every technique combination and rank the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, summary, err := a.readRows(args[0])
			if err != nil {
				return err
			}

			ledger := audit.NewLedger(a.prof.LedgerLimit)
			rec := reconstruct.NewReconstructor(a.client(), a.fallbackParams(), ledger)

			trials, err := rec.Benchmark(cmd.Context(), ingest.EDAMeans(rows))
			if err != nil {
				return err
			}
			a.logger.Info("benchmark complete", "results", len(trials))

			out := cmd.OutOrStdout()
			printLedger(out, ledger, top)
			printLedgerVerdict(out, ledger.Verdict())

			if archivePath != "" {
				id, err := archiveRun(cmd, archivePath, args[0], rows, summary, ledger.Trials())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "archived as batch %d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "ranking rows to print, 0 prints all")
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive to store rows and ledger in")
	return cmd
}

func writeRows(path string, rows []ingest.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := ingest.Write(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func techniqueList() string {
	ids := make([]string, len(reconstruct.AllTechniques))
	for i, t := range reconstruct.AllTechniques {
		ids[i] = string(t)
	}
	return strings.Join(ids, ", ")
}
