package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Krimson/eda-forensics/internal/archive"
	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
)

func ingestCmd(a *app) *cobra.Command {
	var archivePath string

	cmd := &cobra.Command{
		Use:     "ingest <file.csv>",
		Short:   "Parse a feature CSV and print its summary",
		Example: "edactl ingest session.csv --archive eda.db",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, summary, err := a.readRows(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), args[0], summary)

			if archivePath == "" {
				return nil
			}
			id, err := archiveRun(cmd, archivePath, args[0], rows, summary, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived as batch %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive to store the rows in")
	return cmd
}

// archiveRun сохраняет строки и, если есть, испытания одной партией
func archiveRun(cmd *cobra.Command, path, source string, rows []ingest.Row, summary ingest.Summary, trials []audit.Trial) (int64, error) {
	ar, err := archive.Open(path)
	if err != nil {
		return 0, err
	}
	defer ar.Close()

	id, err := ar.SaveRows(cmd.Context(), filepath.Base(source), rows, summary)
	if err != nil {
		return 0, err
	}
	if len(trials) > 0 {
		if err := ar.SaveTrials(cmd.Context(), id, trials); err != nil {
			return id, err
		}
	}
	return id, nil
}
