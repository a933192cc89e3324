package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Krimson/eda-forensics/internal/verdict"
)

func verdictCmd(a *app) *cobra.Command {
	var stats verdict.Stats

	cmd := &cobra.Command{
		Use:     "verdict",
		Short:   "Classify arousal from window diagnostics",
		Example: "edactl verdict --mean 4.2 --peak 6.1 --entropy 1.3",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := verdict.Classify(stats, a.prof.VerdictThresholds)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s  %s\n", v.Tag, v.Message)
			fmt.Fprintf(out, "profile: %s\n", v.Profile)
			fmt.Fprintf(out, "%s\n", v.Description)
			if verdict.Volatile(stats, a.prof.VerdictThresholds) {
				fmt.Fprintln(out, "signal: VOLATILE")
			}
			fmt.Fprintln(out, "findings:")
			for _, f := range verdict.Findings(stats) {
				fmt.Fprintf(out, "  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&stats.Mean, "mean", 0, "window mean, μS")
	cmd.Flags().Float64Var(&stats.Peak, "peak", 0, "window peak, μS")
	cmd.Flags().Float64Var(&stats.Entropy, "entropy", 0, "entropy index")
	cmd.MarkFlagRequired("mean")
	return cmd
}
