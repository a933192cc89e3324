package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
)

var timeNow = time.Now

func printSummary(w io.Writer, source string, s ingest.Summary) {
	fmt.Fprintf(w, "file:      %s\n", source)
	fmt.Fprintf(w, "rows:      %d\n", s.Rows)
	fmt.Fprintf(w, "skipped:   %d\n", s.Skipped)
	fmt.Fprintf(w, "artifacts: %d\n", s.Artifacts)
	fmt.Fprintf(w, "mean EDA:  %.4f μS\n", s.MeanEDA)
}

// printLedger таблица ранжирования; top <= 0 печатает все испытания
func printLedger(w io.Writer, l *audit.Ledger, top int) {
	ranked := l.Rank()
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTRIAL\tMODE\tTECHS\tSMOOTH\tNOISE\tSTABILITY\tSCORE\tSTATUS")
	for i, t := range ranked {
		status := "OK"
		if t.Failed {
			status = "FAILED"
		}
		fmt.Fprintf(tw, "%d\t#%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			i+1, t.ID, strings.ToUpper(string(t.Mode)), strings.Join(t.Techniques, "+"),
			t.Metrics.SmoothnessScore, t.Metrics.NoiseSuppression, t.Metrics.StabilityIndex,
			t.Score(), status)
	}
	tw.Flush()
}

func printLedgerVerdict(w io.Writer, v audit.LedgerVerdict) {
	fmt.Fprintf(w, "\n%s: %s\n", v.Status, v.Message)
}
