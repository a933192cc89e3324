package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/Krimson/eda-forensics/internal/ingest"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

// app общее состояние команд: профиль ядра и параметры бэкенда
type app struct {
	profilePath string
	backendURL  string
	timeout     time.Duration
	verbose     bool

	prof   *profile.Profile
	logger *slog.Logger
}

// New корневая команда edactl
func New() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "edactl",
		Short: "Offline EDA forensics toolkit",
		Long: `Parse EDA feature files, run reconstruction against the ML backend,
benchmark every technique combination and classify arousal levels.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.profilePath, "profile", "", "kernel profile YAML (defaults plus EDA_* env when empty)")
	flags.StringVar(&a.backendURL, "backend", "", "ML backend URL (overrides profile ml_backend)")
	flags.DurationVar(&a.timeout, "timeout", 2*time.Minute, "ML backend call timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		ingestCmd(a),
		cleanCmd(a),
		benchmarkCmd(a),
		verdictCmd(a),
		profileCmd(a),
		archiveCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	// пакеты ядра пишут через log, он уходит в тот же обработчик
	slog.SetDefault(a.logger)

	prof, err := profile.Load(a.profilePath)
	if err != nil {
		return err
	}
	a.prof = prof
	a.logger.Debug("profile loaded", "path", a.profilePath, "backend", a.backend())
	return nil
}

func (a *app) backend() string {
	if a.backendURL != "" {
		return a.backendURL
	}
	if a.prof != nil {
		return a.prof.MLBackend
	}
	return ""
}

func (a *app) client() *reconstruct.Client {
	return reconstruct.NewClient(a.backend(), a.timeout)
}

func (a *app) readRows(path string) ([]ingest.Row, ingest.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ingest.Summary{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, summary, err := ingest.Parse(f, a.prof.ArtifactThreshold)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	a.logger.Debug("feature file parsed", "path", path, "rows", summary.Rows, "skipped", summary.Skipped)
	return rows, summary, nil
}
