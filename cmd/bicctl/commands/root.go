// Package commands implements bicctl, the offline counterpart of the
// dashboard API: the same derived tables printed to a terminal or written
// to CSV and XLSX files.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bicdash/internal/backend"
	"bicdash/internal/cli"
	"bicdash/internal/config"
	applog "bicdash/internal/log"
	"bicdash/internal/services"
)

// Opener builds the data backend for a loaded configuration.
type Opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error)

type app struct {
	open   Opener
	cfg    *config.Config
	logger *applog.Logger

	backendName string
	rulesFile   string
	cutoff      int
	verbose     bool
}

func Execute() error {
	return NewRootCmd(nil).Execute()
}

// NewRootCmd builds the command tree. A nil open uses the backend factory.
func NewRootCmd(open Opener) *cobra.Command {
	if open == nil {
		open = openBackend
	}
	a := &app{open: open}

	root := &cobra.Command{
		Use:          "bicctl",
		Short:        "Query and export BIC violation statistics",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			level := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
			if !a.verbose && level < slog.LevelWarn {
				level = slog.LevelWarn
			}
			a.logger = applog.New(applog.Config{
				Level:     level,
				Component: applog.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})
			applog.SetDefault(a.logger)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.backendName != "" {
				cfg.DataBackend = a.backendName
			}
			if a.rulesFile != "" {
				cfg.RulesFile = a.rulesFile
			}
			if a.cutoff != 0 {
				cfg.CutoffYear = a.cutoff
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.backendName, "backend", "", "data backend, overrides DATA_BACKEND")
	root.PersistentFlags().StringVar(&a.rulesFile, "rules", "", "label rules YAML file, overrides RULES_FILE")
	root.PersistentFlags().IntVar(&a.cutoff, "cutoff", 0, "drop violations before this year, overrides CUTOFF_YEAR")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at info level")

	root.AddCommand(
		summaryCmd(a),
		trendCmd(a),
		topCmd(a),
		categoriesCmd(a),
		correlationCmd(a),
		labelCmd(a),
		importCmd(a),
		exportCmd(a),
	)
	return root
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// snapshot opens the backend and prepares one dataset snapshot.
func (a *app) snapshot(ctx context.Context) (*services.Snapshot, error) {
	res, err := a.open(ctx, a.cfg, a.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
	}
	defer res.Close()

	normalizer, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	svc := services.NewDatasetService(res.Source, services.DatasetConfig{
		CutoffYear: a.cfg.CutoffYear,
		Normalizer: normalizer,
	}, nil)
	return svc.Load(ctx)
}
