package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bicdash/internal/backend"
	"bicdash/internal/services"
	"bicdash/internal/storage"
)

func importCmd(a *app) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the configured backend into the local SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.DataBackend == string(backend.SQLiteBackend) {
				return fmt.Errorf("import needs a non-sqlite --backend to read from")
			}

			res, err := a.open(ctx, a.cfg, a.logger.Logger)
			if err != nil {
				return fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
			}
			defer res.Close()

			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			importer := services.NewImporter(res.Source, a.cfg.DataBackend, repo, nil)
			if maxAge > 0 {
				ran, err := importer.RunIfStale(ctx, maxAge)
				if err != nil {
					return err
				}
				if !ran {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is younger than %v, nothing imported\n", a.cfg.SQLiteDBPath, maxAge)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", a.cfg.DataBackend, a.cfg.SQLiteDBPath)
				}
				return nil
			}

			imp, err := importer.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d violations and %d complaints from %s (%d rows excluded)\n",
				imp.Violations, imp.Complaints, imp.Source, imp.Excluded)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "skip when the last import is younger than this")
	return cmd
}
