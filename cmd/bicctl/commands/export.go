package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bicdash/internal/analytics"
	"bicdash/internal/export"
)

func exportCmd(a *app) *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "export FILE.xlsx",
		Short: "Write every dashboard table to one workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if export.FormatFromPath(path) != export.XLSX {
				return fmt.Errorf("export writes a workbook, %s does not end in .xlsx", path)
			}
			if err := sel.validate(); err != nil {
				return err
			}
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := emit(cmd.OutOrStdout(), path, workbookTables(sel, snap.Dataset)...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().Lookup("out").Hidden = true
	cmd.Flags().Lookup("dimension").Hidden = true
	return cmd
}

// workbookTables lays out the dashboard: headline figures, the yearly
// trend, then rankings and breakdowns for both dimensions.
func workbookTables(s *selection, ds *analytics.Dataset) []export.Table {
	records := s.records(ds)
	complaints := analytics.FilterComplaintYears(ds.Complaints, s.from, s.to)
	tables := []export.Table{
		export.SummaryTable(analytics.SummaryStats(records)),
		export.TrendTable(analytics.YearlyTrend(records, complaints)),
	}
	for _, dim := range []analytics.Dimension{analytics.ByCategory, analytics.ByAccount} {
		ranked := analytics.TopNBy(records, dim, s.met, s.n)
		top := analytics.Restrict(records, dim, analytics.Names(ranked))
		ranking := export.RankingTable(dim, ranked)
		ranking.Name = "Top " + string(dim)
		tables = append(tables,
			ranking,
			export.AggregateTable("Breakdown "+string(dim), dim, true, analytics.Aggregate(top, dim, true)),
		)
		corr := export.CorrelationTable(dim, analytics.Correlation(top, dim))
		corr.Name = "Correlation " + string(dim)
		tables = append(tables, corr)
	}
	return append(tables,
		export.ExclusionsTable("Excluded violations", ds.Excluded),
		export.ExclusionsTable("Excluded complaints", ds.ExcludedComplaints))
}
