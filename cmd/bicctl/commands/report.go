package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bicdash/internal/analytics"
	"bicdash/internal/export"
	"bicdash/internal/labels"
)

// selection holds the flags shared by the report commands.
type selection struct {
	from, to  int
	dimension string
	metric    string
	n         int
	byYear    bool
	out       string

	dim analytics.Dimension
	met analytics.Metric
}

func (s *selection) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&s.from, "from", 0, "first year to include")
	f.IntVar(&s.to, "to", 0, "last year to include")
	f.StringVarP(&s.dimension, "dimension", "d", string(analytics.ByCategory), "group by category or account")
	f.StringVarP(&s.metric, "metric", "m", string(analytics.ByCount), "rank by count or total_fine")
	f.IntVarP(&s.n, "top", "n", analytics.DefaultTopN, "number of groups, 0 for all")
	f.StringVarP(&s.out, "out", "o", "", "write to a .csv or .xlsx file instead of stdout")
}

func (s *selection) validate() error {
	if s.from < 0 || s.to < 0 {
		return fmt.Errorf("years must be positive")
	}
	if s.from != 0 && s.to != 0 && s.from > s.to {
		return fmt.Errorf("--from %d is after --to %d", s.from, s.to)
	}
	if s.n < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	var err error
	if s.dim, err = analytics.ParseDimension(s.dimension); err != nil {
		return err
	}
	if s.met, err = analytics.ParseMetric(s.metric); err != nil {
		return err
	}
	return nil
}

func (s *selection) records(ds *analytics.Dataset) []analytics.Record {
	return analytics.FilterYears(ds.Violations, s.from, s.to)
}

func (s *selection) topKeys(records []analytics.Record) []string {
	return analytics.Names(analytics.TopNBy(records, s.dim, s.met, s.n))
}

// emit prints the tables, or writes them to path in the format its
// extension names. A CSV file holds the first table only.
func emit(w io.Writer, path string, tables ...export.Table) error {
	if path == "" {
		for i, t := range tables {
			if len(tables) > 1 {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "# %s\n", t.Name)
			}
			if err := export.WriteText(w, t); err != nil {
				return err
			}
		}
		return nil
	}

	f := export.FormatFromPath(path)
	if f == export.CSV {
		tables = tables[:1]
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(out, f, tables...); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func report(a *app, use, short string, build func(*selection, *analytics.Dataset) []export.Table) *cobra.Command {
	cmd, _ := newReport(a, use, short, build)
	return cmd
}

// newReport wires a command that loads a snapshot and renders tables from it.
func newReport(a *app, use, short string, build func(*selection, *analytics.Dataset) []export.Table) (*cobra.Command, *selection) {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sel.validate(); err != nil {
				return err
			}
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), sel.out, build(sel, snap.Dataset)...)
		},
	}
	sel.bind(cmd)
	return cmd, sel
}

func summaryCmd(a *app) *cobra.Command {
	return report(a, "summary", "Headline fine figures and excluded rows",
		func(s *selection, ds *analytics.Dataset) []export.Table {
			return []export.Table{
				export.SummaryTable(analytics.SummaryStats(s.records(ds))),
				export.ExclusionsTable("Excluded violations", ds.Excluded),
				export.ExclusionsTable("Excluded complaints", ds.ExcludedComplaints),
			}
		})
}

func trendCmd(a *app) *cobra.Command {
	return report(a, "trend", "Violations, fines and complaints per year",
		func(s *selection, ds *analytics.Dataset) []export.Table {
			complaints := analytics.FilterComplaintYears(ds.Complaints, s.from, s.to)
			return []export.Table{export.TrendTable(analytics.YearlyTrend(s.records(ds), complaints))}
		})
}

func topCmd(a *app) *cobra.Command {
	return report(a, "top", "Top categories or accounts",
		func(s *selection, ds *analytics.Dataset) []export.Table {
			rows := analytics.TopNBy(s.records(ds), s.dim, s.met, s.n)
			return []export.Table{export.RankingTable(s.dim, rows)}
		})
}

func categoriesCmd(a *app) *cobra.Command {
	cmd, sel := newReport(a, "categories", "Count and fine statistics of the top groups",
		func(s *selection, ds *analytics.Dataset) []export.Table {
			records := s.records(ds)
			rows := analytics.Aggregate(analytics.Restrict(records, s.dim, s.topKeys(records)), s.dim, s.byYear)
			return []export.Table{export.AggregateTable("Breakdown", s.dim, s.byYear, rows)}
		})
	cmd.Flags().BoolVar(&sel.byYear, "by-year", false, "split each group per year")
	return cmd
}

func correlationCmd(a *app) *cobra.Command {
	return report(a, "correlation", "Yearly average fine against yearly count for the top groups",
		func(s *selection, ds *analytics.Dataset) []export.Table {
			records := s.records(ds)
			rows := analytics.Correlation(analytics.Restrict(records, s.dim, s.topKeys(records)), s.dim)
			return []export.Table{export.CorrelationTable(s.dim, rows)}
		})
}

func (a *app) normalizer() (*labels.Normalizer, error) {
	n, err := labels.FromFile(a.cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load label rules: %w", err)
	}
	return n, nil
}
