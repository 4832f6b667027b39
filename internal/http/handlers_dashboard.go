package http

import (
	"net/http"
	"time"

	"bicdash/internal/analytics"
	"bicdash/internal/core"
	"bicdash/internal/export"
	applog "bicdash/internal/log"
	"bicdash/internal/services"
)

// load parses the selection and fetches the snapshot, writing the error
// response itself when either fails.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (Selection, *services.Snapshot, bool) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid query parameters", selectionProblems(err)...)
		return Selection{}, nil, false
	}
	snap, err := s.datasets.Snapshot(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Dataset unavailable",
			applog.FieldError, err, applog.FieldOperation, applog.OpRead)
		respondError(w, r, http.StatusServiceUnavailable, "dataset unavailable")
		return Selection{}, nil, false
	}
	return sel, snap, true
}

type summaryResponse struct {
	Summary            analytics.Summary `json:"summary"`
	From               int               `json:"from,omitempty"`
	To                 int               `json:"to,omitempty"`
	Years              []int             `json:"years"`
	CutoffYear         int               `json:"cutoff_year"`
	ViolationsRead     int               `json:"violations_read"`
	ComplaintsRead     int               `json:"complaints_read"`
	Excluded           core.Exclusions   `json:"excluded"`
	ExcludedComplaints core.Exclusions   `json:"excluded_complaints"`
	LoadedAt           time.Time         `json:"loaded_at"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	summary := analytics.SummaryStats(sel.Records(snap.Dataset))
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "summary",
			export.SummaryTable(summary),
			export.ExclusionsTable("Excluded violations", snap.Excluded),
			export.ExclusionsTable("Excluded complaints", snap.ExcludedComplaints))
		return
	}
	respondJSON(w, r, http.StatusOK, summaryResponse{
		Summary:            summary,
		From:               sel.From,
		To:                 sel.To,
		Years:              snap.Years(),
		CutoffYear:         snap.Cutoff,
		ViolationsRead:     snap.ViolationsRead,
		ComplaintsRead:     snap.ComplaintsRead,
		Excluded:           snap.Excluded,
		ExcludedComplaints: snap.ExcludedComplaints,
		LoadedAt:           snap.LoadedAt,
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	complaints := analytics.FilterComplaintYears(snap.Complaints, sel.From, sel.To)
	points := analytics.YearlyTrend(sel.Records(snap.Dataset), complaints)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "trend", export.TrendTable(points))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"points": points})
}

type topResponse struct {
	Dimension analytics.Dimension   `json:"dimension"`
	Metric    analytics.Metric      `json:"metric"`
	Rows      []analytics.RankedRow `json:"rows"`
	Share     analytics.ShareResult `json:"share"`
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	records := sel.Records(snap.Dataset)
	rows := analytics.TopNBy(records, sel.Dimension, sel.Metric, sel.N)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "top_"+string(sel.Dimension), export.RankingTable(sel.Dimension, rows))
		return
	}
	respondJSON(w, r, http.StatusOK, topResponse{
		Dimension: sel.Dimension,
		Metric:    sel.Metric,
		Rows:      rows,
		Share:     analytics.Share(records, sel.Dimension, analytics.Names(rows)),
	})
}

// handleCategories breaks the top N groups down by count and fine
// statistics, optionally per year.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	records := sel.Records(snap.Dataset)
	rows := analytics.Aggregate(analytics.Restrict(records, sel.Dimension, sel.topKeys(records)), sel.Dimension, sel.ByYear)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "breakdown_"+string(sel.Dimension),
			export.AggregateTable("Breakdown", sel.Dimension, sel.ByYear, rows))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"dimension": sel.Dimension,
		"by_year":   sel.ByYear,
		"rows":      rows,
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	records := sel.Records(snap.Dataset)
	rows := analytics.Correlation(analytics.Restrict(records, sel.Dimension, sel.topKeys(records)), sel.Dimension)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "correlation_"+string(sel.Dimension), export.CorrelationTable(sel.Dimension, rows))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"dimension": sel.Dimension,
		"rows":      rows,
	})
}

// handleAccountTimeseries returns yearly figures for the top N accounts.
// The dimension parameter is ignored.
func (s *Server) handleAccountTimeseries(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	sel.Dimension = analytics.ByAccount
	records := sel.Records(snap.Dataset)
	keys := sel.topKeys(records)
	rows := analytics.Aggregate(analytics.Restrict(records, analytics.ByAccount, keys), analytics.ByAccount, true)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "account_timeseries",
			export.AggregateTable("Accounts", analytics.ByAccount, true, rows))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"accounts": keys,
		"rows":     rows,
	})
}

// handleRecords lists the prepared violations in the selected years.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sel, snap, ok := s.load(w, r)
	if !ok {
		return
	}
	records := sel.Records(snap.Dataset)
	if sel.Format != "" {
		writeExport(w, r, sel.Format, "records", export.RecordsTable(records))
		return
	}
	type record struct {
		Date       string     `json:"date"`
		Account    string     `json:"account_name"`
		Rule       string     `json:"rule_description"`
		Label      string     `json:"label"`
		FineAmount core.Money `json:"fine_amount"`
	}
	out := make([]record, len(records))
	for i, rec := range records {
		out[i] = record{Date: rec.Date.String(), Account: rec.Account, Rule: rec.Rule, Label: rec.Label, FineAmount: rec.Fine.Money}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"count": len(out), "records": out})
}

// handleLabels lists the label rules, or labels the raw query parameter.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	n := s.datasets.Normalizer()
	if q := r.URL.Query(); q.Has("raw") {
		raw := q.Get("raw")
		respondJSON(w, r, http.StatusOK, map[string]string{"raw": raw, "label": n.Label(raw)})
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"rules": n.Rules()})
}
