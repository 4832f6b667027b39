package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bicdash/internal/core"
	ports "bicdash/internal/sheets"
	"bicdash/internal/tabular"

	_ "modernc.org/sqlite"
)

var (
	_ ports.Source          = (*SQLiteRepository)(nil)
	_ ports.ViolationWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendViolation stores a manually recorded violation as pending sync and
// returns its id.
func (r *SQLiteRepository) AppendViolation(ctx context.Context, v core.Violation) (string, error) {
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	row, err := r.queries.CreateViolation(ctx, CreateViolationParams{
		IssuedOn:        nullString(v.Date.String()),
		AccountName:     v.Account,
		RuleDescription: v.Rule,
		FineCents:       nullCents(v.Fine),
		Source:          SourceManual,
		SyncStatus:      StatusPending,
	})
	if err != nil {
		return "", fmt.Errorf("create violation: %w", err)
	}

	slog.InfoContext(ctx, "Violation saved to SQLite",
		"id", row.ID,
		"account", row.AccountName,
		"fine_cents", row.FineCents.Int64,
		"issued_on", row.IssuedOn.String)

	return strconv.FormatInt(row.ID, 10), nil
}

// ListViolations returns every stored violation, imported and manual.
func (r *SQLiteRepository) ListViolations(ctx context.Context) (tabular.Violations, error) {
	rows, err := r.queries.ListViolations(ctx)
	if err != nil {
		return tabular.Violations{}, fmt.Errorf("list violations: %w", err)
	}
	out := tabular.Violations{Rows: make([]core.Violation, 0, len(rows)), Excluded: core.Exclusions{}}
	for _, row := range rows {
		out.Read++
		v, err := row.toCore()
		if err != nil {
			out.Excluded.Add(core.ReasonFor(err))
			continue
		}
		out.Rows = append(out.Rows, v)
	}
	return out, nil
}

// ListComplaints returns every stored complaint.
func (r *SQLiteRepository) ListComplaints(ctx context.Context) (tabular.Complaints, error) {
	rows, err := r.queries.ListComplaints(ctx)
	if err != nil {
		return tabular.Complaints{}, fmt.Errorf("list complaints: %w", err)
	}
	out := tabular.Complaints{Rows: make([]core.Complaint, 0, len(rows)), Excluded: core.Exclusions{}}
	for _, row := range rows {
		out.Read++
		var c core.Complaint
		if row.ReportedOn.Valid {
			d, err := core.ParseDate(row.ReportedOn.String)
			if err != nil {
				out.Excluded.Add(core.ReasonFor(err))
				continue
			}
			c.Date = d
		}
		out.Rows = append(out.Rows, c)
	}
	return out, nil
}

// StoredViolation is a violation with its sync bookkeeping.
type StoredViolation struct {
	ID         int64
	Violation  core.Violation
	Source     string
	SyncStatus string
	Version    int64
	CreatedAt  time.Time
}

// GetViolation retrieves a single violation by ID.
func (r *SQLiteRepository) GetViolation(ctx context.Context, id int64) (*StoredViolation, error) {
	row, err := r.queries.GetViolation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get violation by id: %w", err)
	}
	v, err := row.toCore()
	if err != nil {
		return nil, fmt.Errorf("violation %d: %w", id, err)
	}
	return &StoredViolation{
		ID:         row.ID,
		Violation:  v,
		Source:     row.Source,
		SyncStatus: row.SyncStatus,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// PendingSyncViolation is the minimal data needed for a sync queue message.
type PendingSyncViolation struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

// GetPendingSyncViolations returns manual violations not yet in the upstream sheet.
func (r *SQLiteRepository) GetPendingSyncViolations(ctx context.Context, limit int) ([]PendingSyncViolation, error) {
	rows, err := r.queries.GetPendingSyncViolations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync violations: %w", err)
	}
	out := make([]PendingSyncViolation, len(rows))
	for i, row := range rows {
		out[i] = PendingSyncViolation{ID: row.ID, Version: row.Version, CreatedAt: row.CreatedAt}
	}
	return out, nil
}

// MarkSynced marks a violation as successfully synced.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkViolationSynced(ctx, id); err != nil {
		return fmt.Errorf("mark violation synced: %w", err)
	}
	slog.InfoContext(ctx, "Violation marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a violation as having sync errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkViolationSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark violation sync error: %w", err)
	}
	slog.WarnContext(ctx, "Violation marked with sync error", "id", id)
	return nil
}

// ImportDataset replaces the imported tables with a fresh upstream copy in
// one transaction. Manual rows still waiting for sync are kept.
func (r *SQLiteRepository) ImportDataset(ctx context.Context, source string, vs tabular.Violations, cs tabular.Complaints) (Import, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if err := q.DeleteImportedViolations(ctx); err != nil {
		return Import{}, fmt.Errorf("clear violations: %w", err)
	}
	if err := q.DeleteComplaints(ctx); err != nil {
		return Import{}, fmt.Errorf("clear complaints: %w", err)
	}
	for _, v := range vs.Rows {
		_, err := q.CreateViolation(ctx, CreateViolationParams{
			IssuedOn:        nullString(v.Date.String()),
			AccountName:     v.Account,
			RuleDescription: v.Rule,
			FineCents:       nullCents(v.Fine),
			Source:          SourceImport,
			SyncStatus:      StatusImported,
		})
		if err != nil {
			return Import{}, fmt.Errorf("insert violation: %w", err)
		}
	}
	for _, c := range cs.Rows {
		if err := q.CreateComplaint(ctx, nullString(c.Date.String())); err != nil {
			return Import{}, fmt.Errorf("insert complaint: %w", err)
		}
	}
	imp, err := q.CreateImport(ctx, CreateImportParams{
		Source:     source,
		Violations: int64(len(vs.Rows)),
		Complaints: int64(len(cs.Rows)),
		Excluded:   int64(vs.Excluded.Total() + cs.Excluded.Total()),
	})
	if err != nil {
		return Import{}, fmt.Errorf("record import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Import{}, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported into SQLite",
		"source", source,
		"violations", imp.Violations,
		"complaints", imp.Complaints,
		"excluded", imp.Excluded)
	return imp, nil
}

// LastImport returns the most recent import; ok is false if none ran yet.
func (r *SQLiteRepository) LastImport(ctx context.Context) (imp Import, ok bool, err error) {
	imp, err = r.queries.GetLastImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("get last import: %w", err)
	}
	return imp, true, nil
}

func (v Violation) toCore() (core.Violation, error) {
	out := core.Violation{Account: v.AccountName, Rule: v.RuleDescription}
	if v.IssuedOn.Valid {
		d, err := core.ParseDate(v.IssuedOn.String)
		if err != nil {
			return core.Violation{}, err
		}
		out.Date = d
	}
	if v.FineCents.Valid {
		out.Fine = core.NewFine(v.FineCents.Int64)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullCents(m core.NullMoney) sql.NullInt64 {
	return sql.NullInt64{Int64: m.Money.Cents, Valid: m.Valid}
}
