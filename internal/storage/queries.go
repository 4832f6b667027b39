package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const violationColumns = `id, issued_on, account_name, rule_description, fine_cents, source, sync_status, version, created_at, synced_at`

func scanViolation(row interface{ Scan(...interface{}) error }) (Violation, error) {
	var v Violation
	err := row.Scan(
		&v.ID,
		&v.IssuedOn,
		&v.AccountName,
		&v.RuleDescription,
		&v.FineCents,
		&v.Source,
		&v.SyncStatus,
		&v.Version,
		&v.CreatedAt,
		&v.SyncedAt,
	)
	return v, err
}

const createViolation = `
INSERT INTO violations (issued_on, account_name, rule_description, fine_cents, source, sync_status)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateViolationParams struct {
	IssuedOn        sql.NullString
	AccountName     string
	RuleDescription string
	FineCents       sql.NullInt64
	Source          string
	SyncStatus      string
}

func (q *Queries) CreateViolation(ctx context.Context, arg CreateViolationParams) (Violation, error) {
	res, err := q.db.ExecContext(ctx, createViolation,
		arg.IssuedOn,
		arg.AccountName,
		arg.RuleDescription,
		arg.FineCents,
		arg.Source,
		arg.SyncStatus,
	)
	if err != nil {
		return Violation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Violation{}, err
	}
	return q.GetViolation(ctx, id)
}

const getViolation = `SELECT ` + violationColumns + ` FROM violations WHERE id = ?`

func (q *Queries) GetViolation(ctx context.Context, id int64) (Violation, error) {
	return scanViolation(q.db.QueryRowContext(ctx, getViolation, id))
}

const listViolations = `SELECT ` + violationColumns + ` FROM violations ORDER BY id`

func (q *Queries) ListViolations(ctx context.Context) ([]Violation, error) {
	return q.queryViolations(ctx, listViolations)
}

const getPendingSyncViolations = `
SELECT ` + violationColumns + ` FROM violations
WHERE sync_status IN ('pending', 'error')
ORDER BY created_at, id
LIMIT ?`

func (q *Queries) GetPendingSyncViolations(ctx context.Context, limit int64) ([]Violation, error) {
	return q.queryViolations(ctx, getPendingSyncViolations, limit)
}

func (q *Queries) queryViolations(ctx context.Context, query string, args ...interface{}) ([]Violation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markViolationSynced = `
UPDATE violations SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) MarkViolationSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markViolationSynced, id)
	return err
}

const markViolationSyncError = `
UPDATE violations SET sync_status = 'error', version = version + 1
WHERE id = ?`

func (q *Queries) MarkViolationSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markViolationSyncError, id)
	return err
}

// Imported rows are replaced wholesale; so are manual rows that already
// reached the upstream sheet, since the import brings them back.
const deleteImportedViolations = `
DELETE FROM violations
WHERE source = 'import' OR (source = 'manual' AND sync_status = 'synced')`

func (q *Queries) DeleteImportedViolations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteImportedViolations)
	return err
}

const createComplaint = `INSERT INTO complaints (reported_on) VALUES (?)`

func (q *Queries) CreateComplaint(ctx context.Context, reportedOn sql.NullString) error {
	_, err := q.db.ExecContext(ctx, createComplaint, reportedOn)
	return err
}

const listComplaints = `SELECT id, reported_on FROM complaints ORDER BY id`

func (q *Queries) ListComplaints(ctx context.Context) ([]Complaint, error) {
	rows, err := q.db.QueryContext(ctx, listComplaints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Complaint
	for rows.Next() {
		var c Complaint
		if err := rows.Scan(&c.ID, &c.ReportedOn); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteComplaints = `DELETE FROM complaints`

func (q *Queries) DeleteComplaints(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteComplaints)
	return err
}

const createImport = `
INSERT INTO imports (source, violations, complaints, excluded)
VALUES (?, ?, ?, ?)`

type CreateImportParams struct {
	Source     string
	Violations int64
	Complaints int64
	Excluded   int64
}

func (q *Queries) CreateImport(ctx context.Context, arg CreateImportParams) (Import, error) {
	res, err := q.db.ExecContext(ctx, createImport, arg.Source, arg.Violations, arg.Complaints, arg.Excluded)
	if err != nil {
		return Import{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Import{}, err
	}
	row := q.db.QueryRowContext(ctx, getImport, id)
	var i Import
	err = row.Scan(&i.ID, &i.Source, &i.Violations, &i.Complaints, &i.Excluded, &i.ImportedAt)
	return i, err
}

const getImport = `
SELECT id, source, violations, complaints, excluded, imported_at
FROM imports WHERE id = ?`

const getLastImport = `
SELECT id, source, violations, complaints, excluded, imported_at
FROM imports ORDER BY imported_at DESC, id DESC LIMIT 1`

func (q *Queries) GetLastImport(ctx context.Context) (Import, error) {
	row := q.db.QueryRowContext(ctx, getLastImport)
	var i Import
	err := row.Scan(&i.ID, &i.Source, &i.Violations, &i.Complaints, &i.Excluded, &i.ImportedAt)
	return i, err
}
