package storage

import (
	"database/sql"
	"time"
)

// Sync states of a stored violation.
const (
	StatusPending  = "pending"
	StatusSynced   = "synced"
	StatusError    = "error"
	StatusImported = "imported"
)

// Row sources.
const (
	SourceImport = "import"
	SourceManual = "manual"
)

type Violation struct {
	ID              int64
	IssuedOn        sql.NullString
	AccountName     string
	RuleDescription string
	FineCents       sql.NullInt64
	Source          string
	SyncStatus      string
	Version         int64
	CreatedAt       time.Time
	SyncedAt        sql.NullTime
}

type Complaint struct {
	ID         int64
	ReportedOn sql.NullString
}

type Import struct {
	ID         int64
	Source     string
	Violations int64
	Complaints int64
	Excluded   int64
	ImportedAt time.Time
}
