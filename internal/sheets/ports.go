package sheets

import (
	"context"

	"bicdash/internal/core"
	"bicdash/internal/tabular"
)

// Ports for outbound adapters.
type (
	// ViolationReader loads the full violations table.
	ViolationReader interface {
		ListViolations(ctx context.Context) (tabular.Violations, error)
	}

	// ComplaintReader loads the full complaints table.
	ComplaintReader interface {
		ListComplaints(ctx context.Context) (tabular.Complaints, error)
	}

	// ViolationWriter appends one violation row to the upstream table.
	ViolationWriter interface {
		AppendViolation(ctx context.Context, v core.Violation) (rowRef string, err error)
	}

	// Source is a readable dataset backend.
	Source interface {
		ViolationReader
		ComplaintReader
	}
)
