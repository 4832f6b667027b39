package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bicdash/internal/core"
	"bicdash/internal/tabular"
)

// Seed file names looked up by NewFromFiles.
const (
	ViolationsFile = "violations.csv"
	ComplaintsFile = "complaints.csv"
)

type Store struct {
	mu                 sync.Mutex
	violations         []core.Violation
	complaints         []core.Complaint
	excludedViolations core.Exclusions
	excludedComplaints core.Exclusions
	read               int
}

func New(violations []core.Violation, complaints []core.Complaint) *Store {
	return &Store{
		violations:         append([]core.Violation(nil), violations...),
		complaints:         append([]core.Complaint(nil), complaints...),
		excludedViolations: core.Exclusions{},
		excludedComplaints: core.Exclusions{},
		read:               len(violations),
	}
}

// NewFromFiles seeds the store from CSV exports in base. Missing files give
// an empty table; a file with the wrong header is an error.
func NewFromFiles(base string) (*Store, error) {
	s := New(nil, nil)
	if rows, ok, err := readCSV(filepath.Join(base, ViolationsFile)); err != nil {
		return nil, err
	} else if ok {
		res, err := tabular.ParseViolations(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ViolationsFile, err)
		}
		s.violations, s.excludedViolations, s.read = res.Rows, res.Excluded, res.Read
	}
	if rows, ok, err := readCSV(filepath.Join(base, ComplaintsFile)); err != nil {
		return nil, err
	} else if ok {
		res, err := tabular.ParseComplaints(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ComplaintsFile, err)
		}
		s.complaints, s.excludedComplaints = res.Rows, res.Excluded
	}
	return s, nil
}

// ListViolations returns a copy of the stored violations.
func (s *Store) ListViolations(_ context.Context) (tabular.Violations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex := core.Exclusions{}
	ex.Merge(s.excludedViolations)
	return tabular.Violations{
		Rows:     append([]core.Violation(nil), s.violations...),
		Read:     s.read,
		Excluded: ex,
	}, nil
}

// ListComplaints returns a copy of the stored complaints.
func (s *Store) ListComplaints(_ context.Context) (tabular.Complaints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex := core.Exclusions{}
	ex.Merge(s.excludedComplaints)
	return tabular.Complaints{
		Rows:     append([]core.Complaint(nil), s.complaints...),
		Read:     len(s.complaints) + ex.Total(),
		Excluded: ex,
	}, nil
}

// AppendViolation stores the violation and returns a synthetic row reference.
func (s *Store) AppendViolation(_ context.Context, v core.Violation) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	s.read++
	return fmt.Sprintf("mem:%d", len(s.violations)), nil
}

func readCSV(path string) ([][]string, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	rows, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rows, true, nil
}
