package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"bicdash/internal/core"
	applog "bicdash/internal/log"
)

const maxViolationBody = 64 << 10

// createViolationRequest is the JSON body of POST /api/violations.
// FineAmount accepts a number or a string such as "$1,250.00".
type createViolationRequest struct {
	Date            string      `json:"date" validate:"required"`
	AccountName     string      `json:"account_name" validate:"required,max=200"`
	RuleDescription string      `json:"rule_description" validate:"max=2000"`
	FineAmount      *core.Money `json:"fine_amount" validate:"required"`
}

func (req *createViolationRequest) sanitize() {
	req.Date = sanitizeInput(req.Date)
	req.AccountName = sanitizeInput(req.AccountName)
	req.RuleDescription = sanitizeInput(req.RuleDescription)
}

type createViolationResponse struct {
	Ref        string     `json:"ref"`
	Label      string     `json:"label"`
	Date       string     `json:"date"`
	Account    string     `json:"account_name"`
	FineAmount core.Money `json:"fine_amount"`
}

// handleCreateViolation validates a new violation, hands it to the writer and
// drops the cached snapshot so the next read includes it.
func (s *Server) handleCreateViolation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if s.writer == nil {
		respondError(w, r, http.StatusNotImplemented, "backend is read-only")
		return
	}

	var req createViolationRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxViolationBody), &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondError(w, r, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	req.sanitize()
	if err := s.validate.Struct(req); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "validation failed", validationDetails(err)...)
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "validation failed", "date is not a recognised date")
		return
	}
	v := core.Violation{
		Date:    date,
		Account: req.AccountName,
		Rule:    req.RuleDescription,
		Fine:    core.NullMoney{Money: *req.FineAmount, Valid: true},
	}
	if err := v.Validate(); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}

	ref, err := s.writer.AppendViolation(ctx, v)
	s.metrics.ViolationRecorded(err)
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Violation append failed", err,
			applog.ComponentViolation, applog.OpAppend, applog.NewFields().WithViolation(v))
		respondError(w, r, http.StatusBadGateway, "could not record violation")
		return
	}
	s.datasets.Invalidate()

	label := s.datasets.Normalizer().Label(v.Rule)
	applog.NewStructuredLogger(logger).LogViolationRecorded(ctx, v, label, ref)

	respondJSON(w, r, http.StatusCreated, createViolationResponse{
		Ref:        ref,
		Label:      label,
		Date:       v.Date.String(),
		Account:    v.Account,
		FineAmount: v.Fine.Money,
	})
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
