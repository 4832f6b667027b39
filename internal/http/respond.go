package http

import (
	"bytes"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"bicdash/internal/export"
	applog "bicdash/internal/log"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, details ...string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Details: details})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeExport streams tables as a download. CSV carries only the first table.
func writeExport(w http.ResponseWriter, r *http.Request, f export.Format, name string, tables ...export.Table) {
	if f == export.CSV {
		tables = tables[:1]
	}
	// Buffer so a failed write can still become a JSON error.
	var buf bytes.Buffer
	if err := export.Write(&buf, f, tables...); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpExport, "format", string(f))
		respondError(w, r, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, f))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationDetails turns validator errors into one message per field.
func validationDetails(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, formatValidationError(fe))
	}
	return out
}

func formatValidationError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
