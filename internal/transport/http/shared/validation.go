package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"elms/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate returns the shared validator; field names come from json tags.
func Validate() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeJSON decodes the body into dst and validates it. It writes the
// failure response itself and reports whether the handler may continue.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	requestID := api.RequestIDFrom(r)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_json", "request body is required", requestID)
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", requestID)
		}
		return false
	}
	return ValidateStruct(w, requestID, dst)
}

func ValidateStruct(w http.ResponseWriter, requestID string, dst any) bool {
	if err := Validate().Struct(dst); err != nil {
		FailValidation(w, requestID, ValidationIssues(err))
		return false
	}
	return true
}

// ValidationIssues maps validator errors to field issues.
func ValidationIssues(err error) []ValidationIssue {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []ValidationIssue{{Field: "body", Reason: "is invalid"}}
	}
	issues := make([]ValidationIssue, 0, len(errs))
	for _, e := range errs {
		issues = append(issues, ValidationIssue{Field: e.Field(), Reason: reasonFor(e)})
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues
}

func reasonFor(e validator.FieldError) string {
	label := formatFieldName(e.Field())
	switch e.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "min":
		return label + " must be at least " + e.Param()
	case "max":
		return label + " must be at most " + e.Param()
	case "oneof":
		return label + " must be one of: " + e.Param()
	case "datetime":
		return label + " must be a date in YYYY-MM-DD format"
	default:
		return label + " is invalid"
	}
}

// formatFieldName turns startDate or start_date into "Start Date".
func formatFieldName(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == '_' {
			b.WriteRune(' ')
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return cases.Title(language.English).String(b.String())
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(
		w,
		http.StatusBadRequest,
		"validation_error",
		"payload validation failed",
		map[string]any{"fields": issues},
		requestID,
	)
}
