package validation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Error codes produced by the stock checks.
const (
	CodeRequired         = "REQUIRED_FIELD_MISSING"
	CodeInvalidType      = "INVALID_TYPE"
	CodeInvalidEnum      = "INVALID_ENUM_VALUE"
	CodeMinLength        = "MIN_LENGTH_VIOLATION"
	CodeMinimum          = "MINIMUM_VIOLATION"
	CodeMaximum          = "MAXIMUM_VIOLATION"
	CodeExclusiveMinimum = "EXCLUSIVE_MINIMUM_VIOLATION"
	CodeOutOfRange       = "OUT_OF_RANGE"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Check is one predicate of a field constraint. Message is shown verbatim to
// the user when Valid returns false.
type Check struct {
	Code    string
	Message string
	Valid   func(value interface{}) bool
}

// Rule binds an ordered list of checks to a field. The first failing check
// wins, so a required check belongs first.
type Rule struct {
	Field  string
	Checks []Check
}

// Schema is an ordered constraint table.
type Schema []Rule

// ValueSource resolves a field name to its current value.
type ValueSource func(field string) interface{}

// ValidateField evaluates a single field and returns its first violation.
func (s Schema) ValidateField(field string, value interface{}) *ValidationError {
	for _, rule := range s {
		if rule.Field != field {
			continue
		}
		for _, check := range rule.Checks {
			if !check.Valid(value) {
				return &ValidationError{Field: field, Message: check.Message, Code: check.Code}
			}
		}
		return nil
	}
	return nil
}

// Validate evaluates every rule in table order.
func (s Schema) Validate(values ValueSource) *ValidationResult {
	errors := []ValidationError{}
	for _, rule := range s {
		if err := s.ValidateField(rule.Field, values(rule.Field)); err != nil {
			errors = append(errors, *err)
		}
	}
	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Fields lists the constrained field names in table order.
func (s Schema) Fields() []string {
	fields := make([]string, len(s))
	for i, rule := range s {
		fields[i] = rule.Field
	}
	return fields
}

// Required fails on nil, blank strings and zero times.
func Required(message string) Check {
	return Check{
		Code:    CodeRequired,
		Message: message,
		Valid: func(value interface{}) bool {
			switch v := value.(type) {
			case nil:
				return false
			case string:
				return strings.TrimSpace(v) != ""
			case time.Time:
				return !v.IsZero()
			}
			return true
		},
	}
}

// OneOf accepts only the literal enum values. Non-strings fail.
func OneOf(message string, allowed ...string) Check {
	return Check{
		Code:    CodeInvalidEnum,
		Message: message,
		Valid: func(value interface{}) bool {
			s, ok := value.(string)
			if !ok {
				return false
			}
			for _, a := range allowed {
				if s == a {
					return true
				}
			}
			return false
		},
	}
}

func MinLength(n int, message string) Check {
	return Check{
		Code:    CodeMinLength,
		Message: message,
		Valid: func(value interface{}) bool {
			s, ok := value.(string)
			return ok && len(strings.TrimSpace(s)) >= n
		},
	}
}

func Minimum(min float64, message string) Check {
	return numberCheck(CodeMinimum, message, func(f float64) bool { return f >= min })
}

func Maximum(max float64, message string) Check {
	return numberCheck(CodeMaximum, message, func(f float64) bool { return f <= max })
}

func ExclusiveMinimum(min float64, message string) Check {
	return numberCheck(CodeExclusiveMinimum, message, func(f float64) bool { return f > min })
}

// Between accepts dates whose calendar day lies in [from, to()]. to is
// evaluated on every call.
func Between(from time.Time, to func() time.Time, message string) Check {
	return Check{
		Code:    CodeOutOfRange,
		Message: message,
		Valid: func(value interface{}) bool {
			t, ok := value.(time.Time)
			if !ok {
				return false
			}
			day := calendarDay(t)
			return !day.Before(calendarDay(from)) && !day.After(calendarDay(to()))
		},
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func numberCheck(code, message string, pred func(float64) bool) Check {
	return Check{
		Code:    code,
		Message: message,
		Valid: func(value interface{}) bool {
			f, ok := toFloat(value)
			return ok && pred(f)
		},
	}
}

// toFloat rejects NaN and ±Inf.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, finite(v)
	case float32:
		return float64(v), finite(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ByField keeps the first message per field.
func (vr *ValidationResult) ByField() map[string]string {
	out := make(map[string]string, len(vr.Errors))
	for _, err := range vr.Errors {
		if _, seen := out[err.Field]; !seen {
			out[err.Field] = err.Message
		}
	}
	return out
}

// Merge appends other's errors, skipping fields that already failed.
func (vr *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, err := range other.Errors {
		if !vr.HasErrors(err.Field) {
			vr.Errors = append(vr.Errors, err)
		}
	}
	vr.Valid = len(vr.Errors) == 0
}
