package validator

import (
	"strings"
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   any    `json:"value,omitempty"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects the failures of one validation run.
// All methods are safe on a nil receiver.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return ""
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

// HasErrors reports whether any rule failed.
func (v *ValidationErrors) HasErrors() bool {
	return v.Count() > 0
}

// Count returns the number of failures.
func (v *ValidationErrors) Count() int {
	if v == nil {
		return 0
	}
	return len(v.Errors)
}

// First returns the first message, which handlers surface to the client.
func (v *ValidationErrors) First() string {
	if !v.HasErrors() {
		return ""
	}
	return v.Errors[0].Message
}

// FirstField returns the field of the first failure.
func (v *ValidationErrors) FirstField() string {
	if !v.HasErrors() {
		return ""
	}
	return v.Errors[0].Field
}

// Messages returns every message in order.
func (v *ValidationErrors) Messages() []string {
	if !v.HasErrors() {
		return nil
	}
	out := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		out[i] = fe.Message
	}
	return out
}

// ByField groups messages by field name.
func (v *ValidationErrors) ByField() map[string][]string {
	if !v.HasErrors() {
		return nil
	}
	out := make(map[string][]string, len(v.Errors))
	for _, fe := range v.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}
