package config

import (
	"fmt"
	"strings"
)

// FieldError is one rejected configuration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a configuration.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Addf records a violation for field.
func (v *ValidationError) Addf(field, format string, args ...any) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the violations of other, if it is a *ValidationError.
func (v *ValidationError) Merge(other error) {
	if other == nil {
		return
	}
	if ve, ok := other.(*ValidationError); ok {
		v.Fields = append(v.Fields, ve.Fields...)
		return
	}
	v.Fields = append(v.Fields, FieldError{Message: other.Error()})
}

// Err returns v when violations were recorded, nil otherwise.
func (v *ValidationError) Err() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		if f.Field == "" {
			parts[i] = f.Message
			continue
		}
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}
