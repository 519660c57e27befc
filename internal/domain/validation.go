// Package domain holds what the marketplace entity packages share.
package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports an entity field that violates its constraints.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Reason)
}

// Invalid returns a *ValidationError for entity.field.
func Invalid(entity, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

// Required returns a *ValidationError when value is blank.
func Required(entity, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Invalid(entity, field, "is required")
	}
	return nil
}
