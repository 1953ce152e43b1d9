package migrate

import (
	"fmt"
	"strings"

	"github.com/pmos/brain/internal/entity"
)

// Severity classifies a ValidationError.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
	SeverityInfo  Severity = "info"
)

// ValidationError is a single validation finding, ported from
// original_source/tools/brain/entity_validator.py's ValidationError.
type ValidationError struct {
	Field    string
	Message  string
	Severity Severity
}

// ValidationResult is the outcome of validating one entity.
type ValidationResult struct {
	Path          string
	SchemaVersion string // "v1", "v2", or "unknown"
	Valid         bool
	Errors        []ValidationError
	Warnings      []ValidationError
	EntityType    entity.Type
	EntityID      string
}

// Validate checks e against the v1 or v2 schema rules, selected by
// Header.IsV2(), mirroring EntityValidator.validate_file's dispatch.
func Validate(path string, e entity.Entity) ValidationResult {
	if e.Header.IsV2() {
		return validateV2(path, e)
	}
	return validateV1(path, e)
}

func validateV2(path string, e entity.Entity) ValidationResult {
	var errs, warns []ValidationError
	h := e.Header

	if h.ID == "" {
		errs = append(errs, ValidationError{"id", "Required field 'id' is missing", SeverityError})
	}
	if h.Type == "" {
		errs = append(errs, ValidationError{"type", "Required field 'type' is missing", SeverityError})
	} else if !entity.ValidTypes[h.Type] {
		errs = append(errs, ValidationError{"type", "Invalid entity type: " + string(h.Type), SeverityError})
	}
	if h.Created.IsZero() {
		errs = append(errs, ValidationError{"created", "Required field 'created' is missing", SeverityError})
	}
	if h.Updated.IsZero() {
		errs = append(errs, ValidationError{"updated", "Required field 'updated' is missing", SeverityError})
	}
	if h.Name == "" {
		errs = append(errs, ValidationError{"name", "Required field 'name' is missing", SeverityError})
	}
	if h.Version <= 0 {
		errs = append(errs, ValidationError{"version", "Required field 'version' is missing or non-positive", SeverityError})
	}

	if h.Confidence != 0 && (h.Confidence < 0 || h.Confidence > 1) {
		errs = append(errs, ValidationError{"confidence", "confidence must be between 0 and 1", SeverityError})
	}

	for i, rel := range h.Relationships {
		if rel.Type == "" || rel.Target == "" {
			errs = append(errs, ValidationError{
				fmt.Sprintf("relationships[%d]", i), "Relationship must have 'type' and 'target'", SeverityError,
			})
		}
	}

	if description(h) == "" {
		warns = append(warns, ValidationError{"description", "Entity has no description", SeverityWarn})
	}
	if len(tags(h)) == 0 {
		warns = append(warns, ValidationError{"tags", "Entity has no tags", SeverityWarn})
	}
	if strings.TrimSpace(e.Body) == "" {
		warns = append(warns, ValidationError{"body", "Entity has no body content", SeverityWarn})
	}

	return ValidationResult{
		Path:          path,
		SchemaVersion: "v2",
		Valid:         len(errs) == 0,
		Errors:        errs,
		Warnings:      warns,
		EntityType:    h.Type,
		EntityID:      h.ID,
	}
}

func validateV1(path string, e entity.Entity) ValidationResult {
	var errs, warns []ValidationError
	h := e.Header

	if h.Type == "" && h.Name == "" {
		warns = append(warns, ValidationError{"type", "Entity missing 'type' or 'name' field", SeverityWarn})
	}
	warns = append(warns, ValidationError{"schema", "Entity is v1 format - consider migration to v2", SeverityInfo})

	return ValidationResult{
		Path:          path,
		SchemaVersion: "v1",
		Valid:         len(errs) == 0,
		Errors:        errs,
		Warnings:      warns,
		EntityType:    h.Type,
	}
}

func description(h entity.Header) string {
	if v, ok := h.Extra["description"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func tags(h entity.Header) []interface{} {
	if v, ok := h.Extra["tags"]; ok {
		if list, ok := v.([]interface{}); ok {
			return list
		}
	}
	return nil
}
