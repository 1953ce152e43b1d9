package migrate

import "github.com/pmos/brain/internal/entity"

// ValidateAll validates every entity in the store, matching
// EntityValidator.validate_all's behavior of running every file through
// Validate and collecting the results.
func ValidateAll(store *entity.Store) ([]ValidationResult, error) {
	paths, err := store.List()
	if err != nil {
		return nil, err
	}
	out := make([]ValidationResult, 0, len(paths))
	for _, p := range paths {
		e, _, err := store.Read(p)
		if err != nil {
			out = append(out, ValidationResult{
				Path:          p,
				SchemaVersion: "unknown",
				Valid:         false,
				Errors:        []ValidationError{{"file", "Cannot read file: " + err.Error(), SeverityError}},
			})
			continue
		}
		out = append(out, Validate(p, e))
	}
	return out, nil
}

// Summary aggregates ValidateAll's results the way the original tool's
// --summary flag reports them.
type Summary struct {
	Total, Valid, V1Count, V2Count, ErrorCount, WarningCount int
}

// Summarize tallies results into a Summary.
func Summarize(results []ValidationResult) Summary {
	var s Summary
	s.Total = len(results)
	for _, r := range results {
		if r.Valid {
			s.Valid++
		}
		switch r.SchemaVersion {
		case "v1":
			s.V1Count++
		case "v2":
			s.V2Count++
		}
		s.ErrorCount += len(r.Errors)
		s.WarningCount += len(r.Warnings)
	}
	return s
}
