package models

import "strings"

// Record field names.
const (
	FieldName            = "name"
	FieldType            = "type"
	FieldTarget          = "target"
	FieldRelatedPathway  = "related_pathway"
	FieldRelatedDiseases = "related_diseases"
	FieldModifications   = "modifications"
	FieldUniprotID       = "uniprot_id"
	FieldEnzyme          = "enzyme"
)

// Record is one decoded input record. It is treated as read-only once decoded.
type Record map[string]any

// Has reports whether the field is present, whatever its value.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the trimmed string value of field, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return strings.TrimSpace(s)
}

// Name returns the record's name.
func (r Record) Name() string { return r.String(FieldName) }

// Type returns the record's declared type label.
func (r Record) Type() string { return r.String(FieldType) }

// Strings returns the non-empty string elements of a sequence field.
// A plain string value is treated as a one-element sequence.
func (r Record) Strings(field string) []string {
	switch v := r[field].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

// Maps returns the mapping elements of a sequence field.
func (r Record) Maps(field string) []map[string]any {
	switch v := r[field].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
