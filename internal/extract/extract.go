// Package extract derives candidate relationships from classified records.
package extract

import (
	"github.com/starford/pathgraph/internal/classify"
	"github.com/starford/pathgraph/internal/models"
)

// Edges returns the candidate edges implied by rec's fields, given its classification.
// It never inspects the store; endpoint categories are resolved by the writer.
func Edges(rec models.Record, res *classify.Result) []models.Edge {
	if res == nil || res.Name == "" {
		return nil
	}
	src := res.Name

	var out []models.Edge
	switch res.Primary {
	case models.Compound:
		if target := rec.String(models.FieldTarget); target != "" {
			out = append(out, models.Edge{Type: models.Targets, Source: src, Target: target})
		}
	case models.Gene, models.Protein:
	default:
		// Method records and unclassified records yield nothing.
		return nil
	}

	if p := rec.String(models.FieldRelatedPathway); p != "" {
		out = append(out, models.Edge{Type: models.InvolvedIn, Source: src, Target: p})
	}

	for _, d := range rec.Strings(models.FieldRelatedDiseases) {
		out = append(out, models.Edge{Type: models.AssocWith, Source: src, Target: d})
		if res.Primary == models.Compound {
			out = append(out, models.Edge{Type: models.Treats, Source: src, Target: d})
		}
	}
	return out
}
