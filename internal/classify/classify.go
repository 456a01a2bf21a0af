// Package classify maps input records to entity categories.
//
// Classification runs as a list of independent passes over the same record.
// The primary pass assigns at most one of Compound, Gene, Protein or Method;
// the disease, enzyme and pathway passes contribute extra entities regardless
// of the primary outcome, so one record can feed several categories.
package classify

import (
	"fmt"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/vocab"
)

// Result is the classification of one record.
type Result struct {
	// Name is the record's name; empty when the record has none.
	Name string
	// Primary is the record's own category, or "" when no primary check matched.
	Primary models.Category
	// Entities holds every entity contributed by the record, primary first.
	Entities []models.Entity
}

// Dropped reports whether the record contributed nothing.
func (r *Result) Dropped() bool {
	return len(r.Entities) == 0
}

type pass func(rec models.Record, res *Result) error

// Classifier applies the vocabulary to records. It holds no mutable state.
type Classifier struct {
	vocab  *vocab.Vocabulary
	passes []pass
}

// New creates a Classifier backed by v; a nil v selects the default vocabulary.
func New(v *vocab.Vocabulary) *Classifier {
	if v == nil {
		v = vocab.Default()
	}
	c := &Classifier{vocab: v}
	c.passes = []pass{c.primaryPass, c.diseasePass, c.enzymePass, c.pathwayPass}
	return c
}

// Classify runs every pass over rec. It returns an error wrapping
// apperr.ErrMissingField when a matched record has no name; the partial
// result must then be discarded.
func (c *Classifier) Classify(rec models.Record) (*Result, error) {
	res := &Result{Name: rec.Name()}
	for _, p := range c.passes {
		if err := p(rec, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// PrimaryCategory evaluates the ordered primary checks and returns "" on no match.
func (c *Classifier) PrimaryCategory(rec models.Record) models.Category {
	typ := rec.Type()
	switch {
	case c.vocab.Has(models.Compound, typ):
		return models.Compound
	case c.vocab.Has(models.Gene, typ):
		return models.Gene
	case rec.Has(models.FieldUniprotID) || c.vocab.Has(models.Protein, typ):
		return models.Protein
	case c.vocab.Has(models.Method, typ):
		return models.Method
	}
	return ""
}

func (c *Classifier) primaryPass(rec models.Record, res *Result) error {
	cat := c.PrimaryCategory(rec)
	if cat == "" {
		return nil
	}
	if res.Name == "" {
		return missingName(rec, cat)
	}
	res.Primary = cat
	res.Entities = append(res.Entities, models.Entity{
		Category: cat,
		Name:     res.Name,
		Props:    nodeProps(rec),
	})
	return nil
}

func (c *Classifier) diseasePass(rec models.Record, res *Result) error {
	for _, d := range rec.Strings(models.FieldRelatedDiseases) {
		res.Entities = append(res.Entities, models.Entity{Category: models.Disease, Name: d})
	}
	return nil
}

func (c *Classifier) enzymePass(rec models.Record, res *Result) error {
	for _, mod := range rec.Maps(models.FieldModifications) {
		if e := models.Record(mod).String(models.FieldEnzyme); e != "" {
			res.Entities = append(res.Entities, models.Entity{Category: models.Enzyme, Name: e})
		}
	}
	if c.vocab.Has(models.Enzyme, rec.Type()) {
		if res.Name == "" {
			return missingName(rec, models.Enzyme)
		}
		res.Entities = append(res.Entities, models.Entity{Category: models.Enzyme, Name: res.Name})
	}
	return nil
}

// pathwayPass collects the pathway of entities that can take part in one.
func (c *Classifier) pathwayPass(rec models.Record, res *Result) error {
	switch res.Primary {
	case models.Compound, models.Gene, models.Protein:
	default:
		return nil
	}
	if p := rec.String(models.FieldRelatedPathway); p != "" {
		res.Entities = append(res.Entities, models.Entity{Category: models.Pathway, Name: p})
	}
	return nil
}

func missingName(rec models.Record, cat models.Category) error {
	return fmt.Errorf("classify: %w: %q record of type %q has no name",
		apperr.ErrMissingField, cat, rec.Type())
}

// nodeProps copies every field except name; they become node properties.
func nodeProps(rec models.Record) map[string]any {
	if len(rec) <= 1 {
		return nil
	}
	props := make(map[string]any, len(rec)-1)
	for k, v := range rec {
		if k == models.FieldName || v == nil {
			continue
		}
		props[k] = v
	}
	return props
}
