// Package graphstore persists entities and relationships as a labeled property graph.
//
// Two backends are provided: Neo4j for production graphs and an embedded
// SQLite store for local runs and tests. Both enforce uniqueness on
// (label, name) and merge on match, so repeated builds are idempotent.
package graphstore

import (
	"context"
	"fmt"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

// Store is the graph store boundary used by the writer.
// Property maps passed in must hold scalar values only, and must include "name".
type Store interface {
	// EnsureSchema installs the (label, name) uniqueness constraints.
	EnsureSchema(ctx context.Context) error
	// UpsertNode creates the node unless one with the same label and name exists.
	// It reports whether a node was created.
	UpsertNode(ctx context.Context, label models.Category, props map[string]any) (bool, error)
	// Relate matches both endpoints by (label, name) and merges the relationship.
	// A missing endpoint yields an error wrapping apperr.ErrNotFound.
	Relate(ctx context.Context, rel models.Relationship) (bool, error)
	// Counts returns node counts per label and relationship counts per type.
	Counts(ctx context.Context) (Counts, error)
	Close(ctx context.Context) error
}

// Counts summarizes the persisted graph.
type Counts struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// TotalNodes sums Nodes.
func (c Counts) TotalNodes() int64 {
	var n int64
	for _, v := range c.Nodes {
		n += v
	}
	return n
}

// TotalRelationships sums Relationships.
func (c Counts) TotalRelationships() int64 {
	var n int64
	for _, v := range c.Relationships {
		n += v
	}
	return n
}

func checkLabel(label models.Category) error {
	if !label.Valid() {
		return fmt.Errorf("graphstore: %w: label %q", apperr.ErrInvalidLabel, label)
	}
	return nil
}

func checkRelationship(rel models.Relationship) error {
	if err := checkLabel(rel.StartLabel); err != nil {
		return err
	}
	if err := checkLabel(rel.EndLabel); err != nil {
		return err
	}
	if !rel.Type.Valid() {
		return fmt.Errorf("graphstore: %w: relationship type %q", apperr.ErrInvalidLabel, rel.Type)
	}
	return nil
}

func nodeName(props map[string]any) (string, error) {
	name, _ := props["name"].(string)
	if name == "" {
		return "", fmt.Errorf("graphstore: %w: node name", apperr.ErrMissingField)
	}
	return name, nil
}
