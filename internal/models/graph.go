// Package models defines the domain types for pathgraph.
package models

// Category is an entity category; it doubles as the node label in the graph store.
type Category string

// Entity categories.
const (
	Compound Category = "Compound"
	Gene     Category = "Gene"
	Protein  Category = "Protein"
	Pathway  Category = "Pathway"
	Disease  Category = "Disease"
	Method   Category = "Method"
	Enzyme   Category = "Enzyme"
)

// Categories lists every entity category in node write order.
var Categories = []Category{Compound, Gene, Pathway, Disease, Protein, Method, Enzyme}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// RelType is a relationship type; it is used verbatim as the relationship type in the store.
type RelType string

// Relationship types.
const (
	Targets    RelType = "targets"
	InvolvedIn RelType = "involved_in"
	AssocWith  RelType = "assoc_with"
	Treats     RelType = "treats"
)

// RelTypes lists every relationship type.
var RelTypes = []RelType{Targets, InvolvedIn, AssocWith, Treats}

var relLabels = map[RelType]string{
	Targets:    "target of action",
	InvolvedIn: "participates",
	AssocWith:  "associated disease",
	Treats:     "treats",
}

// Label returns the human-readable label stored as the relationship's name property.
func (r RelType) Label() string {
	return relLabels[r]
}

// Valid reports whether r is one of the known relationship types.
func (r RelType) Valid() bool {
	_, ok := relLabels[r]
	return ok
}

// Entity is a node candidate produced by classification.
// Props holds extra node properties; it may be nil.
type Entity struct {
	Category Category       `json:"category"`
	Name     string         `json:"name"`
	Props    map[string]any `json:"props,omitempty"`
}

// Edge is a candidate relationship between two entity names.
// Endpoint categories are resolved at write time.
type Edge struct {
	Type   RelType `json:"type"`
	Source string  `json:"source"`
	Target string  `json:"target"`
}

// Pair is an ordered (source, target) name pair, the dedup key of an edge within one RelType.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Key returns the "source###target" form of the pair.
func (p Pair) Key() string {
	return p.Source + "###" + p.Target
}

// Relationship is a fully resolved edge ready to be written to the store.
type Relationship struct {
	StartLabel Category `json:"start_label"`
	StartName  string   `json:"start_name"`
	EndLabel   Category `json:"end_label"`
	EndName    string   `json:"end_name"`
	Type       RelType  `json:"type"`
	Label      string   `json:"label"`
}
