// Package dedup accumulates entities and edges for one build and collapses
// repeats into sets.
package dedup

import (
	"sort"

	"github.com/starford/pathgraph/internal/models"
)

// Discard reasons reported by AddEdge.
const (
	DiscardNone      = ""
	DiscardEmpty     = "empty_endpoint"
	DiscardSelfLoop  = "self_loop"
	DiscardDuplicate = "duplicate"
)

// EdgeStats counts edges offered to the collector for one relationship type.
type EdgeStats struct {
	Candidates int `json:"candidates"`
	Unique     int `json:"unique"`
	Empty      int `json:"empty"`
	SelfLoops  int `json:"self_loops"`
	Duplicates int `json:"duplicates"`
}

// Collector is the in-memory state of one build. It is not safe for concurrent use.
type Collector struct {
	nodes map[models.Category]map[string]map[string]any
	edges map[models.RelType]map[models.Pair]struct{}
	stats map[models.RelType]*EdgeStats
}

// New creates an empty Collector.
func New() *Collector {
	c := &Collector{
		nodes: make(map[models.Category]map[string]map[string]any, len(models.Categories)),
		edges: make(map[models.RelType]map[models.Pair]struct{}, len(models.RelTypes)),
		stats: make(map[models.RelType]*EdgeStats, len(models.RelTypes)),
	}
	for _, cat := range models.Categories {
		c.nodes[cat] = make(map[string]map[string]any)
	}
	for _, rt := range models.RelTypes {
		c.edges[rt] = make(map[models.Pair]struct{})
		c.stats[rt] = &EdgeStats{}
	}
	return c
}

// AddEntity records e. Names are matched exactly; the first non-empty property
// set seen for a name wins.
func (c *Collector) AddEntity(e models.Entity) {
	if e.Name == "" {
		return
	}
	set, ok := c.nodes[e.Category]
	if !ok {
		return
	}
	if existing, seen := set[e.Name]; seen && existing != nil {
		return
	}
	set[e.Name] = e.Props
}

// AddEdge records e and returns the reason it was discarded, or DiscardNone.
func (c *Collector) AddEdge(e models.Edge) string {
	set, ok := c.edges[e.Type]
	if !ok {
		return DiscardEmpty
	}
	st := c.stats[e.Type]
	st.Candidates++

	switch {
	case e.Source == "" || e.Target == "":
		st.Empty++
		return DiscardEmpty
	case e.Source == e.Target:
		st.SelfLoops++
		return DiscardSelfLoop
	}

	p := models.Pair{Source: e.Source, Target: e.Target}
	if _, dup := set[p]; dup {
		st.Duplicates++
		return DiscardDuplicate
	}
	set[p] = struct{}{}
	st.Unique++
	return DiscardNone
}

// Has reports whether name was collected under category cat.
func (c *Collector) Has(cat models.Category, name string) bool {
	_, ok := c.nodes[cat][name]
	return ok
}

// Names returns the sorted unique names of category cat.
func (c *Collector) Names(cat models.Category) []string {
	set := c.nodes[cat]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Props returns the properties recorded for (cat, name), or nil.
func (c *Collector) Props(cat models.Category, name string) map[string]any {
	return c.nodes[cat][name]
}

// Pairs returns the unique pairs of relationship type rt, sorted by key.
func (c *Collector) Pairs(rt models.RelType) []models.Pair {
	set := c.edges[rt]
	out := make([]models.Pair, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Stats returns a copy of the edge counters for rt.
func (c *Collector) Stats(rt models.RelType) EdgeStats {
	if st, ok := c.stats[rt]; ok {
		return *st
	}
	return EdgeStats{}
}
