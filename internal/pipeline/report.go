package pipeline

import (
	"log/slog"
	"time"

	"github.com/starford/pathgraph/internal/dedup"
	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/writer"
)

// RecordStats counts what happened to input records.
type RecordStats struct {
	Read          int `json:"read"`
	ParseErrors   int `json:"parse_errors"`
	MissingFields int `json:"missing_fields"`
	Rejected      int `json:"rejected"`
	Dropped       int `json:"dropped"`
	Classified    int `json:"classified"`
}

// CollectorStats summarizes the deduplicated sets before writing.
type CollectorStats struct {
	Nodes map[models.Category]int             `json:"nodes"`
	Edges map[models.RelType]dedup.EdgeStats `json:"edges"`
}

// Report describes one build.
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	StartedAt   time.Time `json:"started_at"`
	Collected   time.Time `json:"collected_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	Interrupted bool      `json:"interrupted"`

	Records   RecordStats    `json:"records"`
	Collector CollectorStats `json:"collector"`

	Nodes []writer.NodeResult `json:"nodes"`
	Edges []writer.EdgeResult `json:"edges"`
	// Unresolved counts unique pairs per type whose endpoints belong to no batch.
	Unresolved map[models.RelType]int `json:"unresolved"`

	Store graphstore.Counts `json:"store"`
}

func newReport(runID, src string) *Report {
	return &Report{
		RunID:     runID,
		Source:    src,
		StartedAt: time.Now().UTC(),
		Collector: CollectorStats{
			Nodes: make(map[models.Category]int, len(models.Categories)),
			Edges: make(map[models.RelType]dedup.EdgeStats, len(models.RelTypes)),
		},
		Unresolved: make(map[models.RelType]int),
	}
}

func (r *Report) finish() {
	r.FinishedAt = time.Now().UTC()
}

// Duration returns the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NodeResult returns the result for label, if it was written.
func (r *Report) NodeResult(label models.Category) (writer.NodeResult, bool) {
	for _, n := range r.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return writer.NodeResult{}, false
}

// EdgeResult returns the result for batch b, if it was written.
func (r *Report) EdgeResult(b Batch) (writer.EdgeResult, bool) {
	for _, e := range r.Edges {
		if e.Type == b.Type && e.Start == b.Start && e.End == b.End {
			return e, true
		}
	}
	return writer.EdgeResult{}, false
}

// Failed returns the number of node and relationship writes the store rejected.
func (r *Report) Failed() int {
	n := 0
	for _, nr := range r.Nodes {
		n += nr.Failed
	}
	for _, er := range r.Edges {
		n += er.Failed
	}
	return n
}

// Log writes the summary of the build.
func (r *Report) Log(log *slog.Logger) {
	var nodes, edges []any
	for _, n := range r.Nodes {
		nodes = append(nodes, slog.Group(string(n.Label),
			slog.Int("written", n.Written()),
			slog.Int("created", n.Created),
			slog.Int("failed", n.Failed)))
	}
	for _, e := range r.Edges {
		edges = append(edges, slog.Group(Batch{Type: e.Type, Start: e.Start, End: e.End}.String(),
			slog.Int("written", e.Written()),
			slog.Int("created", e.Created),
			slog.Int("failed", e.Failed)))
	}

	log.Info("pipeline: build finished",
		slog.String("source", r.Source),
		slog.Duration("duration", r.Duration()),
		slog.Bool("interrupted", r.Interrupted),
		slog.Int("records", r.Records.Read),
		slog.Int("parse_errors", r.Records.ParseErrors),
		slog.Int("missing_fields", r.Records.MissingFields),
		slog.Int("dropped", r.Records.Dropped),
		slog.Group("nodes", nodes...),
		slog.Group("edges", edges...),
		slog.Int("failed_writes", r.Failed()),
		slog.Int64("store_nodes", r.Store.TotalNodes()),
		slog.Int64("store_relationships", r.Store.TotalRelationships()))
}
