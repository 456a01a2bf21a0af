// Package pipeline drives one build: it streams records from a source,
// classifies them, collects entities and edges, and writes the result to a
// graph store in a fixed order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/classify"
	"github.com/starford/pathgraph/internal/dedup"
	"github.com/starford/pathgraph/internal/extract"
	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/models"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/writer"
)

// Batch is one relationship batch: every unique pair of Type whose source is
// a Start node and whose target is an End node.
type Batch struct {
	Type  models.RelType
	Start models.Category
	End   models.Category
}

// EdgePlan lists relationship batches in write order.
var EdgePlan = []Batch{
	{models.Targets, models.Compound, models.Gene},
	{models.Targets, models.Compound, models.Protein},
	{models.InvolvedIn, models.Compound, models.Pathway},
	{models.InvolvedIn, models.Gene, models.Pathway},
	{models.InvolvedIn, models.Protein, models.Pathway},
	{models.AssocWith, models.Gene, models.Disease},
	{models.AssocWith, models.Protein, models.Disease},
	{models.Treats, models.Compound, models.Disease},
}

// Stages reported through Progress.
const (
	StageRecords = "records"
	StageNodes   = "nodes"
	StageEdges   = "edges"
)

// Progress is emitted while a build runs.
type Progress struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	// Batch names the node label or relationship batch; empty for the record stage.
	Batch string `json:"batch,omitempty"`
	Done  int    `json:"done"`
	Total int    `json:"total,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithProgress registers fn to receive progress updates. fn runs on the build goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithWriterConfig tunes node concurrency and retries.
func WithWriterConfig(cfg writer.Config) Option {
	return func(p *Pipeline) { p.writerCfg = cfg }
}

// Pipeline runs builds against one store. Builds must not overlap.
type Pipeline struct {
	store      graphstore.Store
	classifier *classify.Classifier
	writerCfg  writer.Config
	logger     *slog.Logger
	progress   func(Progress)
}

// New creates a Pipeline. A nil classifier selects the default vocabulary.
func New(store graphstore.Store, classifier *classify.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		classifier: classifier,
		writerCfg:  writer.Config{NodeConcurrency: 1, Retry: writer.RetryConfig{MaxTries: 1}},
		logger:     slog.Default(),
		progress:   func(Progress) {},
	}
	for _, o := range opts {
		o(p)
	}
	if p.classifier == nil {
		p.classifier = classify.New(nil)
	}
	return p
}

// Run executes one build of src. The returned report is non-nil whenever the
// source could be opened, including when ctx was cancelled mid-run; in that
// case the error wraps ctx.Err().
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*Report, error) {
	rep := newReport(uuid.NewString(), src.Path())
	log := p.logger.With(slog.String("run_id", rep.RunID))
	log.Info("pipeline: build started", slog.String("source", src.Path()))

	col, err := p.collect(ctx, src, rep, log)
	if err != nil {
		rep.finish()
		if isCancel(err) {
			rep.Interrupted = true
			log.Warn("pipeline: build interrupted while reading records", slog.Int("read", rep.Records.Read))
			return rep, fmt.Errorf("pipeline: %w", err)
		}
		return nil, fmt.Errorf("pipeline: read records: %w", err)
	}
	rep.Collected = time.Now().UTC()

	if err := p.store.EnsureSchema(ctx); err != nil {
		log.Warn("pipeline: ensure schema failed", slog.String("error", err.Error()))
	}

	w := writer.New(p.store, p.writerCfg, log)
	if err := p.writeNodes(ctx, w, col, rep); err == nil {
		err = p.writeEdges(ctx, w, col, rep, log)
	}
	if ctx.Err() != nil {
		rep.Interrupted = true
	}

	// Counts use a fresh context so an interrupted run still reports what it left behind.
	countCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if counts, err := p.store.Counts(countCtx); err != nil {
		log.Warn("pipeline: read store counts failed", slog.String("error", err.Error()))
	} else {
		rep.Store = counts
	}

	rep.finish()
	rep.Log(log)
	if rep.Interrupted {
		return rep, fmt.Errorf("pipeline: %w", ctx.Err())
	}
	return rep, nil
}

// Collect classifies every record of src into a fresh collector without
// touching the store.
func (p *Pipeline) Collect(ctx context.Context, src source.Source) (*dedup.Collector, RecordStats, error) {
	rep := newReport("", src.Path())
	col, err := p.collect(ctx, src, rep, p.logger)
	return col, rep.Records, err
}

func (p *Pipeline) collect(ctx context.Context, src source.Source, rep *Report, log *slog.Logger) (*dedup.Collector, error) {
	col := dedup.New()
	err := src.Each(ctx, func(it source.Item) error {
		rep.Records.Read++
		if it.Err != nil {
			rep.Records.ParseErrors++
			log.Error("pipeline: skip malformed record",
				slog.Int("line", it.Line),
				slog.String("error", it.Err.Error()))
			return nil
		}

		res, err := p.classifier.Classify(it.Record)
		if err != nil {
			if errors.Is(err, apperr.ErrMissingField) {
				rep.Records.MissingFields++
			} else {
				rep.Records.Rejected++
			}
			log.Error("pipeline: skip record",
				slog.Int("line", it.Line),
				slog.String("error", err.Error()))
			return nil
		}
		if res.Dropped() {
			rep.Records.Dropped++
			return nil
		}
		rep.Records.Classified++

		for _, e := range res.Entities {
			col.AddEntity(e)
		}
		for _, e := range extract.Edges(it.Record, res) {
			if reason := col.AddEdge(e); reason != dedup.DiscardNone && reason != dedup.DiscardDuplicate {
				log.Debug("pipeline: edge discarded",
					slog.Int("line", it.Line),
					slog.String("type", string(e.Type)),
					slog.String("reason", reason))
			}
		}
		p.progress(Progress{RunID: rep.RunID, Stage: StageRecords, Done: rep.Records.Read})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, cat := range models.Categories {
		rep.Collector.Nodes[cat] = len(col.Names(cat))
	}
	for _, rt := range models.RelTypes {
		rep.Collector.Edges[rt] = col.Stats(rt)
	}
	return col, nil
}

func (p *Pipeline) writeNodes(ctx context.Context, w *writer.Writer, col *dedup.Collector, rep *Report) error {
	for i, cat := range models.Categories {
		if err := ctx.Err(); err != nil {
			for _, rest := range models.Categories[i:] {
				rep.Nodes = append(rep.Nodes, writer.NodeResult{Label: rest, Skipped: len(col.Names(rest))})
			}
			return err
		}
		names := col.Names(cat)
		nodes := make([]writer.Node, 0, len(names))
		for _, n := range names {
			nodes = append(nodes, writer.Node{Name: n, Props: col.Props(cat, n)})
		}
		res := w.WriteNodes(ctx, cat, nodes)
		rep.Nodes = append(rep.Nodes, res)
		p.progress(Progress{RunID: rep.RunID, Stage: StageNodes, Batch: string(cat), Done: res.Attempted, Total: len(nodes)})
	}
	return nil
}

func (p *Pipeline) writeEdges(ctx context.Context, w *writer.Writer, col *dedup.Collector, rep *Report, log *slog.Logger) error {
	plan := resolve(col)
	for _, rt := range models.RelTypes {
		if n := len(plan.unresolved[rt]); n > 0 {
			rep.Unresolved[rt] = n
			log.Info("pipeline: edges without matching endpoints",
				slog.String("type", string(rt)),
				slog.Int("count", n),
				slog.String("sample", plan.unresolved[rt][0].Key()))
		}
	}

	for i, b := range EdgePlan {
		pairs := plan.pairs[i]
		if err := ctx.Err(); err != nil {
			for j, rest := range EdgePlan[i:] {
				rep.Edges = append(rep.Edges, writer.EdgeResult{
					Start: rest.Start, End: rest.End, Type: rest.Type, Skipped: len(plan.pairs[i+j]),
				})
			}
			return err
		}
		res := w.WriteRelationships(ctx, b.Start, b.End, pairs, b.Type, b.Type.Label())
		rep.Edges = append(rep.Edges, res)
		p.progress(Progress{RunID: rep.RunID, Stage: StageEdges, Batch: b.String(), Done: res.Attempted, Total: len(pairs)})
	}
	return nil
}

// String renders the batch as "Compound-targets->Gene".
func (b Batch) String() string {
	return string(b.Start) + "-" + string(b.Type) + "->" + string(b.End)
}

type resolution struct {
	// pairs is indexed like EdgePlan.
	pairs      [][]models.Pair
	unresolved map[models.RelType][]models.Pair
}

// resolve assigns every unique pair to the batches whose endpoint categories
// both contain it. Pairs no batch can hold are unresolved.
func resolve(col *dedup.Collector) resolution {
	r := resolution{
		pairs:      make([][]models.Pair, len(EdgePlan)),
		unresolved: make(map[models.RelType][]models.Pair),
	}
	for _, rt := range models.RelTypes {
		for _, pair := range col.Pairs(rt) {
			matched := false
			for i, b := range EdgePlan {
				if b.Type != rt || !col.Has(b.Start, pair.Source) || !col.Has(b.End, pair.Target) {
					continue
				}
				r.pairs[i] = append(r.pairs[i], pair)
				matched = true
			}
			if !matched {
				r.unresolved[rt] = append(r.unresolved[rt], pair)
			}
		}
	}
	return r
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
