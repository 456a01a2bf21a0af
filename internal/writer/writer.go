// Package writer persists deduplicated entities and relationships into a graph store.
//
// Every node and relationship write is independent: a failure is logged with
// the offending key, counted, and the batch moves on. Writes go through a
// bounded exponential-backoff retry unless the store reports a permanent error.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/models"
)

// maxFailureSamples caps the failures kept on a result; the counters stay exact.
const maxFailureSamples = 10

// RetryConfig bounds the retry policy applied to each store write.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// Config tunes the writer.
type Config struct {
	// NodeConcurrency bounds parallel node writes within one label.
	NodeConcurrency int
	Retry           RetryConfig
}

// Node is one node to upsert.
type Node struct {
	Name  string
	Props map[string]any
}

// Failure describes one rejected write.
type Failure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// NodeResult summarizes one node batch.
type NodeResult struct {
	Label     models.Category `json:"label"`
	Attempted int             `json:"attempted"`
	Created   int             `json:"created"`
	Matched   int             `json:"matched"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Failures  []Failure       `json:"failures,omitempty"`
}

// Written returns the number of nodes present in the store after the batch.
func (r NodeResult) Written() int { return r.Created + r.Matched }

// EdgeResult summarizes one relationship batch.
type EdgeResult struct {
	Start     models.Category `json:"start"`
	End       models.Category `json:"end"`
	Type      models.RelType  `json:"type"`
	Attempted int             `json:"attempted"`
	Created   int             `json:"created"`
	Matched   int             `json:"matched"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Failures  []Failure       `json:"failures,omitempty"`
}

// Written returns the number of relationships present in the store after the batch.
func (r EdgeResult) Written() int { return r.Created + r.Matched }

// Writer writes batches into a graph store.
type Writer struct {
	store  graphstore.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a Writer.
func New(store graphstore.Store, cfg Config, logger *slog.Logger) *Writer {
	if cfg.NodeConcurrency <= 0 {
		cfg.NodeConcurrency = 1
	}
	if cfg.Retry.MaxTries == 0 {
		cfg.Retry.MaxTries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, cfg: cfg, logger: logger}
}

// WriteNodes upserts one node per entry with the given label.
// Writes run in parallel up to Config.NodeConcurrency; the call returns once all finished.
func (w *Writer) WriteNodes(ctx context.Context, label models.Category, nodes []Node) NodeResult {
	res := NodeResult{Label: label}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(w.cfg.NodeConcurrency)
	for i, n := range nodes {
		if ctx.Err() != nil {
			mu.Lock()
			res.Skipped = len(nodes) - i
			mu.Unlock()
			w.logger.Warn("writer: node batch interrupted",
				slog.String("label", string(label)),
				slog.Int("skipped", len(nodes)-i))
			break
		}
		g.Go(func() error {
			props := SerializeProps(n.Name, n.Props)
			created, err := w.retry(ctx, func() (bool, error) {
				return w.store.UpsertNode(ctx, label, props)
			})

			mu.Lock()
			defer mu.Unlock()
			res.Attempted++
			if err != nil {
				res.Failed++
				res.addFailure(n.Name, err)
				w.logger.Warn("writer: create node failed",
					slog.String("label", string(label)),
					slog.String("name", n.Name),
					slog.String("error", fmt.Errorf("%w: %w", apperr.ErrStoreWrite, err).Error()))
				return nil
			}
			if created {
				res.Created++
			} else {
				res.Matched++
			}
			w.logger.Debug("writer: node written",
				slog.String("label", string(label)),
				slog.String("name", n.Name),
				slog.Bool("created", created),
				slog.Int("total", res.Written()))
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// WriteRelationships creates one relType relationship per pair between existing
// start and end nodes, with relLabel stored as its name property.
// Pairs are written sequentially.
func (w *Writer) WriteRelationships(ctx context.Context, start, end models.Category, pairs []models.Pair, relType models.RelType, relLabel string) EdgeResult {
	res := EdgeResult{Start: start, End: end, Type: relType}
	for i, p := range pairs {
		if ctx.Err() != nil {
			res.Skipped = len(pairs) - i
			w.logger.Warn("writer: relationship batch interrupted",
				slog.String("type", string(relType)),
				slog.Int("skipped", res.Skipped))
			break
		}
		rel := models.Relationship{
			StartLabel: start,
			StartName:  p.Source,
			EndLabel:   end,
			EndName:    p.Target,
			Type:       relType,
			Label:      relLabel,
		}
		created, err := w.retry(ctx, func() (bool, error) {
			return w.store.Relate(ctx, rel)
		})
		res.Attempted++
		if err != nil {
			res.Failed++
			res.addFailure(p.Key(), err)
			w.logger.Warn("writer: create relationship failed",
				slog.String("type", string(relType)),
				slog.String("start", string(start)+":"+p.Source),
				slog.String("end", string(end)+":"+p.Target),
				slog.String("error", fmt.Errorf("%w: %w", apperr.ErrStoreWrite, err).Error()))
			continue
		}
		if created {
			res.Created++
		} else {
			res.Matched++
		}
		w.logger.Debug("writer: relationship written",
			slog.String("type", string(relType)),
			slog.String("pair", p.Key()),
			slog.Bool("created", created),
			slog.Int("total", res.Written()))
	}
	return res
}

func (w *Writer) retry(ctx context.Context, op func() (bool, error)) (bool, error) {
	b := backoff.NewExponentialBackOff()
	if w.cfg.Retry.InitialInterval > 0 {
		b.InitialInterval = w.cfg.Retry.InitialInterval
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(w.cfg.Retry.MaxTries),
	}
	if w.cfg.Retry.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(w.cfg.Retry.MaxElapsed))
	}
	return backoff.Retry(ctx, func() (bool, error) {
		created, err := op()
		if err != nil && permanent(err) {
			return false, backoff.Permanent(err)
		}
		return created, err
	}, opts...)
}

func permanent(err error) bool {
	return errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrInvalidLabel) ||
		errors.Is(err, apperr.ErrMissingField) ||
		errors.Is(err, apperr.ErrRejected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *NodeResult) addFailure(key string, err error) {
	if len(r.Failures) < maxFailureSamples {
		r.Failures = append(r.Failures, Failure{Key: key, Error: err.Error()})
	}
}

func (r *EdgeResult) addFailure(key string, err error) {
	if len(r.Failures) < maxFailureSamples {
		r.Failures = append(r.Failures, Failure{Key: key, Error: err.Error()})
	}
}

// SerializeProps builds the property map of a node: "name" plus every extra
// property, with mappings and sequences encoded as JSON text since graph
// stores only accept scalar property values.
func SerializeProps(name string, props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		if k == "name" || v == nil {
			continue
		}
		out[k] = scalar(v)
	}
	out["name"] = name
	return out
}

func scalar(v any) any {
	switch x := v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}
