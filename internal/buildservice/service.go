// Package buildservice serializes builds and keeps the outcome of the latest one.
package buildservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/pipeline"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/sse"
	"github.com/starford/pathgraph/internal/storage"
)

// Build states.
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Notifier receives build lifecycle events. *sse.Broker satisfies it.
type Notifier interface {
	Publish(sse.Event)
	PublishProgress(data any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(sse.Event)   {}
func (nopNotifier) PublishProgress(any) {}

// Status describes the latest build.
type Status struct {
	State      string           `json:"state"`
	Trigger    string           `json:"trigger"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
	Error      string           `json:"error,omitempty"`
	Report     *pipeline.Report `json:"report,omitempty"`
}

// Service runs builds of one source, one at a time.
type Service struct {
	src      source.Source
	pipeline *pipeline.Pipeline
	notifier Notifier
	logger   *slog.Logger
	archive  storage.Provider
	keep     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	buildMu sync.Mutex

	mu        sync.RWMutex
	latest    *Status
	succeeded bool
}

// New creates a Service. newPipeline receives the progress hook to install on
// the pipeline it builds. A nil notifier discards events.
func New(src source.Source, newPipeline func(progress func(pipeline.Progress)) *pipeline.Pipeline, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		src:      src,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.archive != nil {
		s.restore()
	}
	s.pipeline = newPipeline(func(p pipeline.Progress) { s.notifier.PublishProgress(p) })
	return s
}

// Build runs one build and waits for it. It blocks while another build runs.
func (s *Service) Build(ctx context.Context, trigger string) (*pipeline.Report, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.run(ctx, trigger)
}

// Trigger starts a build in the background and returns immediately.
// It returns apperr.ErrBuildInProgress when a build is already running.
func (s *Service) Trigger(trigger string) error {
	if !s.buildMu.TryLock() {
		return apperr.ErrBuildInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.buildMu.Unlock()
		if _, err := s.run(s.ctx, trigger); err != nil {
			s.logger.Error("build: background build failed",
				slog.String("trigger", trigger),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Latest returns the status of the most recent build.
func (s *Service) Latest() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Status{}, apperr.ErrNoBuild
	}
	return *s.latest, nil
}

// Ready reports whether any build has succeeded so far.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.succeeded
}

// Close cancels background builds and waits for them to stop.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, trigger string) (*pipeline.Report, error) {
	st := &Status{State: StateRunning, Trigger: trigger, StartedAt: time.Now().UTC()}
	s.setLatest(st)
	s.notifier.Publish(sse.Event{Type: sse.BuildStarted, Data: map[string]string{
		"trigger": trigger,
		"source":  s.src.Path(),
	}})

	rep, err := s.pipeline.Run(ctx, s.src)

	done := *st
	done.FinishedAt = time.Now().UTC()
	done.Report = rep
	if err != nil {
		done.State = StateFailed
		done.Error = err.Error()
		s.notifier.Publish(sse.Event{Type: sse.BuildFailed, Data: done})
	} else {
		done.State = StateSucceeded
		s.notifier.Publish(sse.Event{Type: sse.BuildFinished, Data: done})
	}
	s.mu.Lock()
	s.latest = &done
	if done.State == StateSucceeded {
		s.succeeded = true
	}
	s.mu.Unlock()
	s.save(&done)
	return rep, err
}

func (s *Service) setLatest(st *Status) {
	s.mu.Lock()
	s.latest = st
	s.mu.Unlock()
}
