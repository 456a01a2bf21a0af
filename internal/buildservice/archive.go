package buildservice

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/pathgraph/internal/storage"
)

// Option configures a Service.
type Option func(*Service)

// WithArchive stores every finished build status in p and keeps the newest
// keep documents. keep <= 0 keeps everything.
func WithArchive(p storage.Provider, keep int) Option {
	return func(s *Service) {
		s.archive = p
		s.keep = keep
	}
}

// archiveName sorts chronologically.
func archiveName(st *Status) string {
	name := st.StartedAt.UTC().Format("20060102T150405.000000000Z")
	if st.Report != nil && st.Report.RunID != "" {
		name += "-" + st.Report.RunID
	}
	return name + ".json"
}

func (s *Service) save(st *Status) {
	if s.archive == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		s.logger.Error("build: encode status failed", slog.String("error", err.Error()))
		return
	}
	if err := s.archive.Write(archiveName(st), data); err != nil {
		s.logger.Error("build: archive status failed", slog.String("error", err.Error()))
		return
	}
	if s.keep <= 0 {
		return
	}
	names, err := s.archive.List()
	if err != nil {
		s.logger.Warn("build: list archive failed", slog.String("error", err.Error()))
		return
	}
	for _, name := range names[:max(0, len(names)-s.keep)] {
		if err := s.archive.Delete(name); err != nil {
			s.logger.Warn("build: prune archive failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
		}
	}
}

// History returns up to limit archived statuses, newest first. Without an
// archive it returns the in-memory latest status only.
func (s *Service) History(limit int) ([]Status, error) {
	if s.archive == nil {
		st, err := s.Latest()
		if err != nil {
			return []Status{}, nil
		}
		return []Status{st}, nil
	}
	names, err := s.archive.List()
	if err != nil {
		return nil, fmt.Errorf("buildservice: history: %w", err)
	}
	out := make([]Status, 0, min(len(names), max(limit, 0)))
	for i := len(names) - 1; i >= 0 && len(out) < limit; i-- {
		st, err := s.load(names[i])
		if err != nil {
			s.logger.Warn("build: skip unreadable archive entry",
				slog.String("name", names[i]),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) load(name string) (Status, error) {
	data, err := s.archive.Read(name)
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return st, nil
}

// restore makes the newest archived build the latest status.
func (s *Service) restore() {
	names, err := s.archive.List()
	if err != nil || len(names) == 0 {
		return
	}
	for i := len(names) - 1; i >= 0; i-- {
		st, err := s.load(names[i])
		if err != nil {
			continue
		}
		if st.State == "" {
			continue
		}
		s.latest = &st
		s.logger.Info("build: restored previous status",
			slog.String("state", st.State),
			slog.Time("started_at", st.StartedAt))
		return
	}
}
