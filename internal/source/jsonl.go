package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

// JSONL reads one JSON object per line.
type JSONL struct {
	path string
}

// NewJSONL creates a JSONL source for path. The file is opened on every Each call.
func NewJSONL(path string) *JSONL {
	return &JSONL{path: path}
}

// Path returns the backing file.
func (s *JSONL) Path() string { return s.path }

// Each streams the file line by line. Blank lines are skipped.
func (s *JSONL) Each(ctx context.Context, fn func(Item) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, readErr := r.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				rec, err := DecodeLine(trimmed)
				if err := fn(Item{Line: line, Record: rec, Err: err}); err != nil {
					return err
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("source: read %s: %w", s.path, readErr)
		}
	}
}

// DecodeLine parses one JSON object. Numbers are kept as json.Number.
func DecodeLine(data []byte) (models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("source: %w: %w", apperr.ErrParse, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("source: %w: not an object", apperr.ErrParse)
	}
	if dec.More() {
		return nil, fmt.Errorf("source: %w: trailing data after object", apperr.ErrParse)
	}
	return models.Record(rec), nil
}
