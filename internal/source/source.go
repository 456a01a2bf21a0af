// Package source streams input records from disk.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/pathgraph/internal/models"
)

// Supported formats.
const (
	FormatAuto  = "auto"
	FormatJSONL = "jsonl"
	FormatXLSX  = "xlsx"
)

// Item is one position in the stream: a decoded record, or the error that
// prevented decoding it. Line is 1-based (the row number for spreadsheets).
type Item struct {
	Line   int
	Record models.Record
	Err    error
}

// Source yields records in input order.
type Source interface {
	// Each calls fn for every item until the stream ends, fn returns an error,
	// or ctx is cancelled. Per-item decode failures are delivered as Item.Err;
	// only failures to read the source at all are returned.
	Each(ctx context.Context, fn func(Item) error) error
	// Path returns the file backing the source.
	Path() string
}

// Open returns the source for path. FormatAuto picks XLSX for .xlsx files and JSONL otherwise.
func Open(path, format string) (Source, error) {
	if format == "" || format == FormatAuto {
		format = FormatJSONL
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			format = FormatXLSX
		}
	}
	switch format {
	case FormatJSONL:
		return NewJSONL(path), nil
	case FormatXLSX:
		return NewXLSX(path), nil
	default:
		return nil, fmt.Errorf("source: unknown format %q", format)
	}
}
