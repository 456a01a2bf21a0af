package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

// XLSX reads records from the first sheet of a workbook. The first row names
// the fields; every following non-empty row is one record.
//
// related_diseases cells hold names separated by ";" (ASCII or full-width);
// modifications cells hold a JSON array.
type XLSX struct {
	path string
}

// NewXLSX creates a spreadsheet source for path.
func NewXLSX(path string) *XLSX {
	return &XLSX{path: path}
}

// Path returns the backing file.
func (s *XLSX) Path() string { return s.path }

// Each streams the rows of the first sheet.
func (s *XLSX) Each(ctx context.Context, fn func(Item) error) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("source: open %s: %w", s.path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("source: read %s: %w", s.path, err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := decodeRow(header, row)
		if err == nil && len(rec) == 0 {
			continue
		}
		if err := fn(Item{Line: i + 2, Record: rec, Err: err}); err != nil {
			return err
		}
	}
	return nil
}

func decodeRow(header, row []string) (models.Record, error) {
	rec := models.Record{}
	for i, cell := range row {
		if i >= len(header) || header[i] == "" {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch header[i] {
		case models.FieldRelatedDiseases:
			rec[header[i]] = splitList(cell)
		case models.FieldModifications:
			var mods []any
			if err := json.Unmarshal([]byte(cell), &mods); err != nil {
				return nil, fmt.Errorf("source: %w: modifications: %w", apperr.ErrParse, err)
			}
			rec[header[i]] = mods
		default:
			rec[header[i]] = cell
		}
	}
	return rec, nil
}

func splitList(cell string) []any {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == '；' })
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
