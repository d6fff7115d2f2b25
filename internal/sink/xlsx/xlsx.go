// Package xlsx writes records into an Excel workbook for ad-hoc review.
package xlsx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"jobhound/internal/crawler"
)

const sheetName = "Jobs"

var headerRow = []any{
	"Title", "Company", "Location", "Compensation", "Posted",
	"Category", "Description", "Source URL", "Page", "Fetched At",
}

// Sink accumulates rows in a workbook held in memory and writes the file on
// Close. Safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	path string
	file *excelize.File
	row  int
}

// New prepares a workbook with a header row. Nothing touches disk until
// Close.
func New(path string) (*Sink, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("name jobs sheet: %w", err)
	}
	if err := file.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write header row: %w", err)
	}
	styleID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := file.SetCellStyle(sheetName, "A1", "J1", styleID); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("style header row: %w", err)
	}
	return &Sink{path: path, file: file, row: 2}, nil
}

// Save appends one row.
func (s *Sink) Save(ctx context.Context, rec crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return fmt.Errorf("row %d cell name: %w", s.row, err)
	}
	fetched := ""
	if !rec.FetchedAt.IsZero() {
		fetched = rec.FetchedAt.Format(time.RFC3339)
	}
	values := []any{
		rec.Title,
		rec.Company,
		rec.Location,
		rec.Compensation,
		rec.PostedAt,
		rec.Category,
		rec.DescriptionText,
		rec.SourceURL,
		rec.PageNumber,
		fetched,
	}
	if err := s.file.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", s.row, err)
	}
	s.row++
	return nil
}

// Close writes the workbook to disk.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.SaveAs(s.path); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("save workbook %s: %w", s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	return nil
}
