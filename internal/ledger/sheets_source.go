package ledger

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ValuesReader reads a range of cell values from a spreadsheet.
type ValuesReader interface {
	ReadValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

type sheetsValuesReader struct {
	svc *sheets.Service
}

func (r *sheetsValuesReader) ReadValues(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// SheetsSource reads the ledger from a Google Sheets range whose first row is
// the header.
type SheetsSource struct {
	reader        ValuesReader
	spreadsheetID string
	readRange     string
}

// NewSheetsSource creates a SheetsSource backed by the Sheets API.
func NewSheetsSource(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSheetsSource: creating service: %w", err)
	}
	return NewSheetsSourceWithReader(&sheetsValuesReader{svc: svc}, spreadsheetID, readRange), nil
}

// NewSheetsSourceWithReader creates a SheetsSource over an arbitrary ValuesReader.
func NewSheetsSourceWithReader(reader ValuesReader, spreadsheetID, readRange string) *SheetsSource {
	return &SheetsSource{
		reader:        reader,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}
}

// ReadEntries implements Reader.
func (s *SheetsSource) ReadEntries(ctx context.Context) ([]Entry, error) {
	values, err := s.reader.ReadValues(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("SheetsSource.ReadEntries: reading %s: %w", s.readRange, err)
	}
	return entriesFromValues(values), nil
}

func entriesFromValues(values [][]interface{}) []Entry {
	if len(values) == 0 {
		return nil
	}

	header := make([]column, len(values[0]))
	for i, cell := range values[0] {
		header[i] = lookupColumn(cellString(cell))
	}

	var entries []Entry
	for i, row := range values[1:] {
		var raw RawRow
		for j, cell := range row {
			if j >= len(header) {
				break
			}
			raw.set(header[j], cellString(cell))
		}
		if raw.ID == "" {
			// sheet row number, counting the header
			raw.ID = fmt.Sprintf("row-%d", i+2)
		}
		if e, ok := FromRaw(raw); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(cell))
}
