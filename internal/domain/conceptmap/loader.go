package conceptmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names expected in a mapping table header row.
const (
	ColSourceCode   = "source_code"
	ColTargetCode   = "target_code"
	ColRelationship = "relationship"
	ColSNOMEDCode   = "snomed_ct_code"
	ColLOINCCode    = "loinc_code"
)

var requiredColumns = []string{ColSourceCode, ColTargetCode}

// LoadFile builds a Table from a .csv or .xlsx file.
func LoadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open mapping table: %w", err)
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open mapping table: %w", err)
		}
		defer f.Close()
		return LoadXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported mapping table format %q", filepath.Ext(path))
	}
}

// LoadCSV reads a mapping table with a header row.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return fromRows(rows)
}

// LoadXLSX reads the first sheet of a workbook. The first row is the header.
func LoadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open mapping workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("mapping workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("mapping table is empty: missing header row")
	}

	idx := make(map[string]int)
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("mapping table header missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	entries := make([]MappingEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		entries = append(entries, MappingEntry{
			SourceCode:   cell(row, ColSourceCode),
			TargetCode:   cell(row, ColTargetCode),
			Relationship: cell(row, ColRelationship),
			SNOMEDCode:   cell(row, ColSNOMEDCode),
			LOINCCode:    cell(row, ColLOINCCode),
		})
	}
	return NewTable(entries), nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
