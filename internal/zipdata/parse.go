// Package zipdata acquires the ZIP reference dataset: it fetches each
// tier's sheet, parses it into records and feeds the routing index.
// The engine itself never does I/O; this package owns all of it.
package zipdata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"zip-routing-api-go/internal/routing"
)

// parseCSV reads ZIP codes from the first column of a CSV document.
// A non-numeric first row is treated as a header and skipped; other
// malformed rows are dropped silently (the index re-validates anyway).
func parseCSV(r io.Reader, tier routing.TierID) ([]routing.ZipRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var records []routing.ZipRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read failed: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		zip := strings.TrimSpace(row[0])
		if zip == "" {
			continue
		}
		records = append(records, routing.ZipRecord{Zip: zip, Tier: tier})
	}
	return records, nil
}

// parseXLSX reads ZIP codes from the first column of the first sheet of
// an Excel workbook, matching the upstream "Tier N.xlsx" layout.
func parseXLSX(data []byte, tier routing.TierID) ([]routing.ZipRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var records []routing.ZipRecord
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		zip := strings.TrimSpace(row[0])
		if zip == "" {
			continue
		}
		records = append(records, routing.ZipRecord{Zip: zip, Tier: tier})
	}
	return records, nil
}

// Parse dispatches on the source URL's extension. Unknown extensions
// are assumed to be CSV.
func Parse(url string, data []byte, tier routing.TierID) ([]routing.ZipRecord, error) {
	lower := strings.ToLower(url)
	if strings.Contains(lower, ".xlsx") {
		return parseXLSX(data, tier)
	}
	return parseCSV(bytes.NewReader(data), tier)
}
