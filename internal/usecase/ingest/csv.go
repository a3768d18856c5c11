// Package ingest parses risk registers uploaded as CSV.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/risknetlabs/risknet/internal/domain"
)

// columnAliases maps each canonical field to the header names accepted for
// it, in priority order. Headers are matched after trimming and lowercasing.
var columnAliases = map[string][]string{
	"id":          {"id", "risk id", "riskid", "risk_no", "risk no", "risk number", "ref", "reference"},
	"title":       {"title", "risk title", "name"},
	"description": {"description", "risk description", "desc", "details", "summary"},
	"cause":       {"cause", "causes", "driver", "root cause"},
	"url":         {"url", "link", "hyperlink"},
	"cost":        {"cost", "value", "exposure"},
	"likelihood":  {"likelihood", "probability"},
	"impact":      {"impact", "consequence"},
	"phase":       {"phase", "stage"},
	"status":      {"status"},
}

// ParseResult holds the parsed records plus row accounting for logging.
type ParseResult struct {
	Risks     []domain.RiskRecord
	TotalRows int
	Skipped   int
}

// ParseCSV reads a risk register. The file must carry id and description
// columns (under any accepted alias); rows where either is blank or a
// placeholder like "nan" are skipped. A file that yields no valid rows is an
// error.
func ParseCSV(r io.Reader) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ParseResult{}, fmt.Errorf("file has no header row: %w", domain.ErrEmptyCSV)
		}
		return ParseResult{}, fmt.Errorf("read CSV header: %w", domain.ErrEmptyCSV)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	colMap := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		colMap[field] = -1
		for _, alias := range aliases {
			if idx, ok := cols[alias]; ok {
				colMap[field] = idx
				break
			}
		}
	}
	for _, required := range []string{"id", "description"} {
		if colMap[required] < 0 {
			return ParseResult{}, fmt.Errorf("CSV must have a %q column, found %v: %w",
				required, header, domain.ErrMissingColumn)
		}
	}

	var res ParseResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("read CSV row %d: %w", res.TotalRows+2, err)
		}
		res.TotalRows++

		id := cell(row, colMap["id"])
		description := cell(row, colMap["description"])
		if isBlank(id) || isBlank(description) {
			res.Skipped++
			continue
		}

		res.Risks = append(res.Risks, domain.RiskRecord{
			ID:          id,
			Title:       cell(row, colMap["title"]),
			Description: description,
			Cause:       cell(row, colMap["cause"]),
			URL:         cell(row, colMap["url"]),
			Cost:        numericCell(row, colMap["cost"]),
			Likelihood:  numericCell(row, colMap["likelihood"]),
			Impact:      numericCell(row, colMap["impact"]),
			Phase:       cell(row, colMap["phase"]),
			Status:      cell(row, colMap["status"]),
		})
	}

	if len(res.Risks) == 0 {
		return ParseResult{}, fmt.Errorf("no valid risks found in CSV: %w", domain.ErrEmptyCSV)
	}
	return res, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[idx])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func numericCell(row []string, idx int) *float64 {
	v := cell(row, idx)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
