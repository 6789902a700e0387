package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readDelimited reads every record, skipping the ones the csv reader rejects.
func readDelimited(text string, delim rune) ([][]string, []int, int, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	var lines []int
	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, nil, skipped, fmt.Errorf("read delimited: %w", err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return rows, lines, skipped, nil
}

// readWorkbook returns the rows of the sheet with the most non-empty rows.
func readWorkbook(content []byte) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var bestRows [][]string
	bestSheet, bestCount := "", -1
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		n := 0
		for _, r := range rows {
			if !blankRow(r) {
				n++
			}
		}
		if n > bestCount {
			bestRows, bestSheet, bestCount = rows, sheet, n
		}
	}
	if bestSheet == "" {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}
	return bestRows, bestSheet, nil
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
