// Package parcelfile implements the Parcel File Reader (spec.md
// §4.D): parsing a batch job's identifier list from plain text,
// delimited text, or spreadsheet input, with dedup and a caller-
// provided maximum count.
package parcelfile

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

// Read parses identifiers out of r, dispatching on the file
// extension of name: ".txt"/no recognized extension falls back to
// plain text, ".csv"/".tsv" to delimited text, ".xlsx" to spreadsheet.
// It trims whitespace, drops empties, de-duplicates preserving first
// occurrence, and enforces maxCount.
func Read(r io.Reader, name string, maxCount int) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var raw []string
	var err error

	switch ext {
	case ".csv":
		raw, err = readDelimited(r, ',')
	case ".tsv":
		raw, err = readDelimited(r, '\t')
	case ".xlsx":
		raw, err = readSpreadsheet(r)
	default:
		raw, err = readPlainText(r)
	}
	if err != nil {
		return nil, err
	}

	return dedupAndBound(raw, maxCount)
}

// readPlainText reads one identifier per line; lines starting with
// '#' are comments and ignored.
func readPlainText(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan plain text input: %w", err)
	}
	return ids, nil
}

// readDelimited reads a delimited text file, using the first column
// by default, or the column whose header case-insensitively contains
// both "parcel" and "id" (spec.md §4.D).
func readDelimited(r io.Reader, delim byte) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, string(delim)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan delimited input: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := parcelIDColumn(rows[0])
	var ids []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v != "" {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// readSpreadsheet reads the first sheet of an xlsx workbook using the
// same column rule as delimited text, coercing every value to string.
func readSpreadsheet(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := parcelIDColumn(rows[0])
	var ids []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v != "" {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// parcelIDColumn returns the first header column whose name
// case-insensitively contains both "parcel" and "id", or 0 if none
// matches (spec.md §4.D: "first column, or a column whose header...").
func parcelIDColumn(header []string) int {
	for i, h := range header {
		lower := strings.ToLower(h)
		if strings.Contains(lower, "parcel") && strings.Contains(lower, "id") {
			return i
		}
	}
	return 0
}

func dedupAndBound(raw []string, maxCount int) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if maxCount > 0 && len(out) > maxCount {
		return nil, fmt.Errorf("%w: %d identifiers exceeds max of %d", jobtypes.ErrTooManyIdentifiers, len(out), maxCount)
	}
	return out, nil
}
