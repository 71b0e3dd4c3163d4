// Package report persists the ordered check records as JSON and CSV.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pfrederiksen/club-websites/internal/check"
	"github.com/pfrederiksen/club-websites/internal/logger"
)

// DefaultJSONPath and DefaultCSVPath are the report files written into the
// working directory.
const (
	DefaultJSONPath = "website_report.json"
	DefaultCSVPath  = "website_report.csv"
)

var csvHeader = []string{"club", "region", "website", "status", "final_url"}

// WriteError reports a report file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Row is one record as it appears in the JSON report. Field order is the
// key order of the output.
type Row struct {
	Club     *string     `json:"club"`
	Region   string      `json:"region"`
	Website  *string     `json:"website"`
	Status   interface{} `json:"status"`
	FinalURL *string     `json:"final_url"`
}

// NewRow converts a record.
func NewRow(rec check.Record) Row {
	return Row{
		Club:     rec.Club,
		Region:   rec.Region,
		Website:  rec.Website,
		Status:   rec.Outcome.StatusValue(),
		FinalURL: rec.FinalURL(),
	}
}

// Write stores records as JSON at jsonPath and, unless csvPath is empty, as
// CSV at csvPath. Each file is either written completely or left untouched.
func Write(records []check.Record, jsonPath, csvPath string) error {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, NewRow(rec))
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rows); err != nil {
		return &WriteError{Path: jsonPath, Err: err}
	}
	if err := writeAtomic(jsonPath, buf.Bytes()); err != nil {
		return &WriteError{Path: jsonPath, Err: err}
	}
	logger.Info("Report written", logger.Fields{"path": jsonPath, "records": len(rows)})

	if csvPath == "" {
		return nil
	}

	buf.Reset()
	if err := WriteCSV(&buf, rows); err != nil {
		return &WriteError{Path: csvPath, Err: err}
	}
	if err := writeAtomic(csvPath, buf.Bytes()); err != nil {
		return &WriteError{Path: csvPath, Err: err}
	}
	logger.Info("Report written", logger.Fields{"path": csvPath, "records": len(rows)})

	return nil
}

// WriteJSON encodes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(rows); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// WriteCSV writes a header line and one line per row. Absent values are
// written as empty strings.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range rows {
		line := []string{
			deref(row.Club),
			row.Region,
			deref(row.Website),
			fmt.Sprint(row.Status),
			deref(row.FinalURL),
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
