package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"vantaa-jobs-etl/models"
)

// CSVWriter exports stored listings to a CSV file. The header row uses the
// store column names; NULLs are written as empty cells.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := writeHeader(w); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteListings appends one row per listing.
func (c *CSVWriter) WriteListings(listings []models.NormalizedListing) error {
	return writeRows(c.writer, listings)
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// WriteCSV writes header and listings to w.
func WriteCSV(w io.Writer, listings []models.NormalizedListing) error {
	cw := csv.NewWriter(w)
	if err := writeHeader(cw); err != nil {
		return err
	}
	return writeRows(cw, listings)
}

func writeHeader(w *csv.Writer) error {
	if err := w.Write(models.TargetColumns()); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

func writeRows(w *csv.Writer, listings []models.NormalizedListing) error {
	for _, l := range listings {
		row := []string{
			idCell(l.ID),
			strCell(l.Title),
			strCell(l.Description),
			strCell(l.Field),
			strCell(l.JobKey),
			strCell(l.Address),
			floatCell(l.Latitude),
			floatCell(l.Longitude),
			strCell(l.URL),
			dateCell(l.StartDate),
			dateCell(l.EndDate),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func idCell(id models.ListingID) string {
	switch v := id.Value().(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	}
	return ""
}

func strCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func dateCell(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
