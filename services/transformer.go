package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// TransformationError reports a required source column absent from every
// row of a non-empty batch.
type TransformationError struct {
	Column string
	Rows   int
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transform: required column %q missing from all %d rows", e.Column, e.Rows)
}

// Transformer reshapes raw API records into NormalizedListings.
type Transformer struct {
	logger *utils.Logger
}

// NewTransformer creates a Transformer with the given logger.
func NewTransformer(logger *utils.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Transform returns exactly one NormalizedListing per input row, in input
// order. Unparsable values degrade to nil; only a required column missing
// from the whole batch is an error.
func (t *Transformer) Transform(raw []models.RawListing) ([]models.NormalizedListing, error) {
	if err := checkRequired(raw); err != nil {
		return nil, err
	}

	out := make([]models.NormalizedListing, 0, len(raw))
	var nullDates int
	for _, r := range raw {
		n := normalize(r)
		if r.Has("haku_paattyy_pvm") && n.EndDate == nil {
			nullDates++
		}
		out = append(out, n)
	}

	if nullDates > 0 {
		t.logger.Warn("[transformer] %d rows had an unparsable end date, stored as NULL", nullDates)
	}
	t.logger.Info("[transformer] Transformed %d listings", len(out))
	return out, nil
}

func checkRequired(raw []models.RawListing) error {
	if len(raw) == 0 {
		return nil
	}
	for _, col := range models.RequiredFields {
		found := false
		for _, r := range raw {
			if r.Has(col) {
				found = true
				break
			}
		}
		if !found {
			return &TransformationError{Column: col, Rows: len(raw)}
		}
	}
	return nil
}

func normalize(r models.RawListing) models.NormalizedListing {
	var n models.NormalizedListing
	for _, c := range models.Columns {
		v := r[c.Source]
		switch c.Target {
		case "id":
			n.ID = models.ParseListingID(v)
		case "title":
			n.Title = parseText(v)
		case "description":
			n.Description = parseText(v)
		case "field":
			n.Field = parseText(v)
		case "job_key":
			n.JobKey = parseText(v)
		case "address":
			n.Address = parseText(v)
		case "latitude":
			n.Latitude = parseFloat(v)
		case "longitude":
			n.Longitude = parseFloat(v)
		case "url":
			n.URL = parseText(v)
		case "start_date":
			n.StartDate = parseDate(v)
		case "end_date":
			n.EndDate = parseDate(v)
		}
	}
	return n
}

// isNull treats a missing field and an explicit JSON null alike. json.Unmarshal
// leaves the target untouched for null, so callers must check first.
func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// parseText keeps JSON strings verbatim; every other JSON value is nil.
func parseText(v json.RawMessage) *string {
	if isNull(v) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}

// parseFloat accepts a JSON number or a numeric string.
func parseFloat(v json.RawMessage) *float64 {
	if isNull(v) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseDate never fails: anything but an ISO-8601 date string is nil.
func parseDate(v json.RawMessage) *models.Date {
	s := parseText(v)
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(*s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			d := models.DateOf(ts)
			return &d
		}
	}
	return nil
}
