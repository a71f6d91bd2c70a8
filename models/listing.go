package models

import (
	"encoding/json"
	"time"
)

// RawListing holds one record exactly as the source API returned it.
// Values stay raw JSON so that source types survive until the transformer
// decides what to do with them.
type RawListing map[string]json.RawMessage

// Has reports whether the source record carried the field at all.
func (r RawListing) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// String returns the field when the source sent a JSON string.
func (r RawListing) String(name string) (string, bool) {
	v, ok := r[name]
	if !ok || string(v) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// Column maps one source API field onto its store column.
type Column struct {
	Source string
	Target string
}

// Columns is the fixed rename table applied to every row. Source fields not
// listed here are dropped.
var Columns = []Column{
	{Source: "id", Target: "id"},
	{Source: "tyotehtava", Target: "title"},
	{Source: "kuvaus", Target: "description"},
	{Source: "ammattiala", Target: "field"},
	{Source: "tyoavain", Target: "job_key"},
	{Source: "osoite", Target: "address"},
	{Source: "y", Target: "latitude"},
	{Source: "x", Target: "longitude"},
	{Source: "linkki", Target: "url"},
	{Source: "haku_alkaa_pvm", Target: "start_date"},
	{Source: "haku_paattyy_pvm", Target: "end_date"},
}

// RequiredFields are source fields a non-empty batch must carry in at least
// one row.
var RequiredFields = []string{"id", "tyotehtava", "linkki"}

// TargetColumns returns the store column names in mapping order.
func TargetColumns() []string {
	out := make([]string, 0, len(Columns))
	for _, c := range Columns {
		out = append(out, c.Target)
	}
	return out
}

// NormalizedListing is the canonical row handed to the loader.
// Nil pointers are SQL NULLs.
type NormalizedListing struct {
	ID          ListingID
	Title       *string
	Description *string
	Field       *string
	JobKey      *string
	Address     *string
	Latitude    *float64
	Longitude   *float64
	URL         *string
	StartDate   *Date
	EndDate     *Date
}

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day from t, keeping the calendar date t has in its
// own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// InsightReport summarises the listings currently held in the store.
type InsightReport struct {
	TotalListings    int
	WithCoordinates  int
	OutsideVantaa    int
	MissingURL       int
	ClosingThisWeek  int
	AlreadyClosed    int
	ListingsByField  map[string]int
	EarliestClosing  []*NormalizedListing
	GeneratedForDate Date
}
