package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

// Rough bounding box of the City of Vantaa. Only used for reporting.
const (
	vantaaMinLon = 24.7
	vantaaMaxLon = 25.2
	vantaaMinLat = 60.2
	vantaaMaxLat = 60.4
)

const (
	closingWindow   = 7 * 24 * time.Hour
	earliestClosing = 5
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises stored listings relative to the given day.
func (s *InsightService) Generate(listings []models.NormalizedListing, today models.Date) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByField:  make(map[string]int),
		GeneratedForDate: today,
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	weekEnd := today.Add(closingWindow)

	var open []*models.NormalizedListing
	for i := range listings {
		l := &listings[i]

		if l.Field != nil && *l.Field != "" {
			report.ListingsByField[*l.Field]++
		}
		if l.Latitude != nil && l.Longitude != nil {
			report.WithCoordinates++
			if !insideVantaa(*l.Latitude, *l.Longitude) {
				report.OutsideVantaa++
			}
		}
		if l.URL == nil || strings.TrimSpace(*l.URL) == "" {
			report.MissingURL++
		}

		if l.EndDate == nil {
			continue
		}
		switch {
		case l.EndDate.Before(today.Time):
			report.AlreadyClosed++
		default:
			if !l.EndDate.After(weekEnd) {
				report.ClosingThisWeek++
			}
			open = append(open, l)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		return open[i].EndDate.Before(open[j].EndDate.Time)
	})
	if len(open) > earliestClosing {
		open = open[:earliestClosing]
	}
	report.EarliestClosing = open

	s.logger.Debug("[insights] %d listings, %d closing within a week", report.TotalListings, report.ClosingThisWeek)
	return report
}

func insideVantaa(lat, lon float64) bool {
	return lon >= vantaaMinLon && lon <= vantaaMaxLon &&
		lat >= vantaaMinLat && lat <= vantaaMaxLat
}

// Print renders the report for a terminal.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  VANTAA OPEN JOB LISTINGS (%s)\033[0m\n", r.GeneratedForDate)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Stored listings        : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With coordinates       : \033[1m%d\033[0m\n", r.WithCoordinates)
	fmt.Fprintf(w, "  Outside Vantaa area    : \033[1m%d\033[0m\n", r.OutsideVantaa)
	fmt.Fprintf(w, "  Missing application URL: \033[1m%d\033[0m\n", r.MissingURL)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Application Deadlines\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Closing within 7 days : \033[1;32m%d\033[0m\n", r.ClosingThisWeek)
	fmt.Fprintf(w, "  Already closed        : \033[1;31m%d\033[0m\n", r.AlreadyClosed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Closing Soonest\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.EarliestClosing) == 0 {
		fmt.Fprintf(w, "  No open listings with a closing date\n")
	} else {
		for i, l := range r.EarliestClosing {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%s\033[0m\n",
				i+1, truncate(deref(l.Title), 38), l.EndDate)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Field\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByField) == 0 {
		fmt.Fprintf(w, "  No field data\n")
	} else {
		type fieldCount struct {
			field string
			count int
		}
		var fields []fieldCount
		for f, cnt := range r.ListingsByField {
			fields = append(fields, fieldCount{f, cnt})
		}
		sort.Slice(fields, func(i, j int) bool {
			if fields[i].count != fields[j].count {
				return fields[i].count > fields[j].count
			}
			return fields[i].field < fields[j].field
		})
		for _, fc := range fields {
			bar := strings.Repeat("█", min(fc.count, 30))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(fc.field, 28), bar, fc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
