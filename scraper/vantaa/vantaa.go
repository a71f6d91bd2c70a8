package vantaa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vantaa-jobs-etl/config"
	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

const userAgent = "vantaa-jobs-etl/1.0 (+https://gis.vantaa.fi)"

// ErrorKind classifies why an extraction failed.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindParse     ErrorKind = "parse"
)

// ExtractionError is the only error type Extract returns.
type ExtractionError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("extract %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Reason)
	case KindParse:
		return fmt.Sprintf("extract %s: malformed body: %s", e.URL, e.Reason)
	default:
		return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
	}
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Scraper fetches the open job listings of the City of Vantaa.
type Scraper struct {
	url    string
	hc     *http.Client
	logger *utils.Logger
}

// New creates a Scraper for cfg.APIURL.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		url:    cfg.APIURL,
		hc:     &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

// Extract issues one GET and returns the JSON array body as raw listings,
// field names and JSON types untouched. It never retries.
func (s *Scraper) Extract(ctx context.Context) ([]models.RawListing, error) {
	s.logger.Debug("[vantaa] GET %s", s.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &ExtractionError{Kind: KindTransport, URL: s.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, &ExtractionError{Kind: KindTransport, URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &ExtractionError{
			Kind:       KindStatus,
			URL:        s.url,
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(resp.Status + " " + string(b)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExtractionError{Kind: KindTransport, URL: s.url, Err: fmt.Errorf("read body: %w", err)}
	}

	listings, err := decodeListings(body)
	if err != nil {
		return nil, &ExtractionError{Kind: KindParse, URL: s.url, Reason: err.Error(), Err: err}
	}

	s.logger.Info("[vantaa] Extracted %d listings", len(listings))
	return listings, nil
}

var errNotArray = errors.New("body is not a JSON array")

func decodeListings(body []byte) ([]models.RawListing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotArray
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON array")
	}

	listings := make([]models.RawListing, 0, len(items))
	for i, item := range items {
		var l models.RawListing
		if err := json.Unmarshal(item, &l); err != nil || l == nil {
			return nil, fmt.Errorf("element %d is not a JSON object", i)
		}
		listings = append(listings, l)
	}
	return listings, nil
}
