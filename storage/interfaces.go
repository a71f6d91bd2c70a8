package storage

import (
	"context"

	"vantaa-jobs-etl/models"
)

// ListingWriter is the interface the pipeline's load stage depends on.
type ListingWriter interface {
	Write(ctx context.Context, store *Store, listings []models.NormalizedListing) (int, error)
}

// ListingReader reads back what the last load stored.
type ListingReader interface {
	Count(ctx context.Context) (int, error)
	FetchAll(ctx context.Context) ([]models.NormalizedListing, error)
}

var (
	_ ListingWriter = (*SQLWriter)(nil)
	_ ListingReader = (*Store)(nil)
)
