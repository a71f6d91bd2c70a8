package storage

import (
	"fmt"

	"vantaa-jobs-etl/models"
)

// LoadErrorKind classifies a load failure.
type LoadErrorKind string

const (
	// KindConnection covers opening, pinging, beginning or committing.
	KindConnection LoadErrorKind = "connection"
	// KindSchema means the table is missing or its id column is unusable.
	KindSchema LoadErrorKind = "schema"
	// KindTypeMismatch means a row's id kind does not fit the declared column.
	KindTypeMismatch LoadErrorKind = "type_mismatch"
	// KindConstraint is any other row rejected by the database.
	KindConstraint LoadErrorKind = "constraint"
)

// LoadError is the only error type the loader and Open return. Whenever a
// LoadError comes out of a write, the transaction has been rolled back.
type LoadError struct {
	Kind     LoadErrorKind
	Row      int // index into the batch, -1 when not row specific
	ID       models.ListingID
	Declared ColumnType
	Err      error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case KindTypeMismatch:
		return fmt.Sprintf("load: row %d: id %#v does not match declared id column type %s",
			e.Row, e.ID, e.Declared)
	case KindConstraint:
		return fmt.Sprintf("load: row %d (id %#v): %v", e.Row, e.ID, e.Err)
	default:
		return fmt.Sprintf("load: %s: %v", e.Kind, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }
