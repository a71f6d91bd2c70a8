package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

// SQLWriter replaces the full contents of the listings table with a batch.
type SQLWriter struct {
	logger *utils.Logger
}

// NewSQLWriter creates a SQLWriter with the given logger.
func NewSQLWriter(logger *utils.Logger) *SQLWriter {
	return &SQLWriter{logger: logger}
}

// Write deletes every stored listing and inserts the batch, all in one
// transaction. Each id is checked against the id column type declared in the
// database before it is inserted. Any failure rolls the whole transaction
// back, so the table keeps its pre-call contents, and is returned as a
// *LoadError.
func (w *SQLWriter) Write(ctx context.Context, store *Store, listings []models.NormalizedListing) (int, error) {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &LoadError{Kind: KindConnection, Row: -1, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			w.logger.Warn("[loader] Rollback failed: %v", rbErr)
		}
	}()

	declared, err := store.declaredIDType(ctx, tx)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableName); err != nil {
		return 0, &LoadError{Kind: KindSchema, Row: -1, Err: fmt.Errorf("clear table: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx, store.dialect.insert())
	if err != nil {
		return 0, &LoadError{Kind: KindSchema, Row: -1, Err: fmt.Errorf("prepare insert statement: %w", err)}
	}
	defer stmt.Close()

	for i, l := range listings {
		if !declared.Accepts(l.ID) {
			return 0, &LoadError{Kind: KindTypeMismatch, Row: i, ID: l.ID, Declared: declared}
		}
		if _, err := stmt.ExecContext(ctx, rowArgs(store.dialect, l)...); err != nil {
			return 0, &LoadError{Kind: KindConstraint, Row: i, ID: l.ID, Declared: declared, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &LoadError{Kind: KindConnection, Row: -1, Err: fmt.Errorf("commit transaction: %w", err)}
	}
	committed = true

	w.logger.Info("[loader] Replaced table contents with %d listings", len(listings))
	return len(listings), nil
}

func rowArgs(d dialect, l models.NormalizedListing) []any {
	return []any{
		l.ID.Value(),
		textArg(l.Title),
		textArg(l.Description),
		textArg(l.Field),
		textArg(l.JobKey),
		textArg(l.Address),
		floatArg(l.Latitude),
		floatArg(l.Longitude),
		textArg(l.URL),
		dateArg(d, l.StartDate),
		dateArg(d, l.EndDate),
	}
}

func textArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatArg(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func dateArg(d dialect, v *models.Date) any {
	if v == nil {
		return nil
	}
	return d.dateArg(*v)
}
