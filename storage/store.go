package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

// TableName is the single table the pipeline owns.
const TableName = "vantaa_open_applications"

// ColumnType is the declared SQL type of the id column.
type ColumnType string

const (
	ColumnInteger ColumnType = "integer"
	ColumnText    ColumnType = "text"
)

// Accepts reports whether an identifier of the given kind may be written to
// a column of this type. Nothing is converted: an integer id never goes into
// a text column and vice versa.
func (c ColumnType) Accepts(id models.ListingID) bool {
	switch c {
	case ColumnInteger:
		return id.Kind() == models.IDInteger
	case ColumnText:
		return id.Kind() == models.IDText
	}
	return false
}

// Options configures Open.
type Options struct {
	Driver      string // sqlite | postgres | pgx
	DSN         string
	IDType      ColumnType // used by CreateSchema
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *utils.Logger
}

// Store is an open handle on the listings database. It is opened for one
// unit of work and closed by whoever opened it.
type Store struct {
	db      *sql.DB
	dialect dialect
	idType  ColumnType
	logger  *utils.Logger
}

// Open connects and pings the database, retrying the ping. Any failure is a
// *LoadError of KindConnection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, &LoadError{Kind: KindConnection, Row: -1,
			Err: fmt.Errorf("unknown driver %q", opts.Driver)}
	}

	dsn := opts.DSN
	if opts.Driver == "sqlite" {
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", opts.DSN)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, &LoadError{Kind: KindConnection, Row: -1, Err: fmt.Errorf("open %s: %w", opts.Driver, err)}
	}
	if opts.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger()
	}
	retry := &utils.RetryConfig{
		MaxAttempts: opts.MaxAttempts,
		BaseDelay:   opts.RetryDelay,
		Logger:      logger,
	}
	err = retry.Do(ctx, "store ping", func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, &LoadError{Kind: KindConnection, Row: -1, Err: err}
	}

	idType := opts.IDType
	if idType == "" {
		idType = ColumnInteger
	}
	return &Store{db: db, dialect: d, idType: idType, logger: logger}, nil
}

// Close releases the connection pool. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSchema creates the listings table if it is absent. An existing table
// is left alone, but a declared id type different from the configured one is
// reported.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable(s.idType)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_end_date ON %[1]s(end_date)`, TableName)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	declared, err := s.declaredIDType(ctx, s.db)
	if err != nil {
		return err
	}
	if declared != s.idType {
		return fmt.Errorf("table %s already exists with id column type %s, configured %s",
			TableName, declared, s.idType)
	}
	return nil
}

// DropTable removes the listings table if it exists.
func (s *Store) DropTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+TableName); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return nil
}

// DeclaredIDType reads the id column's type from the database catalogue.
func (s *Store) DeclaredIDType(ctx context.Context) (ColumnType, error) {
	return s.declaredIDType(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) declaredIDType(ctx context.Context, q queryer) (ColumnType, error) {
	var raw string
	err := q.QueryRowContext(ctx, s.dialect.idTypeQuery, TableName).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &LoadError{Kind: KindSchema, Row: -1,
			Err: fmt.Errorf("table %s does not exist (run init)", TableName)}
	}
	if err != nil {
		return "", &LoadError{Kind: KindSchema, Row: -1, Err: fmt.Errorf("read id column type: %w", err)}
	}

	t := strings.ToUpper(raw)
	switch {
	case strings.Contains(t, "INT"):
		return ColumnInteger, nil
	case strings.Contains(t, "TEXT"), strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"):
		return ColumnText, nil
	}
	return "", &LoadError{Kind: KindSchema, Row: -1,
		Err: fmt.Errorf("unsupported id column type %q", raw)}
}

// Count returns the number of stored listings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// FetchAll retrieves all stored listings ordered by id.
func (s *Store) FetchAll(ctx context.Context) ([]models.NormalizedListing, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY id`, strings.Join(models.TargetColumns(), ", "), TableName))
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}
	defer rows.Close()

	listings := make([]models.NormalizedListing, 0)
	for rows.Next() {
		var (
			id                                     any
			title, desc, field, jobKey, addr, link sql.NullString
			lat, lon                               sql.NullFloat64
			start, end                             any
		)
		if err := rows.Scan(&id, &title, &desc, &field, &jobKey, &addr, &lat, &lon, &link, &start, &end); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		listings = append(listings, models.NormalizedListing{
			ID:          idFromDB(id),
			Title:       nullString(title),
			Description: nullString(desc),
			Field:       nullString(field),
			JobKey:      nullString(jobKey),
			Address:     nullString(addr),
			Latitude:    nullFloat(lat),
			Longitude:   nullFloat(lon),
			URL:         nullString(link),
			StartDate:   dateFromDB(start),
			EndDate:     dateFromDB(end),
		})
	}
	return listings, rows.Err()
}

// ResetFile deletes a SQLite database file. A missing file or an empty path
// is not an error; other failures are logged and swallowed so a reset never
// aborts the caller.
func ResetFile(path string, logger *utils.Logger) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("[store] Could not remove %s: %v", path, err)
		}
		return
	}
	logger.Info("[store] Removed %s", path)
}

// EnsureDir creates the parent directory of a SQLite database file.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func idFromDB(v any) models.ListingID {
	switch x := v.(type) {
	case int64:
		return models.IntegerID(x)
	case int32:
		return models.IntegerID(int64(x))
	case string:
		return models.TextID(x)
	case []byte:
		return models.TextID(string(x))
	}
	return models.NullID()
}

func dateFromDB(v any) *models.Date {
	var d models.Date
	switch x := v.(type) {
	case time.Time:
		d = models.DateOf(x.UTC())
	case string:
		return parseStoredDate(x)
	case []byte:
		return parseStoredDate(string(x))
	default:
		return nil
	}
	return &d
}

func parseStoredDate(s string) *models.Date {
	for _, layout := range []string{models.DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d := models.DateOf(t)
			return &d
		}
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
