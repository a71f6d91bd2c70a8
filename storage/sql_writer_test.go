package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/utils"
)

func testLogger() *utils.Logger { return utils.NewLoggerTo(&bytes.Buffer{}) }

func ptr[T any](v T) *T { return &v }

// openTestStore opens a fresh SQLite file with the listings table created for
// the given id column type.
func openTestStore(t *testing.T, idType ColumnType) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vantaa.db")
	store, err := Open(context.Background(), Options{
		Driver:      "sqlite",
		DSN:         path,
		IDType:      idType,
		MaxAttempts: 1,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateSchema(context.Background()))
	return store, path
}

func listing(id models.ListingID, title string) models.NormalizedListing {
	end := models.NewDate(2025, time.December, 31)
	return models.NormalizedListing{
		ID:        id,
		Title:     ptr(title),
		Field:     ptr("IT"),
		JobKey:    ptr("key-" + title),
		Address:   ptr("Test Street 1"),
		Latitude:  ptr(60.2934),
		Longitude: ptr(24.8474),
		URL:       ptr("http://example.com/" + title),
		EndDate:   &end,
	}
}

func textBatch(n int) []models.NormalizedListing {
	out := make([]models.NormalizedListing, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, listing(models.TextID(fmt.Sprint(i)), fmt.Sprintf("job%d", i)))
	}
	return out
}

func TestWriteRoundTrip(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()

	in := textBatch(2)
	in[1].Description = ptr("Cares for patients")
	in[1].StartDate = ptr(models.NewDate(2024, time.January, 15))
	in[1].Latitude = nil

	n, err := NewSQLWriter(testLogger()).Write(ctx, store, in)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestWriteIsFullReplace(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()
	w := NewSQLWriter(testLogger())

	_, err := w.Write(ctx, store, textBatch(4))
	require.NoError(t, err)

	second := []models.NormalizedListing{listing(models.TextID("9"), "other")}
	_, err = w.Write(ctx, store, second)
	require.NoError(t, err)

	got, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Equal(t, second, got, "no prior rows survive")
}

func TestWriteIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()
	w := NewSQLWriter(testLogger())
	batch := textBatch(3)

	_, err := w.Write(ctx, store, batch)
	require.NoError(t, err)
	once, err := store.FetchAll(ctx)
	require.NoError(t, err)

	_, err = w.Write(ctx, store, batch)
	require.NoError(t, err)
	twice, err := store.FetchAll(ctx)
	require.NoError(t, err)

	require.Equal(t, once, twice)
}

func TestWriteIDTypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		column ColumnType
		id     models.ListingID
		ok     bool
	}{
		{"integer into text column", ColumnText, models.IntegerID(1), false},
		{"string into text column", ColumnText, models.TextID("1"), true},
		{"integer into integer column", ColumnInteger, models.IntegerID(1), true},
		{"string into integer column", ColumnInteger, models.TextID("1"), false},
		{"decimal into integer column", ColumnInteger, models.DecimalID("1.5"), false},
		{"null id", ColumnText, models.NullID(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := openTestStore(t, tt.column)
			ctx := context.Background()

			_, err := NewSQLWriter(testLogger()).Write(ctx, store,
				[]models.NormalizedListing{listing(tt.id, "job")})

			if tt.ok {
				require.NoError(t, err)
				count, err := store.Count(ctx)
				require.NoError(t, err)
				require.Equal(t, 1, count)
				return
			}

			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			require.Equal(t, KindTypeMismatch, le.Kind)
			require.Equal(t, 0, le.Row)
			require.Equal(t, tt.column, le.Declared)
		})
	}
}

func TestWriteAllOrNothing(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()
	w := NewSQLWriter(testLogger())

	_, err := w.Write(ctx, store, textBatch(2))
	require.NoError(t, err)
	before, err := store.FetchAll(ctx)
	require.NoError(t, err)

	batch := textBatch(5)
	batch = append(batch, listing(models.IntegerID(6), "bad"))

	_, err = w.Write(ctx, store, batch)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, KindTypeMismatch, le.Kind)
	require.Equal(t, 5, le.Row)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count, "pre-run row count")

	after, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestWriteDuplicateIDIsConstraintError(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()

	batch := textBatch(3)
	batch = append(batch, listing(models.TextID("2"), "dup"))

	_, err := NewSQLWriter(testLogger()).Write(ctx, store, batch)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, KindConstraint, le.Kind)
	require.Equal(t, 3, le.Row)
	require.NotNil(t, le.Unwrap())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestWriteEmptyBatchClearsTable(t *testing.T) {
	store, _ := openTestStore(t, ColumnText)
	ctx := context.Background()
	w := NewSQLWriter(testLogger())

	_, err := w.Write(ctx, store, textBatch(3))
	require.NoError(t, err)

	n, err := w.Write(ctx, store, nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestWriteWithoutSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.db")
	store, err := Open(context.Background(), Options{Driver: "sqlite", DSN: path, MaxAttempts: 1, Logger: testLogger()})
	require.NoError(t, err)
	defer store.Close()

	_, err = NewSQLWriter(testLogger()).Write(context.Background(), store, textBatch(1))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, KindSchema, le.Kind)
}

func TestOpenConnectionFailure(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    string
	}{
		{"missing directory", "sqlite", filepath.Join(t.TempDir(), "nonexistent", "test.db")},
		{"unknown driver", "invalid", "connection/string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), Options{Driver: tt.driver, DSN: tt.dsn, MaxAttempts: 1, Logger: testLogger()})
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			require.Equal(t, KindConnection, le.Kind)
		})
	}
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t, ColumnInteger)
	ctx := context.Background()

	require.NoError(t, store.CreateSchema(ctx))

	declared, err := store.DeclaredIDType(ctx)
	require.NoError(t, err)
	require.Equal(t, ColumnInteger, declared)
}

func TestCreateSchemaReportsConflictingIDType(t *testing.T) {
	_, path := openTestStore(t, ColumnText)

	other, err := Open(context.Background(), Options{
		Driver: "sqlite", DSN: path, IDType: ColumnInteger, MaxAttempts: 1, Logger: testLogger(),
	})
	require.NoError(t, err)
	defer other.Close()

	err = other.CreateSchema(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestResetFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	require.NoError(t, os.WriteFile(path, []byte("test content"), 0o644))

	ResetFile(path, testLogger())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// None of these may panic or fail.
	ResetFile(path, testLogger())
	ResetFile("", testLogger())
	ResetFile("/invalid/path/that/doesnt/exist", testLogger())
}

func TestWriteCSV(t *testing.T) {
	in := textBatch(1)
	in[0].Latitude = nil

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(models.TargetColumns(), ","), lines[0])
	require.Equal(t, "1,job1,,IT,key-job1,Test Street 1,,24.8474,http://example.com/job1,,2025-12-31", lines[1])
}

func TestCSVWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteListings(textBatch(3)))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), 4)
}
