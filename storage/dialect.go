package storage

import (
	"fmt"
	"strings"

	"vantaa-jobs-etl/models"
)

type dialect struct {
	driverName  string
	idTypes     map[ColumnType]string
	floatType   string
	dateType    string
	idTypeQuery string
	placeholder func(n int) string
	// dateArg converts a date into the driver argument the date column wants.
	dateArg func(d models.Date) any
}

var sqliteDialect = dialect{
	driverName: "sqlite",
	idTypes:    map[ColumnType]string{ColumnInteger: "INTEGER", ColumnText: "TEXT"},
	floatType:  "REAL",
	dateType:   "TEXT",
	idTypeQuery: `
SELECT type
FROM pragma_table_info(?)
WHERE name = 'id';`,
	placeholder: func(int) string { return "?" },
	dateArg:     func(d models.Date) any { return d.String() },
}

var postgresDialect = dialect{
	driverName: "postgres",
	idTypes:    map[ColumnType]string{ColumnInteger: "BIGINT", ColumnText: "TEXT"},
	floatType:  "DOUBLE PRECISION",
	dateType:   "DATE",
	idTypeQuery: `
SELECT data_type
FROM information_schema.columns
WHERE table_schema = current_schema()
  AND table_name = $1
  AND column_name = 'id';`,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	dateArg:     func(d models.Date) any { return d.Time },
}

var dialects = map[string]dialect{
	"sqlite":   sqliteDialect,
	"postgres": postgresDialect,
	"pgx":      withDriver(postgresDialect, "pgx"),
}

func withDriver(d dialect, name string) dialect {
	d.driverName = name
	return d
}

func (d dialect) createTable(idType ColumnType) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id %s PRIMARY KEY NOT NULL,
  title TEXT,
  description TEXT,
  field TEXT,
  job_key TEXT,
  address TEXT,
  latitude %s,
  longitude %s,
  url TEXT,
  start_date %s,
  end_date %s
);`, TableName, d.idTypes[idType], d.floatType, d.floatType, d.dateType, d.dateType)
}

func (d dialect) insert() string {
	cols := models.TargetColumns()
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		TableName, strings.Join(cols, ", "), strings.Join(marks, ", "))
}
