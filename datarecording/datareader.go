package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams narrows and pages a table query.
type QueryParams struct {
	// Where is the WHERE clause without the "WHERE" keyword, such as
	// "start_time > ? AND kind = ?".
	Where string

	// Args fills the placeholders in Where.
	Args []any

	// Limit caps the number of returned records. Zero means no cap.
	Limit int

	// Offset skips records, for pagination.
	Offset int

	// OrderBy is the sort expression without the "ORDER BY" keywords,
	// such as "start_time DESC".
	OrderBy string
}

// A DataReader reads tables written by a DataRecorder back into structs.
type DataReader interface {
	// MapTable declares the struct type that rows of a table scan into.
	// A table must be mapped before it can be queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped table names.
	ListTables() []string

	// Query reads rows from a table. It returns the selected page of rows
	// and the total number of rows matching the Where clause.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the underlying database.
	Close() error
}

type sqliteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens a SQLite file written by a DataRecorder.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB wraps an already-open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for table := range r.typeMap {
		tables = append(tables, table)
	}

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("no mapping found for table: %s", tableName)
	}

	totalCount, err := r.countRows(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(
		ctx, buildSelectQuery(tableName, params), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	return scanRows(rows, structType), totalCount, nil
}

func buildSelectQuery(tableName string, params QueryParams) string {
	var q strings.Builder

	fmt.Fprintf(&q, "SELECT * FROM %s", tableName)

	if params.Where != "" {
		q.WriteString(" WHERE " + params.Where)
	}

	if params.OrderBy != "" {
		q.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", params.Limit)
		if params.Offset > 0 {
			fmt.Fprintf(&q, " OFFSET %d", params.Offset)
		}
	}

	return q.String()
}

func (r *sqliteReader) countRows(
	ctx context.Context,
	tableName string,
	params QueryParams,
) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)
	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	var count int
	err := r.DB.QueryRowContext(ctx, query, params.Args...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// scanRows scans every row into a newly allocated struct of the mapped
// type, matching columns to fields by name. Columns without a matching
// field are discarded.
func scanRows(rows *sql.Rows, structType reflect.Type) []any {
	columns, err := rows.Columns()
	if err != nil {
		return nil
	}

	fieldIndex := make(map[string]int)
	for i := 0; i < structType.NumField(); i++ {
		fieldIndex[structType.Field(i).Name] = i
	}

	var results []any
	for rows.Next() {
		structPtr := reflect.New(structType)
		structVal := structPtr.Elem()

		targets := make([]interface{}, len(columns))
		for i, col := range columns {
			if fieldIdx, ok := fieldIndex[col]; ok {
				targets[i] = structVal.Field(fieldIdx).Addr().Interface()
			} else {
				var discard interface{}
				targets[i] = &discard
			}
		}

		if err := rows.Scan(targets...); err != nil {
			panic(err)
		}

		results = append(results, structPtr.Interface())
	}

	if err := rows.Err(); err != nil {
		panic(err)
	}

	return results
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}
