// Package datarecording provides structured storage for simulation results.
// Entries are plain structs. A DataRecorder buffers them in memory and writes
// them in batches into a backing database, one table per entry type.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table that stores entries shaped like
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData writes a same-type entry into a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns a slice containing names of all tables.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes the remaining entries and closes the database.
	Close()
}

// NewDataRecorder creates a DataRecorder backed by a SQLite database. If path
// is empty, a unique filename is generated.
func NewDataRecorder(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	w.execRecorder = newExecRecorderWithWriter(w)
	w.execRecorder.start()

	return w
}

// NewDataRecorderWithDB creates a DataRecorder that writes into an already
// opened database.
func NewDataRecorderWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter writes buffered entries into a SQLite database.
type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int

	execRecorder *execRecorder
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = "tsukuba_data_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
}

// entryFieldsMustBeScalar rejects entry types whose fields cannot map to a
// SQL column.
func entryFieldsMustBeScalar(entry any) error {
	types := reflect.TypeOf(entry)

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		if !isScalarKind(field.Type.Kind()) {
			return errors.New("entry field " + field.Name +
				" is not a scalar type")
		}
	}

	return nil
}

func isScalarKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// CreateTable creates a table whose columns are the fields of sampleEntry.
// Fields tagged `tsukuba_data:"index"` or `tsukuba_data:"unique"` get an
// index or a unique index.
func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if err := entryFieldsMustBeScalar(sampleEntry); err != nil {
		panic(err)
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	w.mustExecute(
		`CREATE TABLE ` + tableName + ` (` + "\n\t" + fields + "\n" + `);`)

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		entries:    []any{},
	}

	w.createIndexes(tableName, sampleEntry)
}

func (w *sqliteWriter) createIndexes(tableName string, sampleEntry any) {
	types := reflect.TypeOf(sampleEntry)

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		tag, ok := field.Tag.Lookup("tsukuba_data")
		if !ok {
			continue
		}

		switch tag {
		case "index":
			w.mustExecute(fmt.Sprintf(
				"CREATE INDEX %s_%s_index ON %s (%s);",
				tableName, field.Name, tableName, field.Name))
		case "unique":
			w.mustExecute(fmt.Sprintf(
				"CREATE UNIQUE INDEX %s_%s_uindex ON %s (%s);",
				tableName, field.Name, tableName, field.Name))
		}
	}
}

// InsertData buffers one entry, flushing if the buffer reaches the batch
// size. The table must have been created first.
func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(w.tables))
	for t := range w.tables {
		tables = append(tables, t)
	}

	return tables
}

// Flush writes all the buffered entries in one transaction.
func (w *sqliteWriter) Flush() {
	if w.entryCount == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for tableName, t := range w.tables {
		w.flushTable(tableName, t)
	}

	w.entryCount = 0
}

func (w *sqliteWriter) flushTable(tableName string, t *table) {
	if len(t.entries) == 0 {
		return
	}

	stmt := w.prepareInsert(tableName, t.entries[0])
	defer stmt.Close()

	for _, entry := range t.entries {
		value := reflect.ValueOf(entry)

		row := make([]any, 0, value.NumField())
		for i := 0; i < value.NumField(); i++ {
			row = append(row, value.Field(i).Interface())
		}

		if _, err := stmt.Exec(row...); err != nil {
			panic(err)
		}
	}

	t.entries = nil
}

func (w *sqliteWriter) prepareInsert(tableName string, entry any) *sql.Stmt {
	placeholders := structs.Names(entry)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := w.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		panic(err)
	}

	return stmt
}

func (w *sqliteWriter) Close() {
	if w.execRecorder != nil {
		w.execRecorder.end()
	}

	w.Flush()

	if err := w.DB.Close(); err != nil {
		panic(err)
	}
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
