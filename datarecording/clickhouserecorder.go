package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// clickhouseRecorder is a DataRecorder that writes into a ClickHouse
// database. Tables use the MergeTree engine and entries are sent in native
// protocol batches.
type clickhouseRecorder struct {
	conn clickhouse.Conn
	mu   sync.Mutex

	batchSize  int
	tables     map[string]*table
	entryCount int

	execRecorder *execRecorder
}

// NewClickHouseRecorder creates a DataRecorder that stores entries in a
// ClickHouse database. The database must already exist. addr is given as
// "host:port" using the native protocol port.
func NewClickHouseRecorder(
	addr, database, username, password string,
) DataRecorder {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	err = conn.Ping(context.Background())
	if err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := &clickhouseRecorder{
		conn:      conn,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	r.execRecorder = newExecRecorderWithWriter(r)
	r.execRecorder.start()

	return r
}

func (r *clickhouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := reflect.TypeOf(sampleEntry)
	columns := make([]string, 0, types.NumField())

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		columnType, ok := clickhouseColumnType(field.Type.Kind())
		if !ok {
			panic(fmt.Sprintf("entry field %s is not a scalar type",
				field.Name))
		}

		columns = append(columns, field.Name+" "+columnType)
	}

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) "+
			"ENGINE = MergeTree() ORDER BY tuple()",
		tableName, strings.Join(columns, ",\n\t"))

	err := r.conn.Exec(context.Background(), ddl)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{
		structType: types,
		entries:    []any{},
	}
}

func clickhouseColumnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool:
		return "Bool", true
	case reflect.Int, reflect.Int8, reflect.Int16,
		reflect.Int32, reflect.Int64:
		return "Int64", true
	case reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64:
		return "UInt64", true
	case reflect.Float32, reflect.Float64:
		return "Float64", true
	case reflect.String:
		return "String", true
	default:
		return "", false
	}
}

func (r *clickhouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)

	r.entryCount++
	if r.entryCount >= r.batchSize {
		r.flushLocked()
	}
}

func (r *clickhouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for table := range r.tables {
		tables = append(tables, table)
	}

	return tables
}

func (r *clickhouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushLocked()
}

func (r *clickhouseRecorder) flushLocked() {
	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
		if err != nil {
			panic(err)
		}

		for _, entry := range table.entries {
			err := batch.Append(rowValues(entry)...)
			if err != nil {
				panic(err)
			}
		}

		err = batch.Send()
		if err != nil {
			panic(err)
		}

		table.entries = nil
	}

	r.entryCount = 0
}

// rowValues widens the entry fields to the column types the tables declare.
func rowValues(entry any) []any {
	value := reflect.ValueOf(entry)
	values := make([]any, 0, value.NumField())

	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)

		switch field.Kind() {
		case reflect.Bool:
			values = append(values, field.Bool())
		case reflect.Int, reflect.Int8, reflect.Int16,
			reflect.Int32, reflect.Int64:
			values = append(values, field.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16,
			reflect.Uint32, reflect.Uint64:
			values = append(values, field.Uint())
		case reflect.Float32, reflect.Float64:
			values = append(values, field.Float())
		default:
			values = append(values, field.String())
		}
	}

	return values
}

func (r *clickhouseRecorder) Close() {
	if r.execRecorder != nil {
		r.execRecorder.end()
	}

	r.Flush()

	err := r.conn.Close()
	if err != nil {
		panic(err)
	}
}
