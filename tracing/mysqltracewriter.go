package tracing

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	// Need to use MySQL connections.
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A MySQLTraceWriter stores tasks in a MySQL database. Each run creates a
// fresh database named tsukuba_trace_ followed by a unique ID.
type MySQLTraceWriter struct {
	dbConnection

	pending   []Task
	batchSize int
}

// NewMySQLTraceWriter creates a MySQLTraceWriter. Init must be called before
// the first Write.
func NewMySQLTraceWriter() *MySQLTraceWriter {
	w := &MySQLTraceWriter{
		batchSize: 100000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// Init connects to the MySQL server and creates the trace database.
func (w *MySQLTraceWriter) Init() {
	w.dbConnection.init("")
	w.createDatabase()
}

func (w *MySQLTraceWriter) createDatabase() {
	w.dbName = "tsukuba_trace_" + xid.New().String()
	log.Printf("Trace is Collected in Database: %s\n", w.dbName)

	w.mustExecute("CREATE DATABASE " + w.dbName)
	w.mustExecute("USE " + w.dbName)

	w.createTable()
}

func (w *MySQLTraceWriter) createTable() {
	w.mustExecute(`
		create table trace
		(
			task_id    varchar(200) not null unique primary key,
			parent_id  varchar(200) null,
			kind       varchar(100) null,
			what       varchar(100) null,
			location   varchar(100) null,
			start_time float       null,
			end_time   float       null
		);
	`)

	w.mustExecute(`ALTER TABLE trace ENGINE=InnoDB;`)

	indexedColumns := []string{
		"task_id", "parent_id", "kind", "what",
		"location", "start_time", "end_time",
	}
	for _, col := range indexedColumns {
		w.mustExecute(fmt.Sprintf(
			"create index trace_%s_index on trace (%s);", col, col))
	}
}

// Write buffers one task, flushing when the batch is full.
func (w *MySQLTraceWriter) Write(task Task) {
	w.pending = append(w.pending, task)
	if len(w.pending) > w.batchSize {
		w.Flush()
	}
}

// Flush writes the buffered tasks to the database in one statement.
func (w *MySQLTraceWriter) Flush() {
	if len(w.pending) == 0 {
		return
	}

	var query strings.Builder
	query.WriteString("INSERT INTO trace VALUES ")

	vals := make([]interface{}, 0, len(w.pending)*7)
	for i, task := range w.pending {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString("(?, ?, ?, ?, ?, ?, ?)")

		vals = append(vals,
			task.ID, task.ParentID, task.Kind, task.What,
			task.Location, task.StartTime, task.EndTime)
	}

	stmt, err := w.Prepare(query.String())
	if err != nil {
		panic(err)
	}

	if _, err := stmt.Exec(vals...); err != nil {
		panic(err)
	}

	if err := stmt.Close(); err != nil {
		panic(err)
	}

	w.pending = nil
}

// dbConnection wraps a MySQL connection configured from TSUKUBA_TRACE_*
// environment variables.
type dbConnection struct {
	*sql.DB

	username  string
	password  string
	ipAddress string
	port      int
	dbName    string
}

func (c *dbConnection) init(dbName string) {
	c.dbName = dbName

	c.getCredentials()
	c.connect()
}

func (c *dbConnection) getCredentials() {
	c.username = os.Getenv("TSUKUBA_TRACE_USERNAME")
	if c.username == "" {
		panic(`trace username is not set, ` +
			`use environment variable TSUKUBA_TRACE_USERNAME to set it.`)
	}

	c.password = os.Getenv("TSUKUBA_TRACE_PASSWORD")

	c.ipAddress = os.Getenv("TSUKUBA_TRACE_IP")
	if c.ipAddress == "" {
		c.ipAddress = "127.0.0.1"
	}

	portString := os.Getenv("TSUKUBA_TRACE_PORT")
	if portString == "" {
		portString = "3306"
	}

	port, err := strconv.Atoi(portString)
	if err != nil {
		panic(err)
	}
	c.port = port
}

func (c *dbConnection) connect() {
	connectStr := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		c.username, c.password, c.ipAddress, c.port, c.dbName)

	db, err := sql.Open("mysql", connectStr)
	if err != nil {
		panic(err)
	}

	c.DB = db
}

func (c *dbConnection) mustExecute(query string) sql.Result {
	res, err := c.Exec(query)
	if err != nil {
		panic(err)
	}

	return res
}
