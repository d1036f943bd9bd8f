package tracing

import (
	"database/sql"
	"strings"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DataRecorderTraceReader reads traces written by a DBTracer with a SQLite
// backend.
type DataRecorderTraceReader struct {
	*sql.DB
}

// NewDataRecorderTraceReader opens a trace database file.
func NewDataRecorderTraceReader(filename string) *DataRecorderTraceReader {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	return &DataRecorderTraceReader{
		DB: db,
	}
}

// ListComponents returns all the locations used in the trace.
func (r *DataRecorderTraceReader) ListComponents() []string {
	rows, err := r.Query("SELECT DISTINCT Location FROM trace")
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var components []string
	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			panic(err)
		}

		components = append(components, component)
	}

	return components
}

// ListTasks queries tasks from the trace database.
func (r *DataRecorderTraceReader) ListTasks(query TaskQuery) []Task {
	sqlStr, args := buildTaskQuery(query)

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		tasks = append(tasks, scanTask(rows, query.EnableParentTask))
	}

	return tasks
}

func scanTask(rows *sql.Rows, withParent bool) Task {
	t := Task{}

	targets := []any{
		&t.ID, &t.ParentID, &t.Kind, &t.What,
		&t.Location, &t.StartTime, &t.EndTime,
	}

	if withParent {
		pt := &Task{}
		t.ParentTask = pt
		targets = append(targets,
			&pt.ID, &pt.ParentID, &pt.Kind, &pt.What,
			&pt.Location, &pt.StartTime, &pt.EndTime)
	}

	if err := rows.Scan(targets...); err != nil {
		panic(err)
	}

	return t
}

func buildTaskQuery(query TaskQuery) (string, []any) {
	var q strings.Builder

	q.WriteString(`
		SELECT
			t.ID,
			t.ParentID,
			t.Kind,
			t.What,
			t.Location,
			t.StartTime,
			t.EndTime
	`)

	if query.EnableParentTask {
		q.WriteString(`,
			pt.ID as parent_id,
			pt.ParentID as parent_parent_id,
			pt.Kind as parent_kind,
			pt.What as parent_what,
			pt.Location as parent_location,
			pt.StartTime as parent_start_time,
			pt.EndTime as parent_end_time
		`)
	}

	q.WriteString(" FROM trace t ")

	if query.EnableParentTask {
		q.WriteString(" LEFT JOIN trace pt ON t.ParentID = pt.ID ")
	}

	args := appendTaskConditions(&q, query)

	return q.String(), args
}

func appendTaskConditions(q *strings.Builder, query TaskQuery) []any {
	q.WriteString(" WHERE 1=1 ")

	var args []any

	addCondition := func(column, value string) {
		if value == "" {
			return
		}

		q.WriteString(" AND " + column + " = ? ")
		args = append(args, value)
	}

	addCondition("t.ID", query.ID)
	addCondition("t.ParentID", query.ParentID)
	addCondition("t.Kind", query.Kind)
	addCondition("t.Location", query.Location)

	if query.EnableTimeRange {
		q.WriteString(" AND t.EndTime > ? AND t.StartTime < ? ")
		args = append(args, query.StartTime, query.EndTime)
	}

	return args
}
