package tracing

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A CSVTraceWriter appends tasks to a CSV file, buffering between flushes.
type CSVTraceWriter struct {
	path string
	file *os.File

	pending    []Task
	bufferSize int
}

// NewCSVTraceWriter creates a CSVTraceWriter that writes to path plus a
// .csv suffix. An empty path picks a unique tsukuba_trace_ name.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the CSV file and writes the header. Init refuses to clobber
// an existing file.
func (w *CSVTraceWriter) Init() {
	if w.path == "" {
		w.path = "tsukuba_trace_" + xid.New().String()
	}

	filename := w.path + ".csv"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	w.file = file

	fmt.Fprintf(file, "ID, ParentID, Kind, What, Location, Start, End\n")

	atexit.Register(func() {
		w.Flush()
		if err := w.file.Close(); err != nil {
			panic(err)
		}
	})
}

// Write buffers one task, flushing when the buffer is full.
func (w *CSVTraceWriter) Write(task Task) {
	w.pending = append(w.pending, task)
	if len(w.pending) >= w.bufferSize {
		w.Flush()
	}
}

// Flush writes the buffered tasks to the file.
func (w *CSVTraceWriter) Flush() {
	for _, task := range w.pending {
		fmt.Fprintf(w.file, "%s, %s, %s, %s, %s, %.10f, %.10f\n",
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Location,
			task.StartTime,
			task.EndTime,
		)
	}

	w.pending = nil
}
