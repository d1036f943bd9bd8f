package datarecording

import (
	"os"
	"strings"
	"time"
)

type execInfo struct {
	Property string
	Value    string
}

// execRecorder logs how the program was executed into the exec_info table.
type execRecorder struct {
	tablename string
	recorder  DataRecorder
	entries   []execInfo
}

func newExecRecorderWithWriter(writer DataRecorder) *execRecorder {
	e := &execRecorder{
		tablename: "exec_info",
		recorder:  writer,
	}

	e.recorder.CreateTable(e.tablename, execInfo{})

	return e
}

func (e *execRecorder) start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, execInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.entries = append(e.entries, execInfo{"Command", cmd})

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	e.entries = append(e.entries, execInfo{"Working Directory", cwd})
}

// end writes the collected entries along with the program end time.
func (e *execRecorder) end() {
	for _, entry := range e.entries {
		e.recorder.InsertData(e.tablename, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.InsertData(e.tablename, execInfo{"End Time", endTime})

	e.entries = nil
}
