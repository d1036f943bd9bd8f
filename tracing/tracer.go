package tracing

// A Tracer consumes the task stream of the components it is attached to.
// Implementations aggregate, persist, or forward the tasks.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}
