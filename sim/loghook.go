package sim

import "log"

// A LogHook writes a line of text for each hook invocation it receives.
type LogHook interface {
	Hook
}

// LogHookBase carries the logger that concrete log hooks write into.
type LogHookBase struct {
	*log.Logger
}
