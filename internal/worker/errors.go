package worker

import "fmt"

// panicError wraps a recovered panic value so it can travel the normal
// job-failure path.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("internal panic: %v", e.value)
}
