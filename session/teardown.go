package session

import (
	"fmt"
	"log/slog"
)

// step is one independently guarded teardown action.
type step struct {
	name string
	fn   func() error
}

// teardown runs every step in order. A step that returns an error or panics
// is logged and does not stop the remaining steps. It returns the number of
// failed steps.
func teardown(log *slog.Logger, steps []step) int {
	failed := 0
	for _, st := range steps {
		if err := runStep(st); err != nil {
			failed++
			log.Error("error closing browser resource", "resource", st.name, "error", err)
		}
	}
	return failed
}

func runStep(st step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.fn()
}
