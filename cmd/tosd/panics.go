package main

import (
	"os"
	"runtime/debug"

	"github.com/tos-network/tos/logs"
)

// spawn runs f in a new goroutine, recovering and logging any panic instead
// of letting it bring down the whole daemon. Grounded on the teacher's
// util/panics.GoroutineWrapperFunc, narrowed to this binary's single
// background consumer rather than kept as a shared package.
func spawn(f func()) {
	go func() {
		defer handlePanic(log)
		f()
	}()
}

func handlePanic(log logs.Logger) {
	err := recover()
	if err == nil {
		return
	}
	log.Criticalf("fatal error: %+v", err)
	log.Criticalf("stack trace: %s", debug.Stack())
	os.Exit(1)
}
