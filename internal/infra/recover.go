package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f and restarts it after a panic. maxPanics bounds the
// number of restarts: zero makes the first panic fatal, a negative value
// restarts forever. Restarts happen on a fresh goroutine, so the original
// call returns once f panics.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		entry := log.WithFields(log.Fields{"context": "recover", "job": id})
		entry.Errorf("panic: %v at %s", r, panicOrigin())
		switch {
		case maxPanics == 0:
			entry.Fatal("restart limit exhausted")
		case maxPanics > 0:
			entry.Debugf("restarting, %d restarts left", maxPanics-1)
			go GoRecoverable(maxPanics-1, id, f)
		default:
			entry.Debug("restarting")
			go GoRecoverable(maxPanics, id, f)
		}
	}()
	f()
}

// panicOrigin walks past the runtime frames to the first frame of the code
// that panicked.
func panicOrigin() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", frame.Function, frame.Line)
		}
		if !more {
			break
		}
	}
	return "unknown"
}
