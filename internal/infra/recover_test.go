package infra

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRecoverableRestartsAfterPanic(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	done := make(chan struct{})

	GoRecoverable(2, "flaky", func() {
		if calls.Add(1) <= 2 {
			panic("boom")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not restarted after panicking")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGoRecoverableReturnsCleanly(t *testing.T) {
	t.Parallel()
	ran := false
	GoRecoverable(-1, "steady", func() { ran = true })
	if !ran {
		t.Fatal("job did not run")
	}
}
