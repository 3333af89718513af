package probe

import (
	"time"

	"docprobe/internal/docdb"
)

// completionHandle is the part of a Future the awaiting machinery needs.
type completionHandle interface {
	OnCompletion(func())
	Err() *docdb.Error
}

// futureCompletion blocks one caller until one completion handle reaches
// its terminal state. Every instance owns a fresh one-shot channel, so
// waits on different operations can never signal each other. A completion
// that fires before Await is called is not lost either: the callback has
// already closed the channel by then.
type futureCompletion struct {
	done chan struct{}
}

func newFutureCompletion(h completionHandle) *futureCompletion {
	fc := &futureCompletion{done: make(chan struct{})}
	h.OnCompletion(func() { close(fc.done) })
	return fc
}

// Await blocks until the handle passed at construction has completed.
func (fc *futureCompletion) Await() {
	<-fc.done
}

// awaitCompletion logs the lifecycle of one operation and blocks until it
// reaches a terminal state, returning the terminal error, nil on success.
// The elapsed time is measured on the monotonic clock, independently of
// the wall-clock stamps on the log lines.
func (r *Runner) awaitCompletion(h completionHandle, name string) *docdb.Error {
	r.rep.Logf("%s start", name)
	start := time.Now()

	newFutureCompletion(h).Await()

	elapsed := time.Since(start).Seconds()
	if err := h.Err(); err != nil {
		r.rep.Logf("%s FAILED in %.2fs: %s %s", name, elapsed, err.Code, err.Message)
		return err
	}
	r.rep.Logf("%s done in %.2fs", name, elapsed)
	return nil
}
