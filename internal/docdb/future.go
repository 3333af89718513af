package docdb

import "sync"

// FutureStatus describes where a Future is in its lifecycle.
type FutureStatus int

const (
	// FutureStatusInvalid is the status of the zero Future, which is not
	// associated with any operation. Operations never return one.
	FutureStatusInvalid FutureStatus = iota
	FutureStatusPending
	FutureStatusComplete
)

// Future is the completion handle of one asynchronous operation. It starts
// out pending and transitions to complete exactly once; the result, error
// and status are immutable from then on.
//
// A Future is safe for concurrent use. The completion callback is invoked
// on the goroutine that completed the operation, or on the registering
// goroutine when registration happens after completion.
type Future struct {
	mu     sync.Mutex
	status FutureStatus
	fields map[string]any
	err    *Error
	onDone func()
}

func newFuture() *Future {
	return &Future{status: FutureStatusPending}
}

func (f *Future) Status() FutureStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Err returns the operation's terminal error. It is nil while the Future is
// pending and nil after a successful completion, so callers must check the
// status (or wait for completion) before treating nil as success.
func (f *Future) Err() *Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Result returns the document fields produced by a completed read. It is
// nil while pending, nil on failure, and nil for operations that produce
// no fields.
func (f *Future) Result() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// OnCompletion registers fn to run once the Future completes. At most one
// callback is retained; a later registration replaces an earlier one. If
// the Future has already completed, fn runs immediately on the calling
// goroutine before OnCompletion returns.
func (f *Future) OnCompletion(fn func()) {
	f.mu.Lock()
	if f.status == FutureStatusComplete {
		f.mu.Unlock()
		fn()
		return
	}
	f.onDone = fn
	f.mu.Unlock()
}

// complete records the outcome and fires any registered callback. Only the
// first call has any effect.
func (f *Future) complete(fields map[string]any, err *Error) bool {
	f.mu.Lock()
	if f.status != FutureStatusPending {
		f.mu.Unlock()
		return false
	}
	f.status = FutureStatusComplete
	f.fields = fields
	f.err = err
	fn := f.onDone
	f.onDone = nil
	f.mu.Unlock()

	// Run the callback outside the lock so it may inspect the Future.
	if fn != nil {
		fn()
	}
	return true
}
