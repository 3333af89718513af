package probe

import (
	"bytes"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docprobe/internal/docdb"
)

// fakeHandle implements completionHandle with the same callback contract as
// a real Future: last registration wins, immediate invocation if already
// complete.
type fakeHandle struct {
	mu   sync.Mutex
	cb   func()
	err  *docdb.Error
	done bool
}

func (h *fakeHandle) OnCompletion(fn func()) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		fn()
		return
	}
	h.cb = fn
	h.mu.Unlock()
}

func (h *fakeHandle) Err() *docdb.Error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHandle) complete(err *docdb.Error) {
	h.mu.Lock()
	h.done = true
	h.err = err
	cb := h.cb
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func newTestRunner() (*Runner, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Runner{rep: NewReporter(&buf)}, &buf
}

func TestAwaitCompletionSuccess(t *testing.T) {
	r, buf := newTestRunner()
	h := &fakeHandle{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.complete(nil)
	}()

	err := r.awaitCompletion(h, "Document.Get()")
	assert.Nil(t, err)

	out := buf.String()
	assert.Contains(t, out, "Document.Get() start")
	assert.Regexp(t, regexp.MustCompile(`Document\.Get\(\) done in \d+\.\d{2}s`), out)
	assert.NotContains(t, out, "FAILED")
}

func TestAwaitCompletionFailure(t *testing.T) {
	r, buf := newTestRunner()
	h := &fakeHandle{}

	go func() {
		time.Sleep(10 * time.Millisecond)
		h.complete(&docdb.Error{Code: docdb.DeadlineExceeded, Message: "took too long"})
	}()

	err := r.awaitCompletion(h, "Document.Get()")
	require.NotNil(t, err)
	assert.Equal(t, docdb.DeadlineExceeded, err.Code)

	assert.Regexp(t,
		regexp.MustCompile(`Document\.Get\(\) FAILED in \d+\.\d{2}s: DeadlineExceeded took too long`),
		buf.String())
}

func TestAwaitCompletionAlreadyComplete(t *testing.T) {
	// A handle that completed before the wait started must not block: the
	// registration-time callback covers the lost-wakeup window.
	r, buf := newTestRunner()
	h := &fakeHandle{}
	h.complete(nil)

	done := make(chan struct{})
	go func() {
		assert.Nil(t, r.awaitCompletion(h, "Document.Set()"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("awaitCompletion hung on an already-complete handle")
	}
	assert.Contains(t, buf.String(), "Document.Set() done in")
}

func TestFutureCompletionWaitsAreIndependent(t *testing.T) {
	// Two in-flight waits must not share completion state: finishing one
	// operation may not release a waiter parked on a different one.
	first := &fakeHandle{}
	second := &fakeHandle{}

	fcFirst := newFutureCompletion(first)
	fcSecond := newFutureCompletion(second)

	released := make(chan struct{})
	go func() {
		fcFirst.Await()
		close(released)
	}()

	second.complete(nil)
	fcSecond.Await()

	select {
	case <-released:
		t.Fatal("completing one operation released the waiter of another")
	case <-time.After(50 * time.Millisecond):
	}

	first.complete(nil)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by its own operation completing")
	}
}
