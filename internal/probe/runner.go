package probe

import (
	"fmt"
	"sort"

	"docprobe/internal/docdb"
)

const separator = "======================================="

// Runner executes the parsed operations strictly one at a time against a
// single document: each operation's completion handle is awaited before
// the next operation is issued. A failed operation is logged and the
// sequence continues; only an operation kind the switch does not know
// aborts the run.
type Runner struct {
	doc   *docdb.Document
	rep   *Reporter
	key   string
	value string
}

func NewRunner(doc *docdb.Document, rep *Reporter, key, value string) *Runner {
	return &Runner{doc: doc, rep: rep, key: key, value: value}
}

func (r *Runner) Run(ops []Operation) error {
	r.rep.Logf("Performing %d operations on document: %s", len(ops), r.doc.Path())
	for _, op := range ops {
		switch op {
		case OpRead:
			r.read()
		case OpWrite:
			r.write()
		default:
			r.rep.Logf("INTERNAL ERROR: unknown value for operation: %d", int(op))
			return fmt.Errorf("unknown operation: %d", int(op))
		}
	}
	return nil
}

func (r *Runner) read() {
	r.rep.Logf(separator)
	r.rep.Logf("Read: doc=%s", r.doc.Path())

	future := r.doc.Get()
	if err := r.awaitCompletion(future, "Document.Get()"); err != nil {
		return
	}

	fields := future.Result()
	r.rep.Logf("Document num key/value pairs: %d", len(fields))
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		r.rep.Logf("Entry #%d: %s=%v", i+1, name, fields[name])
	}
}

func (r *Runner) write() {
	r.rep.Logf(separator)
	r.rep.Logf("Write: doc=%s setting %s=%s", r.doc.Path(), r.key, r.value)

	future := r.doc.Set(map[string]any{r.key: r.value})
	r.awaitCompletion(future, "Document.Set()")
}
