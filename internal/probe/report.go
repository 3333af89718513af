package probe

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter writes the harness's outcome log: one timestamped line per
// event, in a fixed format that stays grep-friendly across runs. It is
// separate from diagnostic logging, which goes to stderr via zerolog.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out, now: time.Now}
}

// Logf writes one line of the form ">>>>> <timestamp> -- <message>".
func (r *Reporter) Logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, ">>>>> %s -- %s\n", r.now().Format(time.ANSIC), fmt.Sprintf(format, args...))
}
