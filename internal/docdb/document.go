package docdb

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"docprobe/internal/codec"
)

// Document is a handle on a single document, addressed by a
// collection/identifier path such as "jobs/current". Handles are cheap;
// they hold no state beyond the path and the owning client.
type Document struct {
	c    *Client
	path string
}

func (d *Document) Path() string {
	return d.path
}

// Get fetches the document's current fields. The client keeps no local
// cache, so every Get is an authoritative round trip. The returned Future
// completes with NotFound if the document does not exist.
func (d *Document) Get() *Future {
	f := newFuture()
	go func() {
		if d.path == "" {
			f.complete(nil, &Error{Code: InvalidArgument, Message: "document path is empty"})
			return
		}
		ctx, cancel := opContext(d.c.conf.GetTimeout)
		defer cancel()

		raw, cerr := d.c.call(ctx, methodSelect, d.path)
		if cerr != nil {
			f.complete(nil, cerr)
			return
		}
		f.complete(decodeFields(d.c.conf.Unmarshaler, raw, d.path))
	}()
	return f
}

// Set merges the given field values into the document, creating it if
// absent. Fields not named are left untouched.
func (d *Document) Set(fields map[string]any) *Future {
	f := newFuture()
	go func() {
		if d.path == "" {
			f.complete(nil, &Error{Code: InvalidArgument, Message: "document path is empty"})
			return
		}
		ctx, cancel := opContext(d.c.conf.SetTimeout)
		defer cancel()

		_, cerr := d.c.call(ctx, methodMerge, d.path, fields)
		f.complete(nil, cerr)
	}()
	return f
}

// opContext derives the context governing one operation. Zero means no
// deadline. The returned cancel func must always be called.
func opContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// decodeFields turns a select result into document fields. An absent or
// null result means the document does not exist.
func decodeFields(unm codec.Unmarshaler, raw cbor.RawMessage, path string) (map[string]any, *Error) {
	if len(raw) == 0 {
		return nil, &Error{Code: NotFound, Message: fmt.Sprintf("document not found: %s", path)}
	}
	var fields map[string]any
	if err := unm.Unmarshal(raw, &fields); err != nil {
		return nil, &Error{Code: DataLoss, Message: fmt.Sprintf("decoding %s fields: %v", path, err)}
	}
	if fields == nil {
		return nil, &Error{Code: NotFound, Message: fmt.Sprintf("document not found: %s", path)}
	}
	return fields, nil
}
