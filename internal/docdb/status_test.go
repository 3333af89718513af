package docdb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeString(t *testing.T) {
	named := map[Code]string{
		OK:                 "OK",
		Cancelled:          "Cancelled",
		Unknown:            "Unknown",
		InvalidArgument:    "InvalidArgument",
		DeadlineExceeded:   "DeadlineExceeded",
		NotFound:           "NotFound",
		AlreadyExists:      "AlreadyExists",
		PermissionDenied:   "PermissionDenied",
		ResourceExhausted:  "ResourceExhausted",
		FailedPrecondition: "FailedPrecondition",
		Aborted:            "Aborted",
		OutOfRange:         "OutOfRange",
		Unimplemented:      "Unimplemented",
		Internal:           "Internal",
		Unavailable:        "Unavailable",
		DataLoss:           "DataLoss",
		Unauthenticated:    "Unauthenticated",
	}
	for code, want := range named {
		assert.Equal(t, want, code.String())
	}
}

func TestCodeStringUnnamed(t *testing.T) {
	// Server error codes pass through untouched, so values outside the
	// named range must still format usefully.
	assert.Equal(t, "42", Code(42).String())
	assert.Equal(t, "-32700", Code(-32700).String())
	assert.Equal(t, "17", Code(17).String())
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Code: DeadlineExceeded, Message: "select timed out"}
	assert.Equal(t, "DeadlineExceeded: select timed out", err.Error())
	assert.Equal(t, "DeadlineExceeded", fmt.Sprintf("%s", err.Code))
}
