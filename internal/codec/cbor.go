package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	em cbor.EncMode
	dm cbor.DecMode
)

func init() {
	var err error
	if em, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	// Decode maps into map[string]any rather than map[any]any so document
	// fields come back with string keys without a conversion pass.
	opts := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}
	if dm, err = opts.DecMode(); err != nil {
		panic(err)
	}
}

// CBOR implements Marshaler and Unmarshaler over the CBOR wire format.
// The zero value is ready to use.
type CBOR struct{}

func (CBOR) Marshal(v any) ([]byte, error) {
	return em.Marshal(v)
}

func (CBOR) Unmarshal(data []byte, dst any) error {
	return dm.Unmarshal(data, dst)
}
