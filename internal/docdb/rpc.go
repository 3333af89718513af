package docdb

// Wire model for the database's RPC interface. Requests and responses are
// CBOR maps correlated by a client-generated ID; the field set is shared
// with the in-process fake server used in tests.

const requestIDLength = 16

const (
	methodUse    = "use"
	methodSignin = "signin"
	methodSelect = "select"
	methodMerge  = "merge"
)

type RPCRequest struct {
	ID     string `cbor:"id"`
	Method string `cbor:"method"`
	Params []any  `cbor:"params,omitempty"`
}

type RPCError struct {
	Code    int    `cbor:"code"`
	Message string `cbor:"message,omitempty"`
}

// RPCResponse carries either a result or an error, never both. The result
// type is generic so the client can defer decoding (T = cbor.RawMessage)
// while the fake server responds with plain Go values (T = any).
type RPCResponse[T any] struct {
	ID     string    `cbor:"id"`
	Error  *RPCError `cbor:"error,omitempty"`
	Result *T        `cbor:"result,omitempty"`
}
