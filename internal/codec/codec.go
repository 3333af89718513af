// Package codec abstracts the wire encoding used between the client and the
// database's RPC interface, so the transport and the fake server used in
// tests speak through the same pair of interfaces.
package codec

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}
