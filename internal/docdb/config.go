package docdb

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"docprobe/internal/codec"
)

// DefaultGetTimeout is the read deadline applied by NewConfig. Writes carry
// no deadline by default.
const DefaultGetTimeout = 10 * time.Second

var (
	ErrNoURL           = errors.New("url not set")
	ErrInvalidURL      = errors.New("invalid url")
	ErrNoNamespaceOrDB = errors.New("namespace or database or both are not set")
	ErrNoMarshaler     = errors.New("marshaler is not set")
	ErrNoUnmarshaler   = errors.New("unmarshaler is not set")
)

// Config carries everything a Client needs to reach one database. Open
// validates it once; it is not consulted for changes afterwards.
type Config struct {
	// URL is the websocket endpoint of the database's RPC interface,
	// for example ws://localhost:8000/rpc.
	URL string

	Namespace string
	Database  string
	Username  string
	Password  string

	// GetTimeout bounds one Get operation end to end, including any
	// session establishment that operation triggers. Set to 0 to disable.
	GetTimeout time.Duration

	// SetTimeout bounds one Set operation the same way. Set to 0 to
	// disable.
	SetTimeout time.Duration

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	// Logger receives connection-level diagnostics. Nil disables them.
	Logger *zerolog.Logger
}

// NewConfig returns a Config for the given endpoint with the defaults the
// client ships with: CBOR on the wire, reads bounded at DefaultGetTimeout,
// writes unbounded.
func NewConfig(endpoint string) Config {
	c := codec.CBOR{}
	return Config{
		URL:         endpoint,
		GetTimeout:  DefaultGetTimeout,
		Marshaler:   c,
		Unmarshaler: c,
	}
}

func (c Config) validate() error {
	if c.URL == "" {
		return ErrNoURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidURL, c.URL)
	}
	if c.Namespace == "" || c.Database == "" {
		return ErrNoNamespaceOrDB
	}
	if c.Marshaler == nil {
		return ErrNoMarshaler
	}
	if c.Unmarshaler == nil {
		return ErrNoUnmarshaler
	}
	return nil
}
