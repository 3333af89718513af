// Package docdb is a minimal client for a remote document database exposing
// a websocket RPC interface. Sessions are established lazily: Open performs
// no I/O, and the first operation on a fresh client dials the endpoint,
// selects the namespace and database, and signs in before sending its own
// request, all inside that operation's deadline window.
package docdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"docprobe/internal/rand"
)

var defaultDialer = &websocket.Dialer{
	Proxy:             http.ProxyFromEnvironment,
	HandshakeTimeout:  45 * time.Second,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// Client multiplexes the operations of any number of Document handles over
// a single lazily-established connection. It is safe for concurrent use,
// though operations issued concurrently share the one connection and the
// one session.
type Client struct {
	conf   Config
	log    zerolog.Logger
	dialer *websocket.Dialer

	stateMu   sync.Mutex
	conn      *websocket.Conn
	sessionUp bool
	closed    bool

	writeMu sync.Mutex

	pendingMu sync.RWMutex
	pending   map[string]chan RPCResponse[cbor.RawMessage]
}

// Open validates conf and returns a Client. No connection is attempted here;
// the first operation pays for session establishment.
func Open(conf Config) (*Client, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if conf.Logger != nil {
		log = *conf.Logger
	}
	return &Client{
		conf:    conf,
		log:     log,
		dialer:  defaultDialer,
		pending: make(map[string]chan RPCResponse[cbor.RawMessage]),
	}, nil
}

// Document returns a handle on the document at path, typically a
// collection/identifier pair such as "jobs/current". The handle performs
// no I/O until one of its operations is invoked.
func (c *Client) Document(path string) *Document {
	return &Document{c: c, path: path}
}

// Close tears down the connection if one is up. In-flight operations fail
// with Unavailable; operations issued afterwards fail with Cancelled.
func (c *Client) Close() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}

	// Best-effort close frame first, then drop the transport.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.conn = nil
	c.sessionUp = false
	return err
}

// call runs one RPC, establishing the session first if none is up.
func (c *Client) call(ctx context.Context, method string, params ...any) (cbor.RawMessage, *Error) {
	conn, cerr := c.session(ctx)
	if cerr != nil {
		return nil, cerr
	}
	return c.exchange(ctx, conn, method, params...)
}

// session returns a live connection, dialing and signing in if none is up.
// Establishment runs entirely inside the caller's context, so the operation
// that finds no session pays the whole cost against its own deadline.
func (c *Client) session(ctx context.Context) (*websocket.Conn, *Error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.closed {
		return nil, &Error{Code: Cancelled, Message: "client is closed"}
	}
	if c.sessionUp && c.conn != nil {
		return c.conn, nil
	}

	start := time.Now()
	c.log.Debug().Str("url", c.conf.URL).Msg("establishing session")

	conn, res, err := c.dialer.DialContext(ctx, c.conf.URL, nil)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		return nil, dialStatus(ctx, c.conf.URL, err)
	}

	c.conn = conn
	go c.readLoop(conn)

	if _, cerr := c.exchange(ctx, conn, methodUse, c.conf.Namespace, c.conf.Database); cerr != nil {
		c.dropLocked(conn)
		return nil, cerr
	}
	creds := map[string]any{"user": c.conf.Username, "pass": c.conf.Password}
	if _, cerr := c.exchange(ctx, conn, methodSignin, creds); cerr != nil {
		c.dropLocked(conn)
		return nil, cerr
	}

	c.sessionUp = true
	c.log.Debug().Dur("elapsed", time.Since(start)).Msg("session established")
	return conn, nil
}

// dropLocked discards conn after a failed session setup. stateMu must be
// held.
func (c *Client) dropLocked(conn *websocket.Conn) {
	if c.conn == conn {
		c.conn = nil
		c.sessionUp = false
	}
	conn.Close()
}

// exchange sends one request over conn and waits for its response or for
// the context to expire. A response arriving after the caller gave up is
// discarded by the read loop, so it can never complete a later operation.
func (c *Client) exchange(ctx context.Context, conn *websocket.Conn, method string, params ...any) (cbor.RawMessage, *Error) {
	if ctx.Err() != nil {
		return nil, ctxStatus(ctx, method)
	}

	id := rand.NewRequestID(requestIDLength)
	ch, err := c.addPending(id)
	if err != nil {
		return nil, &Error{Code: Internal, Message: err.Error()}
	}
	defer c.removePending(id)

	data, err := c.conf.Marshaler.Marshal(RPCRequest{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, &Error{Code: Internal, Message: fmt.Sprintf("encoding %s request: %v", method, err)}
	}

	c.log.Debug().Str("id", id).Str("method", method).Msg("sending request")

	c.writeMu.Lock()
	werr := conn.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	if werr != nil {
		return nil, &Error{Code: Unavailable, Message: fmt.Sprintf("sending %s request: %v", method, werr)}
	}

	select {
	case <-ctx.Done():
		return nil, ctxStatus(ctx, method)
	case resp, ok := <-ch:
		if !ok {
			return nil, &Error{Code: Unavailable, Message: fmt.Sprintf("connection closed awaiting %s response", method)}
		}
		if resp.Error != nil {
			return nil, &Error{Code: Code(resp.Error.Code), Message: resp.Error.Message}
		}
		if resp.Result == nil {
			return nil, nil
		}
		return *resp.Result, nil
	}
}

func (c *Client) addPending(id string) (chan RPCResponse[cbor.RawMessage], error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if _, ok := c.pending[id]; ok {
		return nil, fmt.Errorf("duplicate request id %q", id)
	}
	// Buffered so a response racing the waiter's deadline never blocks the
	// read loop.
	ch := make(chan RPCResponse[cbor.RawMessage], 1)
	c.pending[id] = ch
	return ch, nil
}

func (c *Client) removePending(id string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	delete(c.pending, id)
}

// readLoop owns conn's read side, routing responses to their waiters until
// the connection fails or is closed.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connBroken(conn, err)
			return
		}

		var resp RPCResponse[cbor.RawMessage]
		if err := c.conf.Unmarshaler.Unmarshal(data, &resp); err != nil {
			c.log.Warn().Err(err).Msg("discarding undecodable frame")
			continue
		}

		c.pendingMu.RLock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.RUnlock()
		if !ok {
			c.log.Debug().Str("id", resp.ID).Msg("discarding response with no waiter")
			continue
		}
		select {
		case ch <- resp:
		default:
			c.log.Warn().Str("id", resp.ID).Msg("discarding duplicate response")
		}
	}
}

// connBroken fails every in-flight exchange and marks the session down so
// the next operation re-establishes it. Waiters are unblocked before the
// state lock is taken: the caller of session may be holding it while
// waiting on a response channel.
func (c *Client) connBroken(conn *websocket.Conn, err error) {
	c.log.Debug().Err(err).Msg("connection lost")

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.stateMu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.sessionUp = false
	}
	c.stateMu.Unlock()

	conn.Close()
}

func ctxStatus(ctx context.Context, method string) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Code: DeadlineExceeded, Message: fmt.Sprintf("deadline exceeded awaiting %s response", method)}
	}
	return &Error{Code: Cancelled, Message: fmt.Sprintf("%s cancelled", method)}
}

func dialStatus(ctx context.Context, endpoint string, err error) *Error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Code: DeadlineExceeded, Message: fmt.Sprintf("deadline exceeded while establishing session to %s", endpoint)}
		}
		return &Error{Code: Cancelled, Message: fmt.Sprintf("session establishment to %s cancelled", endpoint)}
	}
	return &Error{Code: Unavailable, Message: fmt.Sprintf("unable to reach %s: %v", endpoint, err)}
}
