// Package fakedb provides an in-process fake of the document database's
// websocket RPC interface for testing purposes. It keeps documents in
// memory and includes the failure controls the probe scenarios need:
// delayed connection acceptance, per-method response delays, per-method
// error stubs and per-method connection drops.
//
// The WebSocket server is implemented using the `gws` library.
package fakedb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"

	"docprobe/internal/codec"
	"docprobe/internal/docdb"
)

// Request records one RPC observed by the server: the method, when the
// request was read, and when its response was written. Tests use the two
// stamps to prove operations never overlap.
type Request struct {
	Method   string
	Received time.Time
	Replied  time.Time
}

// session tracks what one connection has established so far. Data methods
// require both a namespace/database selection and a signin.
type session struct {
	namespace string
	database  string
	signedIn  bool
}

// Server is a fake document database. Use "127.0.0.1:0" as the address to
// bind to a random available port.
type Server struct {
	addr string
	ln   net.Listener
	ws   *gws.Server

	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler

	mu          sync.RWMutex
	docs        map[string]map[string]any
	sessions    map[*gws.Conn]*session
	delays      map[string]time.Duration
	stubs       map[string]*docdb.RPCError
	drops       map[string]int
	acceptDelay time.Duration
	records     []*Request
	opened      int
	user        string
	pass        string
}

type handler struct {
	server *Server
}

func NewServer(addr string) *Server {
	c := codec.CBOR{}

	s := &Server{
		addr:        addr,
		marshaler:   c,
		unmarshaler: c,
		docs:        make(map[string]map[string]any),
		sessions:    make(map[*gws.Conn]*session),
		delays:      make(map[string]time.Duration),
		stubs:       make(map[string]*docdb.RPCError),
		drops:       make(map[string]int),
	}

	s.ws = gws.NewServer(&handler{server: s}, &gws.ServerOption{
		// Don't enforce sub-protocol negotiation for testing flexibility.
	})
	s.ws.OnError = func(_ net.Conn, err error) {
		if !closedNetworkError(err) {
			log.Printf("fakedb: server error: %v", err)
		}
	}
	return s
}

// Start begins accepting connections. Accepted connections are held for the
// configured accept delay before the websocket handshake proceeds, which is
// how tests simulate a slow-to-respond endpoint.
func (s *Server) Start() error {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = &slowListener{Listener: ln, delay: func() time.Duration {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.acceptDelay
	}}

	go func() {
		if err := s.ws.RunListener(s.ln); err != nil && !closedNetworkError(err) {
			log.Printf("fakedb: server error: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener. Established connections are left to die with
// the test process.
func (s *Server) Stop() error {
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// Address returns the actual address the server is listening on, useful
// when binding to port 0.
func (s *Server) Address() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// URL returns the websocket endpoint clients should dial.
func (s *Server) URL() string {
	return "ws://" + s.Address() + "/rpc"
}

// Seed stores fields under path, replacing any existing document.
func (s *Server) Seed(path string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = copyFields(fields)
}

// Fields returns a copy of the document at path, or nil if it does not
// exist.
func (s *Server) Fields(path string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.docs[path]
	if !ok {
		return nil
	}
	return copyFields(fields)
}

// SetAcceptDelay holds each newly accepted connection for d before the
// handshake proceeds. Zero restores normal accepts.
func (s *Server) SetAcceptDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptDelay = d
}

// DelayMethod delays the response to every request for method by d.
func (s *Server) DelayMethod(method string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[method] = d
}

// FailMethod makes every request for method fail with the given code and
// message, taking precedence over normal handling.
func (s *Server) FailMethod(method string, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[method] = &docdb.RPCError{Code: code, Message: message}
}

// DropMethod arms one connection drop: the next request for method closes
// the underlying network connection without a reply, so the client sees the
// session die mid-operation. Each call arms a single drop.
func (s *Server) DropMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops[method]++
}

// SetCredentials requires future signins to present exactly this user and
// password. By default any credentials are accepted.
func (s *Server) SetCredentials(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.pass = user, pass
}

// Requests returns a copy of every RPC observed so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// Connections returns how many websocket connections have been opened
// against the server so far.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opened
}

// slowListener delays handing accepted connections to the websocket server,
// so the client sees an endpoint that is reachable but slow to respond.
type slowListener struct {
	net.Listener
	delay func() time.Duration
}

func (l *slowListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if d := l.delay(); d > 0 {
		time.Sleep(d)
	}
	return conn, nil
}

func (h *handler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.opened++
	// No session until use is called.
	h.server.mu.Unlock()
}

func (h *handler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.sessions, socket)
	h.server.mu.Unlock()
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("fakedb: writing pong: %v", err)
	}
}

func (h *handler) OnPong(*gws.Conn, []byte) {
}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	var req docdb.RPCRequest
	if err := h.server.unmarshaler.Unmarshal(message.Bytes(), &req); err != nil {
		h.sendError(socket, "", int(docdb.InvalidArgument), "parse error: "+err.Error())
		return
	}
	h.handle(socket, &req)
}

func (h *handler) handle(socket *gws.Conn, req *docdb.RPCRequest) {
	s := h.server

	rec := &Request{Method: req.Method, Received: time.Now()}
	s.mu.Lock()
	s.records = append(s.records, rec)
	delay := s.delays[req.Method]
	stub := s.stubs[req.Method]
	drop := s.drops[req.Method] > 0
	if drop {
		s.drops[req.Method]--
	}
	s.mu.Unlock()

	if drop {
		// No reply and no close frame: the client sees the connection die.
		socket.NetConn().Close()
		return
	}

	defer func() {
		s.mu.Lock()
		rec.Replied = time.Now()
		s.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if stub != nil {
		h.sendError(socket, req.ID, stub.Code, stub.Message)
		return
	}

	switch req.Method {
	case "use":
		h.handleUse(socket, req)
	case "signin":
		h.handleSignin(socket, req)
	case "select":
		h.handleSelect(socket, req)
	case "merge":
		h.handleMerge(socket, req)
	default:
		h.sendError(socket, req.ID, int(docdb.Unimplemented), "unknown method: "+req.Method)
	}
}

func (h *handler) handleUse(socket *gws.Conn, req *docdb.RPCRequest) {
	if len(req.Params) < 2 {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "use requires namespace and database parameters")
		return
	}
	namespace, ok := req.Params[0].(string)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "namespace must be a string")
		return
	}
	database, ok := req.Params[1].(string)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "database must be a string")
		return
	}

	h.server.mu.Lock()
	sess := h.server.sessions[socket]
	if sess == nil {
		sess = &session{}
		h.server.sessions[socket] = sess
	}
	sess.namespace = namespace
	sess.database = database
	h.server.mu.Unlock()

	h.sendResult(socket, req.ID, nil)
}

func (h *handler) handleSignin(socket *gws.Conn, req *docdb.RPCRequest) {
	if len(req.Params) < 1 {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "signin requires credentials")
		return
	}
	creds, ok := req.Params[0].(map[string]any)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "credentials must be a map")
		return
	}
	user, _ := creds["user"].(string)
	pass, _ := creds["pass"].(string)

	h.server.mu.Lock()
	sess := h.server.sessions[socket]
	wantUser, wantPass := h.server.user, h.server.pass
	h.server.mu.Unlock()

	if sess == nil {
		h.sendError(socket, req.ID, int(docdb.FailedPrecondition), "namespace and database not selected")
		return
	}
	if wantUser != "" && (user != wantUser || pass != wantPass) {
		h.sendError(socket, req.ID, int(docdb.Unauthenticated), "invalid credentials")
		return
	}

	sess.signedIn = true
	h.sendResult(socket, req.ID, "fake-token")
}

// authorized enforces the session preconditions shared by the data methods.
// It replies with the appropriate error itself and reports whether handling
// may continue.
func (h *handler) authorized(socket *gws.Conn, id string) bool {
	h.server.mu.RLock()
	sess := h.server.sessions[socket]
	h.server.mu.RUnlock()

	if sess == nil || sess.namespace == "" || sess.database == "" {
		h.sendError(socket, id, int(docdb.FailedPrecondition), "namespace and database not selected")
		return false
	}
	if !sess.signedIn {
		h.sendError(socket, id, int(docdb.Unauthenticated), "not signed in")
		return false
	}
	return true
}

func (h *handler) handleSelect(socket *gws.Conn, req *docdb.RPCRequest) {
	if !h.authorized(socket, req.ID) {
		return
	}
	if len(req.Params) < 1 {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "select requires a document path")
		return
	}
	path, ok := req.Params[0].(string)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "document path must be a string")
		return
	}

	h.server.mu.RLock()
	fields, exists := h.server.docs[path]
	var cp map[string]any
	if exists {
		cp = copyFields(fields)
	}
	h.server.mu.RUnlock()

	if !exists {
		// An absent result tells the client the document does not exist.
		h.sendResult(socket, req.ID, nil)
		return
	}
	h.sendResult(socket, req.ID, cp)
}

func (h *handler) handleMerge(socket *gws.Conn, req *docdb.RPCRequest) {
	if !h.authorized(socket, req.ID) {
		return
	}
	if len(req.Params) < 2 {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "merge requires a document path and fields")
		return
	}
	path, ok := req.Params[0].(string)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "document path must be a string")
		return
	}
	fields, ok := req.Params[1].(map[string]any)
	if !ok {
		h.sendError(socket, req.ID, int(docdb.InvalidArgument), "fields must be a map")
		return
	}

	h.server.mu.Lock()
	doc := h.server.docs[path]
	if doc == nil {
		doc = make(map[string]any)
		h.server.docs[path] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	cp := copyFields(doc)
	h.server.mu.Unlock()

	h.sendResult(socket, req.ID, cp)
}

func (h *handler) sendResult(socket *gws.Conn, id string, result any) {
	var resp docdb.RPCResponse[any]
	resp.ID = id
	if result != nil {
		resp.Result = &result
	}

	data, err := h.server.marshaler.Marshal(resp)
	if err != nil {
		h.sendError(socket, id, int(docdb.Internal), fmt.Sprintf("encoding response: %v", err))
		return
	}
	if err := socket.WriteMessage(gws.OpcodeBinary, data); err != nil {
		log.Printf("fakedb: writing response: %v", err)
	}
}

func (h *handler) sendError(socket *gws.Conn, id string, code int, message string) {
	var resp docdb.RPCResponse[any]
	resp.ID = id
	resp.Error = &docdb.RPCError{Code: code, Message: message}

	data, err := h.server.marshaler.Marshal(resp)
	if err != nil {
		log.Printf("fakedb: encoding error response: %v", err)
		return
	}
	if err := socket.WriteMessage(gws.OpcodeBinary, data); err != nil {
		log.Printf("fakedb: writing error response: %v", err)
	}
}

func copyFields(fields map[string]any) map[string]any {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return cp
}

func closedNetworkError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}
