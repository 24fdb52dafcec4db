// Package testserver provides an in-process interactive service that can be
// used for 'on-board' testing of the client packages. It upgrades plain HTTP
// connections to websockets, speaks the framed packet protocol including
// compression, and can also serve the discovery document that names itself
// as a candidate host.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
)

// TestInteractiveServer represents an interactive service endpoint that can
// be used for testing. Each websocket connection is wrapped by a
// SessionHandler that sends the server hello and dispatches inbound method
// packets to the configured request handlers.
type TestInteractiveServer struct {
	tctx assert.TestingT

	server    *httptest.Server
	discovery *httptest.Server
	upgrader  websocket.Upgrader

	mu              sync.Mutex
	sessionHandlers map[uint64]*SessionHandler
	reqHandlers     []RequestHandler
	lastHeader      http.Header
	nextSid         uint64

	extraHosts []string
	noHello    bool
	noHosts    bool
}

// NewTestInteractiveServer creates a server accepting websocket connections
// on an ephemeral localhost port. tctx will be used for handling failures;
// if the supplied value is nil, a default test context will be used. The
// behaviour of the session handlers can be configured with the
// WithRequestHandler and WithoutHello methods.
func NewTestInteractiveServer(tctx assert.TestingT) *TestInteractiveServer {
	ts := &TestInteractiveServer{sessionHandlers: map[uint64]*SessionHandler{}}

	if tctx == nil {
		tctx = ts
	}
	ts.tctx = tctx

	ts.server = httptest.NewServer(http.HandlerFunc(ts.serveConnection))
	ts.discovery = httptest.NewServer(http.HandlerFunc(ts.serveDiscovery))
	return ts
}

// URL delivers the websocket endpoint of the server.
func (ts *TestInteractiveServer) URL() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

// DiscoveryURL delivers an HTTP endpoint serving the candidate host list:
// any hosts supplied with WithExtraHosts first, then this server.
func (ts *TestInteractiveServer) DiscoveryURL() string {
	return ts.discovery.URL
}

// WithRequestHandler adds a request handler to the session handler queue.
// Handlers are consumed one per inbound method; an empty queue falls back to
// the default handler for the method.
func (ts *TestInteractiveServer) WithRequestHandler(rh RequestHandler) *TestInteractiveServer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.reqHandlers = append(ts.reqHandlers, rh)
	return ts
}

// WithExtraHosts prepends candidate addresses to the discovery document,
// ahead of this server. Used to exercise connection fail-over.
func (ts *TestInteractiveServer) WithExtraHosts(addresses ...string) *TestInteractiveServer {
	ts.extraHosts = append(ts.extraHosts, addresses...)
	return ts
}

// WithoutHello stops the server from sending its hello on connect, so that
// clients time out during session setup.
func (ts *TestInteractiveServer) WithoutHello() *TestInteractiveServer {
	ts.noHello = true
	return ts
}

// WithEmptyDiscovery makes the discovery document an empty list.
func (ts *TestInteractiveServer) WithEmptyDiscovery() *TestInteractiveServer {
	ts.noHosts = true
	return ts
}

// SessionHandler delivers the session handler associated with the specified
// session id. Ids are allocated from 1 in connection order.
func (ts *TestInteractiveServer) SessionHandler(id uint64) *SessionHandler {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	sh, ok := ts.sessionHandlers[id]
	if !ok {
		ts.tctx.Errorf("Failed to get handler for session %d", id)
		ts.tctx.FailNow()
	}
	return sh
}

// LastHandler delivers the handler of the most recent connection.
func (ts *TestInteractiveServer) LastHandler() *SessionHandler {
	return ts.SessionHandler(atomic.LoadUint64(&ts.nextSid))
}

// LastHandshake delivers the HTTP header presented by the most recent
// websocket handshake.
func (ts *TestInteractiveServer) LastHandshake() http.Header {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastHeader
}

// Close closes any active connections and prevents subsequent ones.
func (ts *TestInteractiveServer) Close() {
	ts.mu.Lock()
	handlers := make([]*SessionHandler, 0, len(ts.sessionHandlers))
	for _, sh := range ts.sessionHandlers {
		handlers = append(handlers, sh)
	}
	ts.mu.Unlock()

	for _, sh := range handlers {
		sh.Close()
	}
	ts.server.Close()
	ts.discovery.Close()
}

// Errorf provides testing.T compatibility if a test context is not provided
// when the test server is created.
func (ts *TestInteractiveServer) Errorf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// FailNow provides testing.T compatibility if a test context is not provided
// when the test server is created.
func (ts *TestInteractiveServer) FailNow() {
	runtime.Goexit()
}

func (ts *TestInteractiveServer) serveConnection(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	ts.lastHeader = r.Header.Clone()
	ts.mu.Unlock()

	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ts.tctx.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	sid := atomic.AddUint64(&ts.nextSid, 1)
	sh := newSessionHandler(ts, sid, conn)

	ts.mu.Lock()
	ts.sessionHandlers[sid] = sh
	sh.reqHandlers = ts.reqHandlers
	ts.mu.Unlock()

	sh.handle(!ts.noHello)
}

func (ts *TestInteractiveServer) serveDiscovery(w http.ResponseWriter, r *http.Request) {
	type host struct {
		Address string `json:"address"`
	}
	hosts := []host{}
	if !ts.noHosts {
		for _, address := range ts.extraHosts {
			hosts = append(hosts, host{Address: address})
		}
		hosts = append(hosts, host{Address: ts.URL()})
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(hosts)
	assert.NoError(ts.tctx, err, "Failed to encode discovery document")
}

// NewTestParticipant fabricates a participant identity with a generated
// session id, connected and last active at the supplied unix-millisecond
// timestamp.
func NewTestParticipant(username string, connectedAt uint64) common.Participant {
	return common.Participant{
		SessionID:   uuid.New().String(),
		Username:    username,
		ConnectedAt: connectedAt,
		LastInputAt: connectedAt,
		GroupID:     "default",
	}
}
