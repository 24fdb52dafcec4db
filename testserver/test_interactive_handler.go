package testserver

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec"
	"github.com/damianoneill/interactive/common/codec/compress"
)

// SessionHandler represents the server side of one active interactive
// connection.
type SessionHandler struct {
	t assert.TestingT

	conn *websocket.Conn
	sid  uint64

	// Serialises frame writes (avoiding contention between sending events and
	// request replies) and guards the compression scheme, so scheme swaps
	// land between frames.
	encLock sync.Mutex
	scheme  compress.Scheme

	nextID uint64
	outSeq uint64

	// The queue of handlers used to process incoming method packets. If the
	// queue is empty, a packet is processed by the default handler for its
	// method.
	reqHandlers []RequestHandler

	mu       sync.Mutex
	reqCount int
	lastReq  *common.Packet

	closeOnce sync.Once
}

// RequestHandler is a function type that will be invoked by the session
// handler to handle an inbound method packet.
type RequestHandler func(h *SessionHandler, req *common.Packet)

// EchoRequestHandler replies to a method packet with a result holding the
// request parameters.
var EchoRequestHandler = func(h *SessionHandler, req *common.Packet) {
	h.Reply(req.ID, req.Params, nil)
}

// FailingRequestHandler replies to a method packet with an error.
var FailingRequestHandler = func(h *SessionHandler, req *common.Packet) {
	h.Reply(req.ID, nil, &common.RPCError{Code: 4000, Message: "oops"})
}

// CloseRequestHandler closes the connection on request receipt.
var CloseRequestHandler = func(h *SessionHandler, req *common.Packet) {
	h.Close()
}

// IgnoreRequestHandler does nothing on receipt of a request.
var IgnoreRequestHandler = func(h *SessionHandler, req *common.Packet) {}

// CompressionRequestHandler accepts the first recognized scheme from a
// setCompression preference list, replying under the old scheme and encoding
// every subsequent frame under the new one.
var CompressionRequestHandler = func(h *SessionHandler, req *common.Packet) {
	var params struct {
		Scheme []string `json:"scheme"`
	}
	err := json.Unmarshal(req.Params, &params)
	assert.NoError(h.t, err, "Failed to decode setCompression params")

	chosen := compress.None
	for _, name := range params.Scheme {
		if compress.Known(name) {
			chosen = compress.Scheme(name)
			break
		}
	}

	h.Reply(req.ID, map[string]string{"scheme": string(chosen)}, nil)
	h.SetScheme(chosen)
}

// ReplyHandler builds a handler replying with the supplied result.
func ReplyHandler(result interface{}) RequestHandler {
	return func(h *SessionHandler, req *common.Packet) {
		h.Reply(req.ID, result, nil)
	}
}

func newSessionHandler(ts *TestInteractiveServer, sid uint64, conn *websocket.Conn) *SessionHandler {
	return &SessionHandler{t: ts.tctx, conn: conn, sid: sid, scheme: compress.None}
}

// handle runs the connection: server hello first, then the method dispatch
// loop until the connection ends.
func (h *SessionHandler) handle(sendHello bool) {
	if sendHello {
		h.SendEvent(common.MethodHello, nil)
	}

	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			break
		}

		frame, err := compress.Decode(h.Scheme(), data)
		assert.NoError(h.t, err, "Failed to decompress client frame")

		pkts, err := codec.Decode(frame)
		assert.NoError(h.t, err, "Failed to decode client frame")

		for _, pkt := range pkts {
			if pkt.Type == common.TypeMethod {
				h.handleMethod(pkt)
			}
		}
	}
}

func (h *SessionHandler) handleMethod(req *common.Packet) {
	h.mu.Lock()
	h.reqCount++
	h.lastReq = req
	h.mu.Unlock()

	if req.Discard {
		return
	}
	h.nextReqHandler(req.Method)(h, req)
}

func (h *SessionHandler) nextReqHandler(method string) (reqh RequestHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reqHandlers) > 0 {
		h.reqHandlers, reqh = h.reqHandlers[1:], h.reqHandlers[0]
		return reqh
	}
	if method == common.MethodSetCompression {
		return CompressionRequestHandler
	}
	return EchoRequestHandler
}

// ReqCount delivers the number of method packets received by the session,
// discards included.
func (h *SessionHandler) ReqCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reqCount
}

// LastReq delivers the most recent method packet received by the session.
func (h *SessionHandler) LastReq() *common.Packet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastReq
}

// Scheme delivers the compression scheme currently in force.
func (h *SessionHandler) Scheme() compress.Scheme {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	return h.scheme
}

// SetScheme adopts a new compression scheme at the next frame boundary.
func (h *SessionHandler) SetScheme(s compress.Scheme) {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	h.scheme = s
}

// Reply sends a reply packet correlated to the supplied request id, carrying
// either the result or the error.
func (h *SessionHandler) Reply(id uint32, result interface{}, rpcErr *common.RPCError) {
	var raw json.RawMessage
	if result != nil {
		body, err := json.Marshal(result)
		assert.NoError(h.t, err, "Failed to encode reply result")
		raw = body
	}
	h.SendFrame(common.NewReply(id, h.claimSeq(), raw, rpcErr))
}

// NewEvent builds a seq-stamped method packet without sending it, so that
// tests can assemble batch frames, in or out of order.
func (h *SessionHandler) NewEvent(method string, params interface{}) *common.Packet {
	raw := json.RawMessage(`{}`)
	if params != nil {
		body, err := json.Marshal(params)
		assert.NoError(h.t, err, "Failed to encode event params")
		raw = body
	}
	id := uint32(atomic.AddUint64(&h.nextID, 1) - 1)
	return common.NewMethod(id, h.claimSeq(), method, raw, true)
}

// SendEvent sends one method packet to the client.
func (h *SessionHandler) SendEvent(method string, params interface{}) *SessionHandler {
	h.SendFrame(h.NewEvent(method, params))
	return h
}

// SendFrame sends the supplied packets to the client as a single frame,
// encoded under the current compression scheme.
func (h *SessionHandler) SendFrame(pkts ...*common.Packet) {
	body, err := codec.Encode(pkts...)
	assert.NoError(h.t, err, "Failed to encode frame")

	h.encLock.Lock()
	defer h.encLock.Unlock()

	data, err := compress.Encode(h.scheme, body)
	assert.NoError(h.t, err, "Failed to compress frame")

	messageType := websocket.TextMessage
	if h.scheme != compress.None {
		messageType = websocket.BinaryMessage
	}
	// Writes may race the client closing the connection; that is not a
	// handler failure.
	_ = h.conn.WriteMessage(messageType, data)
}

// Close initiates session tear-down by closing the underlying connection.
func (h *SessionHandler) Close() {
	h.closeOnce.Do(func() {
		h.conn.Close() // nolint: errcheck, gosec
	})
}

func (h *SessionHandler) claimSeq() uint64 {
	return atomic.AddUint64(&h.outSeq, 1) - 1
}
