package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec/compress"
)

// The transport layer owns the single duplex websocket connection. It frames
// whole messages through the compression pipeline and is the only component
// permitted to mutate the compression scheme; swaps land between frames,
// never within one.

// State describes the lifecycle of a transport connection. Transitions are
// one way within a single connection instance.
type State int32

// Define the transport states.
const (
	Closed State = iota
	Dialing
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Dialing:
		return "dialing"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "closed"
	}
}

// Transport interface defines what characteristics make up an interactive
// transport layer object.
type Transport interface {
	// ReadFrame delivers the next inbound frame payload, decoded under the
	// current compression scheme. It is intended to be called from a single
	// reader goroutine.
	ReadFrame() ([]byte, error)

	// WriteFrame encodes a frame payload under the current compression scheme
	// and sends it. Safe for concurrent use.
	WriteFrame([]byte) error

	// Scheme delivers the compression scheme currently in force.
	Scheme() compress.Scheme

	// SetScheme adopts a new compression scheme at the next frame boundary.
	SetScheme(compress.Scheme)

	// State delivers the current connection state.
	State() State

	// Target delivers the endpoint this transport is connected to.
	Target() string

	// Close closes the connection and releases any associated resources.
	Close() error
}

type tImpl struct {
	conn   *websocket.Conn
	target string
	trace  *ClientTrace

	writeMu      sync.Mutex
	writeTimeout time.Duration

	schemeMu sync.RWMutex
	scheme   compress.Scheme

	state     int32
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewWebsocketTransport dials the target endpoint with the supplied
// handshake headers and delivers a transport ready for framing. The
// configured setup timeout bounds the websocket handshake.
func NewWebsocketTransport(ctx context.Context, target string, hdr http.Header, cfg *Config) (rt Transport, err error) {
	trace := ContextClientTrace(ctx)
	trace.DialStart(target)

	defer func(begin time.Time) {
		trace.DialDone(target, err, time.Since(begin))
	}(time.Now())

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: time.Duration(cfg.SetupTimeoutSecs) * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, target, hdr) // nolint: bodyclose
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "handshake with %s rejected with status %d", target, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "failed to dial %s", target)
	}

	t := &tImpl{
		conn:         conn,
		target:       target,
		trace:        trace,
		writeTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		scheme:       compress.None,
		done:         make(chan struct{}),
	}
	t.storeState(Open)

	if cfg.PingIntervalSecs > 0 {
		t.startKeepalive(time.Duration(cfg.PingIntervalSecs) * time.Second)
	}
	return t, nil
}

func (t *tImpl) ReadFrame() (frame []byte, err error) {
	t.trace.ReadStart()

	defer func(begin time.Time) {
		t.trace.ReadDone(frame, err, time.Since(begin))
	}(time.Now())

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		_ = t.Close()
		return nil, errors.Wrap(err, "connection read failed")
	}

	frame, err = compress.Decode(t.Scheme(), data)
	if err != nil {
		return nil, &common.CodecError{Cause: err}
	}
	return frame, nil
}

func (t *tImpl) WriteFrame(frame []byte) (err error) {
	t.trace.WriteStart(frame)

	defer func(begin time.Time) {
		t.trace.WriteDone(frame, err, time.Since(begin))
	}(time.Now())

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.State() != Open {
		return &common.ClosedError{}
	}

	scheme := t.Scheme()
	data, err := compress.Encode(scheme, frame)
	if err != nil {
		return &common.CodecError{Cause: err}
	}

	messageType := websocket.TextMessage
	if scheme != compress.None {
		messageType = websocket.BinaryMessage
	}

	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return errors.Wrap(t.conn.WriteMessage(messageType, data), "connection write failed")
}

func (t *tImpl) Scheme() compress.Scheme {
	t.schemeMu.RLock()
	defer t.schemeMu.RUnlock()
	return t.scheme
}

// SetScheme waits for any in-flight write to finish, so that no frame is
// encoded under one scheme and sent under another.
func (t *tImpl) SetScheme(s compress.Scheme) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.schemeMu.Lock()
	defer t.schemeMu.Unlock()

	if t.scheme == s {
		return
	}
	from := t.scheme
	t.scheme = s
	t.trace.CompressionChanged(from, s)
}

func (t *tImpl) State() State {
	return State(atomic.LoadInt32(&t.state))
}

func (t *tImpl) Target() string {
	return t.target
}

func (t *tImpl) storeState(s State) {
	atomic.StoreInt32(&t.state, int32(s))
}

// Close closes the connection, attempting a clean websocket close handshake
// before tearing down the socket. It is safe to call from any goroutine and
// more than once.
func (t *tImpl) Close() error {
	t.closeOnce.Do(func() {
		t.storeState(Closing)
		close(t.done)

		deadline := time.Now().Add(t.writeTimeout)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		t.closeErr = t.conn.Close()
		t.storeState(Closed)
		t.trace.ConnectionClosed(t.target, t.closeErr)
	})
	return t.closeErr
}

// startKeepalive arranges for pings at the supplied interval and extends the
// read deadline whenever the peer answers. Two missed pongs end the
// connection via the read loop's deadline error.
func (t *tImpl) startKeepalive(interval time.Duration) {
	pongWait := 2 * interval
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(t.writeTimeout)
				if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-t.done:
				return
			}
		}
	}()
}
