package client

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec"
	"github.com/damianoneill/interactive/common/codec/compress"
)

// The session layer multiplexes concurrent method calls and server events
// over a single duplex connection. Replies are correlated to requests
// strictly by packet id; server events are delivered to subscribers in
// sequence-number order.

// Session represents an interactive session.
type Session interface {
	// Call executes a method on the server and returns the reply packet.
	// A reply carrying a service error is returned alongside that error.
	Call(method string, params interface{}) (*common.Packet, error)

	// CallAsync submits a method for execution on the server, arranging for
	// the outcome to be sent to the supplied channel.
	CallAsync(method string, params interface{}, rchan chan *Result) error

	// Notify executes a method on the server with the discard flag set; no
	// reply is expected or awaited.
	Notify(method string, params interface{}) error

	// Subscribe registers a new subscription with the supplied buffer
	// capacity. Events that arrive while the buffer is full are dropped and
	// counted on the subscription. The channel is closed when the session
	// ends, for example if the remote server disconnects.
	Subscribe(buffer int) *Subscription

	// LastSequence delivers the highest sequence number seen from the server.
	LastSequence() uint64

	// Close closes the session and releases any associated resources.
	// Outstanding calls fail with a transport-closed error.
	Close()
}

// Result is the resolved outcome of an asynchronous method call; exactly one
// of Reply or Err is set.
type Result struct {
	Method string
	Reply  *common.Packet
	Err    error
}

// Subscription is a registration for server events.
type Subscription struct {
	events chan common.Event
	drops  uint64
	si     *sesImpl
}

// Events delivers server events in sequence order. The channel is closed
// when the subscription or the session is closed.
func (sub *Subscription) Events() <-chan common.Event {
	return sub.events
}

// Dropped delivers the number of events dropped because the subscriber was
// not keeping up.
func (sub *Subscription) Dropped() uint64 {
	return atomic.LoadUint64(&sub.drops)
}

// Close cancels the subscription and closes its channel.
func (sub *Subscription) Close() {
	if sub.si != nil {
		sub.si.unsubscribe(sub)
	}
}

type pendingCall struct {
	id       uint32
	method   string
	rchan    chan *Result
	timer    *time.Timer
	internal bool
}

type sesImpl struct {
	cfg   *Config
	t     Transport
	trace *ClientTrace

	pool []chan *Result

	helloch   chan struct{}
	helloOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	nextID uint32
	outSeq uint64
	inSeq  uint64

	sendMu sync.Mutex

	pmu     sync.Mutex
	pending map[uint32]*pendingCall
	closed  bool

	smu        sync.Mutex
	subs       []*Subscription
	subsClosed bool

	pchLock sync.Mutex

	droppedReplies uint64

	target string
}

const defaultSubscriptionBuffer = 32

// NewSession creates a new interactive session, using the supplied Transport.
// It waits for the server's hello before returning; the configured setup
// timeout bounds that wait.
func NewSession(ctx context.Context, t Transport, cfg *Config) (Session, error) {
	si := &sesImpl{
		cfg:    cfg,
		t:      t,
		target: t.Target(),
		trace:  ContextClientTrace(ctx),

		helloch: make(chan struct{}),
		done:    make(chan struct{}),
		pending: map[uint32]*pendingCall{},
	}

	// Launch goroutine to handle incoming frames from the server.
	go si.handleIncomingFrames()

	if err := si.waitForServerHello(); err != nil {
		si.trace.Error("Failed to receive hello", si.target, err)
		si.Close()
		return nil, err
	}
	return si, nil
}

func (si *sesImpl) Call(method string, params interface{}) (reply *common.Packet, err error) {
	si.trace.CallStart(method, false)

	defer func(begin time.Time) {
		si.trace.CallDone(method, false, err, time.Since(begin))
	}(time.Now())

	// Allocate a result channel
	rchan := si.allocChan()
	defer si.relChan(rchan)

	// Submit the request
	if err = si.send(method, params, rchan, true); err != nil {
		return nil, err
	}

	// Wait for the outcome.
	res := <-rchan
	if res.Err != nil {
		return nil, res.Err
	}

	reply = res.Reply
	err = mapError(method, reply)
	return reply, err
}

func (si *sesImpl) CallAsync(method string, params interface{}, rchan chan *Result) (err error) {
	si.trace.CallStart(method, true)

	defer func(begin time.Time) {
		si.trace.CallDone(method, true, err, time.Since(begin))
	}(time.Now())

	return si.send(method, params, rchan, false)
}

func (si *sesImpl) Notify(method string, params interface{}) (err error) {
	si.trace.CallStart(method, true)

	defer func(begin time.Time) {
		si.trace.CallDone(method, true, err, time.Since(begin))
	}(time.Now())

	raw, err := marshalParams(method, params)
	if err != nil {
		return err
	}

	si.sendMu.Lock()
	defer si.sendMu.Unlock()
	return si.writePacket(common.NewMethod(si.claimID(), si.claimSeq(), method, raw, true))
}

// send builds a method packet, installs the pending-request record and puts
// the frame on the wire. The record is installed before the write so that a
// reply cannot race registration; if the write fails the record is removed
// again and the failure is reported directly, unless another party resolved
// the call first.
func (si *sesImpl) send(method string, params interface{}, rchan chan *Result, internal bool) error {
	raw, err := marshalParams(method, params)
	if err != nil {
		return err
	}

	// Serialize sends so sequence numbers are monotonic on the wire.
	si.sendMu.Lock()
	defer si.sendMu.Unlock()

	pkt := common.NewMethod(si.claimID(), si.claimSeq(), method, raw, false)

	rec := &pendingCall{id: pkt.ID, method: method, rchan: rchan, internal: internal}
	if err = si.installPending(rec); err != nil {
		return err
	}

	timeout := time.Duration(si.cfg.RequestTimeoutSecs) * time.Second
	rec.timer = time.AfterFunc(timeout, func() {
		si.expirePending(rec.id, timeout)
	})

	if err = si.writePacket(pkt); err != nil {
		if taken := si.takePending(pkt.ID); taken != nil {
			taken.timer.Stop()
			return err
		}
		// Someone else resolved the call already; the outcome is on rchan.
		return nil
	}
	return nil
}

func (si *sesImpl) writePacket(pkt *common.Packet) error {
	body, err := codec.Encode(pkt)
	if err != nil {
		return err
	}
	return si.t.WriteFrame(body)
}

func (si *sesImpl) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	sub := &Subscription{events: make(chan common.Event, buffer), si: si}

	si.smu.Lock()
	defer si.smu.Unlock()
	if si.subsClosed {
		close(sub.events)
		return sub
	}
	si.subs = append(si.subs, sub)
	return sub
}

func (si *sesImpl) LastSequence() uint64 {
	return atomic.LoadUint64(&si.inSeq)
}

func (si *sesImpl) Close() {
	err := si.t.Close()
	if err != nil {
		si.trace.Error("Session close failed", si.target, err)
	}
}

func (si *sesImpl) waitForServerHello() (err error) {
	select {
	case <-si.helloch:
	case <-si.done:
		err = errors.New("connection closed while waiting for hello from server")
	case <-time.After(time.Duration(si.cfg.SetupTimeoutSecs) * time.Second):
		err = errors.New("failed to get hello from server")
	}
	return
}

func (si *sesImpl) handleIncomingFrames() {
	// When this goroutine finishes, make sure anybody waiting for a reply or
	// an event gets informed.
	defer si.shutdown()

	for {
		frame, err := si.t.ReadFrame()
		if err != nil {
			if isCodecError(err) {
				// A frame we could not decode does not end the session.
				si.trace.Error("Failed to decode frame", si.target, err)
				continue
			}
			break
		}

		pkts, err := codec.Decode(frame)
		if err != nil {
			si.trace.Error("Failed to parse frame", si.target, err)
			continue
		}

		si.handlePackets(pkts)
	}
}

// handlePackets processes one inbound frame's worth of packets. Replies are
// resolved as they appear; method packets are sorted by ascending sequence
// number before delivery, so batched events arrive in service order.
func (si *sesImpl) handlePackets(pkts []*common.Packet) {
	events := make([]*common.Packet, 0, len(pkts))
	for _, pkt := range pkts {
		si.observeSeq(pkt.Seq)
		if pkt.IsReply() {
			si.handleReply(pkt)
			continue
		}
		events = append(events, pkt)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	for _, pkt := range events {
		si.handleEvent(pkt)
	}
}

func (si *sesImpl) handleReply(pkt *common.Packet) {
	rec := si.takePending(pkt.ID)
	if rec == nil {
		// An extra reply is never fatal; count it and move on.
		atomic.AddUint64(&si.droppedReplies, 1)
		si.trace.ReplyDropped(pkt.ID)
		return
	}
	rec.timer.Stop()

	// A successful setCompression reply switches the transport scheme before
	// the call resolves, so the change lands on this frame boundary.
	if rec.method == common.MethodSetCompression && pkt.Error == nil {
		si.adoptReplyScheme(pkt)
	}

	si.resolve(rec, &Result{Method: rec.method, Reply: pkt})
}

func (si *sesImpl) handleEvent(pkt *common.Packet) {
	si.trace.EventReceived(pkt.Method, pkt.Seq)

	event := common.ParseEvent(pkt)
	switch ev := event.(type) {
	case *common.HelloEvent:
		si.helloOnce.Do(func() { close(si.helloch) })
		si.trace.HelloDone(si.target)
	case *common.SetCompressionEvent:
		si.adoptScheme(ev.Schemes)
	}

	si.smu.Lock()
	defer si.smu.Unlock()
	for _, sub := range si.subs {
		select {
		case sub.events <- event:
		default:
			atomic.AddUint64(&sub.drops, 1)
			si.trace.EventDropped(pkt.Method, pkt.Seq)
		}
	}
}

// adoptScheme applies the first recognized scheme from a preference list, so
// frames after the one that carried the event use the new scheme.
func (si *sesImpl) adoptScheme(names []string) {
	for _, name := range names {
		if compress.Known(name) {
			si.t.SetScheme(compress.Scheme(name))
			return
		}
	}
	if len(names) > 0 {
		si.t.SetScheme(compress.None)
	}
}

func (si *sesImpl) adoptReplyScheme(pkt *common.Packet) {
	var result struct {
		Scheme string `json:"scheme"`
	}
	if err := json.Unmarshal(pkt.Result, &result); err != nil {
		si.trace.Error("Failed to decode setCompression result", si.target, err)
		return
	}
	si.t.SetScheme(compress.Resolve(result.Scheme))
}

// shutdown runs when the read loop ends, from either side closing the
// connection. Pending calls fail deterministically and subscriber channels
// are closed.
func (si *sesImpl) shutdown() {
	_ = si.t.Close()
	si.doneOnce.Do(func() { close(si.done) })
	si.drainPending()
	si.closeSubscriptions()
}

func (si *sesImpl) installPending(rec *pendingCall) error {
	si.pmu.Lock()
	defer si.pmu.Unlock()
	if si.closed {
		return &common.ClosedError{Method: rec.method}
	}
	si.pending[rec.id] = rec
	return nil
}

func (si *sesImpl) takePending(id uint32) *pendingCall {
	si.pmu.Lock()
	defer si.pmu.Unlock()
	rec := si.pending[id]
	if rec != nil {
		delete(si.pending, id)
	}
	return rec
}

func (si *sesImpl) expirePending(id uint32, timeout time.Duration) {
	rec := si.takePending(id)
	if rec == nil {
		// The reply won the race; nothing to do.
		return
	}
	si.resolve(rec, &Result{Method: rec.method, Err: &common.TimeoutError{Method: rec.method, Timeout: timeout}})
}

func (si *sesImpl) drainPending() {
	si.pmu.Lock()
	drained := make([]*pendingCall, 0, len(si.pending))
	for id, rec := range si.pending {
		delete(si.pending, id)
		drained = append(drained, rec)
	}
	si.closed = true
	si.pmu.Unlock()

	for _, rec := range drained {
		rec.timer.Stop()
		si.resolve(rec, &Result{Method: rec.method, Err: &common.ClosedError{Method: rec.method}})
	}
}

// resolve completes a call exactly once. Internal channels are buffered and
// always drained by Call; caller-supplied channels get the result on a
// separate goroutine so a slow consumer cannot stall the read loop.
func (si *sesImpl) resolve(rec *pendingCall, res *Result) {
	if rec.internal {
		rec.rchan <- res
		return
	}
	go func(ch chan *Result, r *Result) {
		ch <- r
	}(rec.rchan, res)
}

func (si *sesImpl) unsubscribe(sub *Subscription) {
	si.smu.Lock()
	defer si.smu.Unlock()
	for i, s := range si.subs {
		if s == sub {
			si.subs = append(si.subs[:i], si.subs[i+1:]...)
			close(sub.events)
			return
		}
	}
}

func (si *sesImpl) closeSubscriptions() {
	si.smu.Lock()
	defer si.smu.Unlock()
	si.subsClosed = true
	for _, sub := range si.subs {
		close(sub.events)
	}
	si.subs = nil
}

func (si *sesImpl) observeSeq(seq uint64) {
	for {
		seen := atomic.LoadUint64(&si.inSeq)
		if seq <= seen || atomic.CompareAndSwapUint64(&si.inSeq, seen, seq) {
			return
		}
	}
}

func (si *sesImpl) claimID() uint32 {
	return atomic.AddUint32(&si.nextID, 1) - 1
}

func (si *sesImpl) claimSeq() uint64 {
	return atomic.AddUint64(&si.outSeq, 1) - 1
}

func (si *sesImpl) allocChan() (ch chan *Result) {
	si.pchLock.Lock()
	defer si.pchLock.Unlock()

	l := len(si.pool)
	if l == 0 {
		return make(chan *Result, 1)
	}

	si.pool, ch = si.pool[:l-1], si.pool[l-1]
	return
}

func (si *sesImpl) relChan(ch chan *Result) {
	si.pchLock.Lock()
	defer si.pchLock.Unlock()
	si.pool = append(si.pool, ch)
}

func marshalParams(method string, params interface{}) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage(`{}`), nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s params", method)
	}
	return raw, nil
}

func isCodecError(err error) bool {
	var cerr *common.CodecError
	return errors.As(err, &cerr)
}

// Map a reply to an error, if the reply is either null or carries a service
// error.
func mapError(method string, reply *common.Packet) (err error) {
	if reply == nil {
		err = io.ErrUnexpectedEOF
	} else if reply.Error != nil {
		reply.Error.Method = method
		err = reply.Error
	}
	return
}
