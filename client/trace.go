package client

import (
	"context"
	"log"
	"time"

	"github.com/imdario/mergo"

	"github.com/damianoneill/interactive/common/codec/compress"
)

// unique type to prevent assignment.
type clientEventContextKey struct{}

// ContextClientTrace returns the Trace associated with the
// provided context. If none, it returns nil.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientEventContextKey{}).(*ClientTrace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithClientTrace returns a new context based on the provided parent
// ctx. Interactive client requests made with the returned context will use
// the provided trace hooks
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	ctx = context.WithValue(ctx, clientEventContextKey{}, trace)
	return ctx
}

// ClientTrace defines a structure for handling trace events
//nolint: golint
type ClientTrace struct {
	// DiscoverStart is called when starting to query the host discovery endpoint.
	DiscoverStart func(url string)

	// DiscoverDone is called when the discovery query completes, with err indicating
	// whether it was successful.
	DiscoverDone func(url string, hosts []string, err error, d time.Duration)

	// ConnectStart is called when starting to establish a session with a candidate endpoint.
	ConnectStart func(target string)

	// ConnectDone is called when the session establishment attempt completes, with err
	// indicating whether it was successful.
	ConnectDone func(target string, err error, d time.Duration)

	// DialStart is called when starting to dial a candidate endpoint.
	DialStart func(target string)

	// DialDone is called when dial completes.
	DialDone func(target string, err error, d time.Duration)

	// HelloDone is called when the hello method has been received from the server.
	HelloDone func(target string)

	// ConnectionEstablished is called exactly once per connect, after the hello
	// exchange has completed on the winning endpoint.
	ConnectionEstablished func(target string)

	// ConnectionClosed is called after a transport connection has been closed, with
	// err indicating any error condition.
	ConnectionClosed func(target string, err error)

	// ReadStart is called before a frame read from the underlying transport.
	ReadStart func()

	// ReadDone is called after a frame read from the underlying transport.
	ReadDone func(frame []byte, err error, d time.Duration)

	// WriteStart is called before a frame write to the underlying transport.
	WriteStart func(frame []byte)

	// WriteDone is called after a frame write to the underlying transport.
	WriteDone func(frame []byte, err error, d time.Duration)

	// Error is called after an error condition has been detected.
	Error func(context, target string, err error)

	// EventReceived is called when a server event has been received.
	EventReceived func(method string, seq uint64)

	// EventDropped is called when an event is dropped because a subscriber is not ready.
	EventDropped func(method string, seq uint64)

	// ReplyDropped is called when a reply arrives for which no request is pending.
	ReplyDropped func(id uint32)

	// CompressionChanged is called when the transport adopts a new compression scheme.
	CompressionChanged func(from, to compress.Scheme)

	// CallStart is called before the execution of a method call.
	CallStart func(method string, async bool)

	// CallDone is called after the execution of a method call.
	CallDone func(method string, async bool, err error, d time.Duration)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &ClientTrace{
	Error: func(context, target string, err error) {
		log.Printf("INTERACTIVE-Error context:%s target:%s err:%v\n", context, target, err)
	},
}

// MetricLoggingHooks provides a set of hooks that will log network metrics.
var MetricLoggingHooks = &ClientTrace{
	DiscoverDone: func(url string, hosts []string, err error, d time.Duration) {
		log.Printf("INTERACTIVE-DiscoverDone url:%s hosts:%d err:%v took:%dms\n", url, len(hosts), err, d.Milliseconds())
	},
	ConnectDone: func(target string, err error, d time.Duration) {
		log.Printf("INTERACTIVE-ConnectDone target:%s err:%v took:%dms\n", target, err, d.Milliseconds())
	},
	DialDone: func(target string, err error, d time.Duration) {
		log.Printf("INTERACTIVE-DialDone target:%s err:%v took:%dms\n", target, err, d.Milliseconds())
	},
	ReadDone: func(frame []byte, err error, d time.Duration) {
		log.Printf("INTERACTIVE-ReadDone len:%d err:%v took:%dms\n", len(frame), err, d.Milliseconds())
	},
	WriteDone: func(frame []byte, err error, d time.Duration) {
		log.Printf("INTERACTIVE-WriteDone len:%d err:%v took:%dms\n", len(frame), err, d.Milliseconds())
	},

	Error: DefaultLoggingHooks.Error,

	CallDone: func(method string, async bool, err error, d time.Duration) {
		log.Printf("INTERACTIVE-CallDone method:%s async:%v err:%v took:%dms\n", method, async, err, d.Milliseconds())
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &ClientTrace{
	DiscoverStart: func(url string) {
		log.Printf("INTERACTIVE-DiscoverStart url:%s\n", url)
	},
	DiscoverDone: MetricLoggingHooks.DiscoverDone,
	ConnectStart: func(target string) {
		log.Printf("INTERACTIVE-ConnectStart target:%s\n", target)
	},
	ConnectDone: MetricLoggingHooks.ConnectDone,
	DialStart: func(target string) {
		log.Printf("INTERACTIVE-DialStart target:%s\n", target)
	},
	DialDone: MetricLoggingHooks.DialDone,
	HelloDone: func(target string) {
		log.Printf("INTERACTIVE-HelloDone target:%s\n", target)
	},
	ConnectionEstablished: func(target string) {
		log.Printf("INTERACTIVE-ConnectionEstablished target:%s\n", target)
	},
	ConnectionClosed: func(target string, err error) {
		log.Printf("INTERACTIVE-ConnectionClosed target:%s err:%v\n", target, err)
	},
	ReadStart: func() {
		log.Printf("INTERACTIVE-ReadStart\n")
	},
	ReadDone: MetricLoggingHooks.ReadDone,
	WriteStart: func(frame []byte) {
		log.Printf("INTERACTIVE-WriteStart len:%d\n", len(frame))
	},
	WriteDone: MetricLoggingHooks.WriteDone,

	Error: DefaultLoggingHooks.Error,

	EventReceived: func(method string, seq uint64) {
		log.Printf("INTERACTIVE-EventReceived method:%s seq:%d\n", method, seq)
	},
	EventDropped: func(method string, seq uint64) {
		log.Printf("INTERACTIVE-EventDropped method:%s seq:%d\n", method, seq)
	},
	ReplyDropped: func(id uint32) {
		log.Printf("INTERACTIVE-ReplyDropped id:%d\n", id)
	},
	CompressionChanged: func(from, to compress.Scheme) {
		log.Printf("INTERACTIVE-CompressionChanged from:%s to:%s\n", from, to)
	},
	CallStart: func(method string, async bool) {
		log.Printf("INTERACTIVE-CallStart method:%s async:%v\n", method, async)
	},
	CallDone: MetricLoggingHooks.CallDone,
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &ClientTrace{
	DiscoverStart:         func(url string) {},
	DiscoverDone:          func(url string, hosts []string, err error, d time.Duration) {},
	ConnectStart:          func(target string) {},
	ConnectDone:           func(target string, err error, d time.Duration) {},
	DialStart:             func(target string) {},
	DialDone:              func(target string, err error, d time.Duration) {},
	HelloDone:             func(target string) {},
	ConnectionEstablished: func(target string) {},
	ConnectionClosed:      func(target string, err error) {},
	ReadStart:             func() {},
	ReadDone:              func(frame []byte, err error, d time.Duration) {},

	WriteStart: func(frame []byte) {},
	WriteDone:  func(frame []byte, err error, d time.Duration) {},

	Error:              func(context, target string, err error) {},
	EventReceived:      func(method string, seq uint64) {},
	EventDropped:       func(method string, seq uint64) {},
	ReplyDropped:       func(id uint32) {},
	CompressionChanged: func(from, to compress.Scheme) {},
	CallStart:          func(method string, async bool) {},
	CallDone:           func(method string, async bool, err error, d time.Duration) {},
}
