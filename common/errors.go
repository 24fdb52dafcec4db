package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Defines the error types surfaced by the client library.

// ErrNoHostsFound is returned when discovery produced no candidate endpoints.
var ErrNoHostsFound = errors.New("interactive: no hosts found")

// RPCError defines an error reply to a method call, as delivered by the
// server. Method is filled in by the session for context and is not part of
// the wire form.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Method  string `json:"-"`
}

// Error generates a string representation of the RPC error.
func (re *RPCError) Error() string {
	if re.Path != "" {
		return fmt.Sprintf("interactive rpc [%d] '%s' method:%s path:%s", re.Code, re.Message, re.Method, re.Path)
	}
	return fmt.Sprintf("interactive rpc [%d] '%s' method:%s", re.Code, re.Message, re.Method)
}

// TimeoutError is returned when no reply to a method call arrived within the
// configured request timeout.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (te *TimeoutError) Error() string {
	return fmt.Sprintf("interactive: no reply to %s within %s", te.Method, te.Timeout)
}

// ClosedError is returned when the transport closed before a method call
// completed, or when an operation was attempted on a closed session.
type ClosedError struct {
	Method string
}

func (ce *ClosedError) Error() string {
	if ce.Method == "" {
		return "interactive: session closed"
	}
	return fmt.Sprintf("interactive: transport closed while awaiting reply to %s", ce.Method)
}

// CodecError is returned when a frame could not be decompressed or parsed
// into packets.
type CodecError struct {
	Cause error
}

func (ce *CodecError) Error() string {
	return fmt.Sprintf("interactive: malformed frame: %v", ce.Cause)
}

// Unwrap supports errors.Is/As against the underlying cause.
func (ce *CodecError) Unwrap() error {
	return ce.Cause
}

// HostError records the failure of one connection candidate.
type HostError struct {
	Address string
	Err     error
}

func (he *HostError) Error() string {
	return fmt.Sprintf("%s: %v", he.Address, he.Err)
}

// ConnectError aggregates the failures of every candidate endpoint after the
// controller exhausted its fail-over list.
type ConnectError struct {
	Attempts []*HostError
}

func (ce *ConnectError) Error() string {
	causes := make([]string, 0, len(ce.Attempts))
	for _, a := range ce.Attempts {
		causes = append(causes, a.Error())
	}
	return fmt.Sprintf("interactive: connection failed against %d candidate(s): %s",
		len(ce.Attempts), strings.Join(causes, "; "))
}
