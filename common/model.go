package common

import (
	"encoding/json"
	"fmt"
)

// Defines structs representing interactive protocol packets and replies.

// PacketType discriminates the wire shapes carried by a frame.
type PacketType string

// Define the packet types used by the protocol.
const (
	TypeMethod PacketType = "method"
	TypeReply  PacketType = "reply"
)

// Packet defines the envelope shared by every message on the wire. A method
// packet populates Method, Params and Discard; a reply packet populates
// exactly one of Result or Error.
type Packet struct {
	Type    PacketType      `json:"type"`
	ID      uint32          `json:"id"`
	Seq     uint64          `json:"seq"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Discard bool            `json:"discard,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewMethod builds a method packet addressed with the supplied id and
// sequence number.
func NewMethod(id uint32, seq uint64, method string, params json.RawMessage, discard bool) *Packet {
	return &Packet{Type: TypeMethod, ID: id, Seq: seq, Method: method, Params: params, Discard: discard}
}

// NewReply builds a reply packet correlated to the request with the supplied id.
func NewReply(id uint32, seq uint64, result json.RawMessage, rpcerr *RPCError) *Packet {
	return &Packet{Type: TypeReply, ID: id, Seq: seq, Result: result, Error: rpcerr}
}

// IsReply returns true if the packet correlates to an in-flight request.
func (p *Packet) IsReply() bool {
	return p.Type == TypeReply
}

func (p *Packet) String() string {
	if p.IsReply() {
		return fmt.Sprintf("reply id:%d seq:%d", p.ID, p.Seq)
	}
	return fmt.Sprintf("method %s id:%d seq:%d", p.Method, p.ID, p.Seq)
}

// Define the method names sent by the client.
const (
	MethodReady                 = "ready"
	MethodSetCompression        = "setCompression"
	MethodGetTime               = "getTime"
	MethodGetMemoryStats        = "getMemoryStats"
	MethodGetThrottleState      = "getThrottleState"
	MethodSetBandwidthThrottle  = "setBandwidthThrottle"
	MethodGetAllParticipants    = "getAllParticipants"
	MethodGetActiveParticipants = "getActiveParticipants"
	MethodUpdateParticipants    = "updateParticipants"
	MethodCreateGroups          = "createGroups"
	MethodGetGroups             = "getGroups"
	MethodUpdateGroups          = "updateGroups"
	MethodDeleteGroup           = "deleteGroup"
	MethodCreateScenes          = "createScenes"
	MethodGetScenes             = "getScenes"
	MethodUpdateScenes          = "updateScenes"
	MethodDeleteScene           = "deleteScene"
	MethodCreateControls        = "createControls"
	MethodUpdateControls        = "updateControls"
	MethodDeleteControls        = "deleteControls"
	MethodCapture               = "capture"
)

// Define the method names announced by the server.
const (
	MethodHello               = "hello"
	MethodOnReady             = "onReady"
	MethodIssueMemoryWarning  = "issueMemoryWarning"
	MethodOnParticipantJoin   = "onParticipantJoin"
	MethodOnParticipantLeave  = "onParticipantLeave"
	MethodOnParticipantUpdate = "onParticipantUpdate"
	MethodOnGroupCreate       = "onGroupCreate"
	MethodOnGroupDelete       = "onGroupDelete"
	MethodOnGroupUpdate       = "onGroupUpdate"
	MethodOnSceneCreate       = "onSceneCreate"
	MethodOnSceneDelete       = "onSceneDelete"
	MethodOnSceneUpdate       = "onSceneUpdate"
	MethodOnControlCreate     = "onControlCreate"
	MethodOnControlDelete     = "onControlDelete"
	MethodOnControlUpdate     = "onControlUpdate"
	MethodGiveInput           = "giveInput"
)
