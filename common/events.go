package common

import "encoding/json"

// Defines the typed events delivered by a session subscription. Inbound
// method packets are mapped onto a closed set of variants; anything the
// client does not recognize becomes an UndefinedEvent so newer service
// versions do not break older clients.

// Event is implemented by every event variant.
type Event interface {
	Info() EventInfo
}

// EventInfo carries the fields common to every event. RequestID echoes the
// id of the method packet that delivered the event; it is useful when
// debugging but plays no part in correlation.
type EventInfo struct {
	RequestID uint32
	Seq       uint64
}

// Info implements Event for every variant embedding EventInfo.
func (i EventInfo) Info() EventInfo { return i }

func (i *EventInfo) stamp(info EventInfo) { *i = info }

// HelloEvent is sent by the server once the connection is accepted. It
// completes the session handshake.
type HelloEvent struct {
	EventInfo
}

// ReadyEvent signals a change of the session's ready flag.
type ReadyEvent struct {
	EventInfo
	IsReady bool `json:"isReady"`
}

// SetCompressionEvent instructs the client to adopt a new compression
// scheme for all frames after the one that carried this event.
type SetCompressionEvent struct {
	EventInfo
	Schemes []string
}

// UnmarshalJSON accepts the scheme as either a single name or a
// preference-ordered list of names.
func (e *SetCompressionEvent) UnmarshalJSON(b []byte) error {
	var one struct {
		Scheme string `json:"scheme"`
	}
	if err := json.Unmarshal(b, &one); err == nil && one.Scheme != "" {
		e.Schemes = []string{one.Scheme}
		return nil
	}
	var many struct {
		Scheme []string `json:"scheme"`
	}
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	e.Schemes = many.Scheme
	return nil
}

// MemoryWarningEvent reports that the project is nearing its resource quota.
type MemoryWarningEvent struct {
	EventInfo
	UsedBytes  int64           `json:"usedBytes"`
	TotalBytes int64           `json:"totalBytes"`
	Resources  json.RawMessage `json:"resources,omitempty"`
}

// ParticipantJoinEvent reports participants that joined the session.
type ParticipantJoinEvent struct {
	EventInfo
	Participants []Participant `json:"participants"`
}

// ParticipantLeaveEvent reports participants that left the session.
type ParticipantLeaveEvent struct {
	EventInfo
	Participants []Participant `json:"participants"`
}

// ParticipantUpdateEvent reports participants whose attributes changed.
type ParticipantUpdateEvent struct {
	EventInfo
	Participants []Participant `json:"participants"`
}

// GroupCreateEvent reports newly created groups.
type GroupCreateEvent struct {
	EventInfo
	Groups []Group `json:"groups"`
}

// GroupUpdateEvent reports groups whose attributes changed.
type GroupUpdateEvent struct {
	EventInfo
	Groups []Group `json:"groups"`
}

// GroupDeleteEvent reports a deleted group and the group its former members
// were reassigned to.
type GroupDeleteEvent struct {
	EventInfo
	GroupID         string `json:"groupID"`
	ReassignGroupID string `json:"reassignGroupID"`
}

// SceneCreateEvent reports newly created scenes.
type SceneCreateEvent struct {
	EventInfo
	Scenes []Scene `json:"scenes"`
}

// SceneUpdateEvent reports scenes whose attributes changed.
type SceneUpdateEvent struct {
	EventInfo
	Scenes []Scene `json:"scenes"`
}

// SceneDeleteEvent reports a deleted scene and the scene its former groups
// were reassigned to.
type SceneDeleteEvent struct {
	EventInfo
	SceneID         string `json:"sceneID"`
	ReassignSceneID string `json:"reassignSceneID"`
}

// ControlCreateEvent reports controls added to a scene.
type ControlCreateEvent struct {
	EventInfo
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
}

// ControlUpdateEvent reports controls within a scene whose attributes changed.
type ControlUpdateEvent struct {
	EventInfo
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
}

// ControlDeleteEvent reports controls removed from a scene.
type ControlDeleteEvent struct {
	EventInfo
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
}

// InputEvent delivers one participant interaction with a control.
type InputEvent struct {
	EventInfo
	ParticipantID string `json:"participantID"`
	TransactionID string `json:"transactionID,omitempty"`
	Input         Input  `json:"input"`
}

// UndefinedEvent carries a method the client does not recognize, parameters
// intact.
type UndefinedEvent struct {
	EventInfo
	Method string
	Params json.RawMessage
}

type eventStamper interface {
	Event
	stamp(EventInfo)
}

// ParseEvent maps an inbound method packet onto its event variant. Packets
// with unrecognized or missing method names, and packets whose parameters do
// not parse, are returned as an UndefinedEvent rather than rejected.
func ParseEvent(p *Packet) Event {
	info := EventInfo{RequestID: p.ID, Seq: p.Seq}
	ev := newEvent(p.Method)
	if ev == nil {
		return undefined(info, p)
	}
	ev.stamp(info)
	if len(p.Params) > 0 {
		if err := json.Unmarshal(p.Params, ev); err != nil {
			return undefined(info, p)
		}
	}
	return ev
}

func undefined(info EventInfo, p *Packet) Event {
	method := p.Method
	if method == "" {
		method = string(p.Type)
	}
	return &UndefinedEvent{EventInfo: info, Method: method, Params: p.Params}
}

// newEvent returns a zero variant for a recognized method name, nil otherwise.
func newEvent(method string) eventStamper {
	switch method {
	case MethodHello:
		return &HelloEvent{}
	case MethodOnReady:
		return &ReadyEvent{}
	case MethodSetCompression:
		return &SetCompressionEvent{}
	case MethodIssueMemoryWarning:
		return &MemoryWarningEvent{}
	case MethodOnParticipantJoin:
		return &ParticipantJoinEvent{}
	case MethodOnParticipantLeave:
		return &ParticipantLeaveEvent{}
	case MethodOnParticipantUpdate:
		return &ParticipantUpdateEvent{}
	case MethodOnGroupCreate:
		return &GroupCreateEvent{}
	case MethodOnGroupDelete:
		return &GroupDeleteEvent{}
	case MethodOnGroupUpdate:
		return &GroupUpdateEvent{}
	case MethodOnSceneCreate:
		return &SceneCreateEvent{}
	case MethodOnSceneDelete:
		return &SceneDeleteEvent{}
	case MethodOnSceneUpdate:
		return &SceneUpdateEvent{}
	case MethodOnControlCreate:
		return &ControlCreateEvent{}
	case MethodOnControlDelete:
		return &ControlDeleteEvent{}
	case MethodOnControlUpdate:
		return &ControlUpdateEvent{}
	case MethodGiveInput:
		return &InputEvent{}
	}
	return nil
}
