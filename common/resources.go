package common

import "encoding/json"

// Defines the resource payloads routed by the client. The service owns the
// full schema; these structs expose the fields the client routes, sorts and
// caches by, and retain everything else under Meta or Raw.

// Participant represents an audience member connected to the session.
// Timestamps are unix milliseconds.
type Participant struct {
	SessionID   string          `json:"sessionID"`
	UserID      uint32          `json:"userID,omitempty"`
	Username    string          `json:"username,omitempty"`
	Level       uint32          `json:"level,omitempty"`
	LastInputAt uint64          `json:"lastInputAt,omitempty"`
	ConnectedAt uint64          `json:"connectedAt,omitempty"`
	GroupID     string          `json:"groupID,omitempty"`
	Disabled    bool            `json:"disabled,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// Group collects participants so that scenes can be shown selectively.
type Group struct {
	GroupID string          `json:"groupID"`
	SceneID string          `json:"sceneID,omitempty"`
	Etag    string          `json:"etag,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// Scene is a named collection of controls.
type Scene struct {
	SceneID  string          `json:"sceneID"`
	Etag     string          `json:"etag,omitempty"`
	Controls []Control       `json:"controls,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// Control is a single interactive element within a scene. SceneID names the
// parent scene and is used to group batched writes; it is omitted from the
// wire form of calls that already carry the scene id at the top level.
type Control struct {
	ControlID string          `json:"controlID"`
	SceneID   string          `json:"-"`
	Kind      string          `json:"kind,omitempty"`
	Etag      string          `json:"etag,omitempty"`
	Disabled  bool            `json:"disabled,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

// Input is one participant interaction with a control. Raw preserves the
// whole wire object, including kind-specific fields such as coordinates.
type Input struct {
	ControlID string          `json:"controlID"`
	Event     string          `json:"event"`
	Raw       json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw object alongside the routed fields.
func (in *Input) UnmarshalJSON(b []byte) error {
	type alias Input
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*in = Input(a)
	in.Raw = append([]byte(nil), b...)
	return nil
}

// MarshalJSON renders the original object when one was captured.
func (in Input) MarshalJSON() ([]byte, error) {
	if len(in.Raw) > 0 {
		return in.Raw, nil
	}
	type alias Input
	return json.Marshal(alias(in))
}
