package state

import (
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
)

// feed runs a cache over the supplied events and waits for the mirror to be
// final before returning it.
func feed(events ...common.Event) *Cache {
	ch := make(chan common.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	c := NewCache(ch)
	<-c.Done()
	return c
}

func TestSceneCreateAndUpdate(t *testing.T) {
	c := feed(
		&common.SceneCreateEvent{Scenes: []common.Scene{
			{SceneID: "lobby", Controls: []common.Control{{ControlID: "btn-1"}}},
			{SceneID: "arena"},
		}},
		&common.SceneUpdateEvent{Scenes: []common.Scene{{SceneID: "arena", Etag: "2"}}},
	)

	scenes := c.Scenes()
	assert.Len(t, scenes, 2, "Expected both scenes mirrored")
	assert.Equal(t, "arena", scenes[0].SceneID, "Expected scenes ordered by id")
	assert.Equal(t, "2", scenes[0].Etag, "Expected the update to replace by id")

	ctrl, ok := c.Control("lobby", "btn-1")
	assert.True(t, ok, "Expected inline controls mirrored")
	assert.Equal(t, "btn-1", ctrl.ControlID, "Expected the control by id")
}

func TestSceneDeleteReassignsGroups(t *testing.T) {
	c := feed(
		&common.SceneCreateEvent{Scenes: []common.Scene{{SceneID: "default"}, {SceneID: "lobby"}}},
		&common.GroupCreateEvent{Groups: []common.Group{{GroupID: "blue", SceneID: "lobby"}}},
		&common.SceneDeleteEvent{SceneID: "lobby", ReassignSceneID: "default"},
	)

	_, ok := c.Scene("lobby")
	assert.False(t, ok, "Expected the scene to be removed")

	g, ok := c.Group("blue")
	assert.True(t, ok, "Expected the group to survive")
	assert.Equal(t, "default", g.SceneID, "Expected the group to move to the reassignment scene")
	assert.Zero(t, c.Desyncs(), "Not expecting desyncs")
}

func TestGroupDeleteReassignsParticipants(t *testing.T) {
	c := feed(
		&common.GroupCreateEvent{Groups: []common.Group{{GroupID: "default"}, {GroupID: "blue"}}},
		&common.ParticipantJoinEvent{Participants: []common.Participant{
			{SessionID: "p1", GroupID: "blue", ConnectedAt: 100},
			{SessionID: "p2", GroupID: "default", ConnectedAt: 200},
		}},
		&common.GroupDeleteEvent{GroupID: "blue", ReassignGroupID: "default"},
	)

	_, ok := c.Group("blue")
	assert.False(t, ok, "Expected the group to be removed")

	p, ok := c.Participant("p1")
	assert.True(t, ok, "Expected the participant to survive")
	assert.Equal(t, "default", p.GroupID, "Expected the participant to move to the reassignment group")

	p, _ = c.Participant("p2")
	assert.Equal(t, "default", p.GroupID, "Expected untouched participants to keep their group")
}

func TestGroupDeleteWithoutTarget(t *testing.T) {
	c := feed(
		&common.GroupCreateEvent{Groups: []common.Group{{GroupID: "blue"}}},
		&common.ParticipantJoinEvent{Participants: []common.Participant{{SessionID: "p1", GroupID: "blue"}}},
		&common.GroupDeleteEvent{GroupID: "blue", ReassignGroupID: "missing"},
	)

	p, ok := c.Participant("p1")
	assert.True(t, ok, "Expected the participant to survive")
	assert.Equal(t, "blue", p.GroupID, "Expected no reassignment without a mirrored target")
	assert.Equal(t, uint64(1), c.Desyncs(), "Expected the miss to be counted")
}

func TestControlLifecycle(t *testing.T) {
	c := feed(
		&common.ControlCreateEvent{SceneID: "lobby", Controls: []common.Control{
			{ControlID: "btn-1", Kind: "button"},
			{ControlID: "btn-2", Kind: "button"},
		}},
		&common.ControlUpdateEvent{SceneID: "lobby", Controls: []common.Control{
			{ControlID: "btn-1", Kind: "button", Disabled: true},
		}},
		&common.ControlDeleteEvent{SceneID: "lobby", Controls: []common.Control{{ControlID: "btn-2"}}},
	)

	controls := c.Controls("lobby")
	assert.Len(t, controls, 1, "Expected one control to remain")
	assert.True(t, controls[0].Disabled, "Expected the update to replace by id")
}

func TestParticipantLifecycle(t *testing.T) {
	c := feed(
		&common.ParticipantJoinEvent{Participants: []common.Participant{
			{SessionID: "p2", ConnectedAt: 200},
			{SessionID: "p1", ConnectedAt: 100},
		}},
		&common.ParticipantUpdateEvent{Participants: []common.Participant{
			{SessionID: "p1", ConnectedAt: 100, GroupID: "blue"},
		}},
		&common.ParticipantLeaveEvent{Participants: []common.Participant{{SessionID: "p2"}}},
	)

	participants := c.Participants()
	assert.Len(t, participants, 1, "Expected one participant to remain")
	assert.Equal(t, "p1", participants[0].SessionID, "Expected the joined participant")
	assert.Equal(t, "blue", participants[0].GroupID, "Expected the update to replace by id")
}

func TestUnmatchedDeltasAreCountedNotFatal(t *testing.T) {
	c := feed(
		&common.SceneDeleteEvent{SceneID: "missing"},
		&common.ControlDeleteEvent{SceneID: "missing", Controls: []common.Control{{ControlID: "x"}}},
		&common.SceneCreateEvent{Scenes: []common.Scene{{SceneID: "lobby"}}},
	)

	assert.Equal(t, uint64(2), c.Desyncs(), "Expected the misses to be counted")

	_, ok := c.Scene("lobby")
	assert.True(t, ok, "Expected later events to apply normally")
}

func TestUnrelatedEventsIgnored(t *testing.T) {
	c := feed(
		&common.HelloEvent{},
		&common.UndefinedEvent{Method: "onNewThing"},
		&common.ReadyEvent{IsReady: true},
	)

	assert.Empty(t, c.Scenes(), "Expected no scenes")
	assert.Zero(t, c.Desyncs(), "Not expecting desyncs")
}
