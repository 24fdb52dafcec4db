// Package state maintains an in-memory mirror of the scene graph held by the
// interactive service. The cache is a pure event consumer: it subscribes to
// a session's event stream and applies scene, group, control and participant
// deltas to its own maps. It never issues RPCs, and a delta that does not fit
// the mirror (an update for an unknown id, say) is counted and ignored; the
// next full event for that resource rehydrates it.
package state

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/damianoneill/interactive/common"
)

// SubscriptionBuffer is the event buffer depth used when a cache is attached
// to a session.
const SubscriptionBuffer = 128

// Cache mirrors the authoritative scene graph. Accessors deliver copies;
// the internal maps are never shared across the package boundary.
type Cache struct {
	mu           sync.RWMutex
	scenes       map[string]common.Scene
	groups       map[string]common.Group
	controls     map[string]map[string]common.Control
	participants map[string]common.Participant

	desyncs uint64
	done    chan struct{}
}

// NewCache creates a cache fed by the supplied event stream. The cache runs
// until the stream is closed, which happens when the owning session ends.
func NewCache(events <-chan common.Event) *Cache {
	c := &Cache{
		scenes:       map[string]common.Scene{},
		groups:       map[string]common.Group{},
		controls:     map[string]map[string]common.Control{},
		participants: map[string]common.Participant{},
		done:         make(chan struct{}),
	}
	go c.run(events)
	return c
}

func (c *Cache) run(events <-chan common.Event) {
	defer close(c.done)
	for ev := range events {
		c.apply(ev)
	}
}

// Done is closed once the event stream ends and the mirror is final.
func (c *Cache) Done() <-chan struct{} {
	return c.done
}

// Desyncs delivers the number of deltas that could not be applied to the
// mirror.
func (c *Cache) Desyncs() uint64 {
	return atomic.LoadUint64(&c.desyncs)
}

// Scene delivers the scene with the supplied id, if the mirror holds it.
func (c *Cache) Scene(sceneID string) (common.Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenes[sceneID]
	return s, ok
}

// Scenes delivers every mirrored scene, ordered by id.
func (c *Cache) Scenes() []common.Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	scenes := make([]common.Scene, 0, len(c.scenes))
	for _, s := range c.scenes {
		scenes = append(scenes, s)
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].SceneID < scenes[j].SceneID })
	return scenes
}

// Group delivers the group with the supplied id, if the mirror holds it.
func (c *Cache) Group(groupID string) (common.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[groupID]
	return g, ok
}

// Groups delivers every mirrored group, ordered by id.
func (c *Cache) Groups() []common.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make([]common.Group, 0, len(c.groups))
	for _, g := range c.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
	return groups
}

// Control delivers one control within a scene, if the mirror holds it.
func (c *Cache) Control(sceneID, controlID string) (common.Control, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctrl, ok := c.controls[sceneID][controlID]
	return ctrl, ok
}

// Controls delivers the controls of a scene, ordered by id.
func (c *Cache) Controls(sceneID string) []common.Control {
	c.mu.RLock()
	defer c.mu.RUnlock()
	controls := make([]common.Control, 0, len(c.controls[sceneID]))
	for _, ctrl := range c.controls[sceneID] {
		controls = append(controls, ctrl)
	}
	sort.Slice(controls, func(i, j int) bool { return controls[i].ControlID < controls[j].ControlID })
	return controls
}

// Participant delivers the participant with the supplied session id, if the
// mirror holds it.
func (c *Cache) Participant(sessionID string) (common.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[sessionID]
	return p, ok
}

// Participants delivers every mirrored participant, ordered by connection
// time ascending.
func (c *Cache) Participants() []common.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	participants := make([]common.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		participants = append(participants, p)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].ConnectedAt < participants[j].ConnectedAt
	})
	return participants
}

func (c *Cache) apply(event common.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := event.(type) {
	case *common.SceneCreateEvent:
		c.upsertScenes(ev.Scenes)
	case *common.SceneUpdateEvent:
		c.upsertScenes(ev.Scenes)
	case *common.SceneDeleteEvent:
		c.deleteScene(ev.SceneID, ev.ReassignSceneID)

	case *common.GroupCreateEvent:
		c.upsertGroups(ev.Groups)
	case *common.GroupUpdateEvent:
		c.upsertGroups(ev.Groups)
	case *common.GroupDeleteEvent:
		c.deleteGroup(ev.GroupID, ev.ReassignGroupID)

	case *common.ControlCreateEvent:
		c.upsertControls(ev.SceneID, ev.Controls)
	case *common.ControlUpdateEvent:
		c.upsertControls(ev.SceneID, ev.Controls)
	case *common.ControlDeleteEvent:
		c.deleteControls(ev.SceneID, ev.Controls)

	case *common.ParticipantJoinEvent:
		c.upsertParticipants(ev.Participants)
	case *common.ParticipantUpdateEvent:
		c.upsertParticipants(ev.Participants)
	case *common.ParticipantLeaveEvent:
		for i := range ev.Participants {
			delete(c.participants, ev.Participants[i].SessionID)
		}
	}
}

func (c *Cache) upsertScenes(scenes []common.Scene) {
	for _, s := range scenes {
		c.scenes[s.SceneID] = s
		if len(s.Controls) == 0 {
			continue
		}
		controls := map[string]common.Control{}
		for _, ctrl := range s.Controls {
			controls[ctrl.ControlID] = ctrl
		}
		c.controls[s.SceneID] = controls
	}
}

// deleteScene removes a scene and its controls; groups showing the deleted
// scene move to the reassignment scene when the mirror holds it.
func (c *Cache) deleteScene(sceneID, reassignSceneID string) {
	if _, ok := c.scenes[sceneID]; !ok {
		atomic.AddUint64(&c.desyncs, 1)
		return
	}
	delete(c.scenes, sceneID)
	delete(c.controls, sceneID)

	_, haveTarget := c.scenes[reassignSceneID]
	for id, g := range c.groups {
		if g.SceneID != sceneID {
			continue
		}
		if !haveTarget {
			atomic.AddUint64(&c.desyncs, 1)
			continue
		}
		g.SceneID = reassignSceneID
		c.groups[id] = g
	}
}

func (c *Cache) upsertGroups(groups []common.Group) {
	for _, g := range groups {
		c.groups[g.GroupID] = g
	}
}

// deleteGroup removes a group; participants in the deleted group move to the
// reassignment group when the mirror holds it.
func (c *Cache) deleteGroup(groupID, reassignGroupID string) {
	if _, ok := c.groups[groupID]; !ok {
		atomic.AddUint64(&c.desyncs, 1)
		return
	}
	delete(c.groups, groupID)

	_, haveTarget := c.groups[reassignGroupID]
	for id, p := range c.participants {
		if p.GroupID != groupID {
			continue
		}
		if !haveTarget {
			atomic.AddUint64(&c.desyncs, 1)
			continue
		}
		p.GroupID = reassignGroupID
		c.participants[id] = p
	}
}

func (c *Cache) upsertControls(sceneID string, controls []common.Control) {
	scene, ok := c.controls[sceneID]
	if !ok {
		scene = map[string]common.Control{}
		c.controls[sceneID] = scene
	}
	for _, ctrl := range controls {
		scene[ctrl.ControlID] = ctrl
	}
}

func (c *Cache) deleteControls(sceneID string, controls []common.Control) {
	scene, ok := c.controls[sceneID]
	if !ok {
		atomic.AddUint64(&c.desyncs, 1)
		return
	}
	for i := range controls {
		if _, ok := scene[controls[i].ControlID]; !ok {
			atomic.AddUint64(&c.desyncs, 1)
			continue
		}
		delete(scene, controls[i].ControlID)
	}
}

func (c *Cache) upsertParticipants(participants []common.Participant) {
	for _, p := range participants {
		c.participants[p.SessionID] = p
	}
}
