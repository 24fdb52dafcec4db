package ops

import (
	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
)

// ControlsService composes the control methods. Writes accept a flat set of
// controls that may span scenes; the service addresses controls per scene,
// so the set is grouped by parent scene id and one call is issued per scene.
// Each call is transactional for its scene only.
type ControlsService struct {
	s client.Session
}

// ControlFutures maps each input control to the outcome channel of the call
// that carries its scene's batch. Controls sharing a scene share a channel.
type ControlFutures map[*common.Control]<-chan *client.Result

// DefaultUpdatePriority orders an update last among concurrent updates.
const DefaultUpdatePriority = 0

// Create adds the supplied controls to their parent scenes, one call per
// scene. A control with an empty scene id belongs to the default scene.
func (cs *ControlsService) Create(controls []common.Control) (ControlFutures, error) {
	return cs.batch(common.MethodCreateControls, controls, func(sceneID string, batch []common.Control) interface{} {
		return &controlsParams{SceneID: sceneID, Controls: batch}
	})
}

// Update applies attribute changes to the supplied controls, one call per
// scene. priority orders this update against concurrent updates on the
// server; pass DefaultUpdatePriority when ordering does not matter.
func (cs *ControlsService) Update(priority int, controls []common.Control) (ControlFutures, error) {
	return cs.batch(common.MethodUpdateControls, controls, func(sceneID string, batch []common.Control) interface{} {
		return &updateControlsParams{SceneID: sceneID, Controls: batch, Priority: priority}
	})
}

// Delete removes the supplied controls from their parent scenes, one call
// per scene.
func (cs *ControlsService) Delete(controls []common.Control) (ControlFutures, error) {
	return cs.batch(common.MethodDeleteControls, controls, func(sceneID string, batch []common.Control) interface{} {
		ids := make([]string, 0, len(batch))
		for i := range batch {
			ids = append(ids, batch[i].ControlID)
		}
		return &deleteControlsParams{SceneID: sceneID, ControlIDs: ids}
	})
}

// batch groups the controls by parent scene and issues one asynchronous call
// per scene, preserving the order scenes first appear in the input. A send
// failure on any scene fails the whole batch; calls already issued resolve
// through their futures as usual.
func (cs *ControlsService) batch(method string, controls []common.Control,
	params func(sceneID string, batch []common.Control) interface{}) (ControlFutures, error) {
	byScene := map[string][]*common.Control{}
	var order []string
	for i := range controls {
		c := &controls[i]
		sceneID := c.SceneID
		if sceneID == "" {
			sceneID = DefaultReassignment
		}
		if _, ok := byScene[sceneID]; !ok {
			order = append(order, sceneID)
		}
		byScene[sceneID] = append(byScene[sceneID], c)
	}

	futures := ControlFutures{}
	for _, sceneID := range order {
		refs := byScene[sceneID]
		batch := make([]common.Control, 0, len(refs))
		for _, c := range refs {
			batch = append(batch, *c)
		}

		rchan := make(chan *client.Result, 1)
		if err := cs.s.CallAsync(method, params(sceneID, batch), rchan); err != nil {
			return nil, err
		}
		for _, c := range refs {
			futures[c] = rchan
		}
	}
	return futures, nil
}

type controlsParams struct {
	SceneID  string           `json:"sceneID"`
	Controls []common.Control `json:"controls"`
}

type updateControlsParams struct {
	SceneID  string           `json:"sceneID"`
	Controls []common.Control `json:"controls"`
	Priority int              `json:"priority"`
}

type deleteControlsParams struct {
	SceneID    string   `json:"sceneID"`
	ControlIDs []string `json:"controlIDs"`
}
