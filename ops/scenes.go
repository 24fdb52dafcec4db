package ops

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
)

// DefaultReassignment is the identifier that members of a deleted scene or
// group are moved to when no explicit reassignment target is supplied.
const DefaultReassignment = "default"

// ScenesService composes the scene methods. Batched writes are transactional
// at the service: either every scene in the batch is applied or none is.
type ScenesService struct {
	s client.Session
}

// Create adds the supplied scenes to the project, and delivers them as the
// server now sees them.
func (ss *ScenesService) Create(scenes ...common.Scene) ([]common.Scene, error) {
	return ss.roundTrip(common.MethodCreateScenes, scenes)
}

// Get delivers every scene in the project.
func (ss *ScenesService) Get() ([]common.Scene, error) {
	return ss.roundTrip(common.MethodGetScenes, nil)
}

// Update applies attribute changes to the supplied scenes, and delivers them
// as the server now sees them.
func (ss *ScenesService) Update(scenes ...common.Scene) ([]common.Scene, error) {
	return ss.roundTrip(common.MethodUpdateScenes, scenes)
}

// Delete removes a scene, moving its groups to the reassignment scene. An
// empty reassignment id defaults to DefaultReassignment.
func (ss *ScenesService) Delete(sceneID, reassignSceneID string) error {
	if reassignSceneID == "" {
		reassignSceneID = DefaultReassignment
	}
	_, err := ss.s.Call(common.MethodDeleteScene,
		&deleteSceneParams{SceneID: sceneID, ReassignSceneID: reassignSceneID})
	return err
}

func (ss *ScenesService) roundTrip(method string, scenes []common.Scene) ([]common.Scene, error) {
	var params interface{}
	if scenes != nil {
		params = &sceneList{Scenes: scenes}
	}
	reply, err := ss.s.Call(method, params)
	if err != nil {
		return nil, err
	}

	var result sceneList
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s result", method)
	}
	return result.Scenes, nil
}

type sceneList struct {
	Scenes []common.Scene `json:"scenes"`
}

type deleteSceneParams struct {
	SceneID         string `json:"sceneID"`
	ReassignSceneID string `json:"reassignSceneID"`
}
