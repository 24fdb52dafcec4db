package ops

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
)

// GroupsService composes the group methods. Batched writes are transactional
// at the service: either every group in the batch is applied or none is.
type GroupsService struct {
	s client.Session
}

// Create adds the supplied groups to the session, and delivers them as the
// server now sees them.
func (gs *GroupsService) Create(groups ...common.Group) ([]common.Group, error) {
	return gs.roundTrip(common.MethodCreateGroups, groups)
}

// Get delivers every group in the session.
func (gs *GroupsService) Get() ([]common.Group, error) {
	return gs.roundTrip(common.MethodGetGroups, nil)
}

// Update applies attribute changes to the supplied groups, and delivers them
// as the server now sees them.
func (gs *GroupsService) Update(groups ...common.Group) ([]common.Group, error) {
	return gs.roundTrip(common.MethodUpdateGroups, groups)
}

// Delete removes a group, moving its participants to the reassignment group.
// An empty reassignment id defaults to DefaultReassignment.
func (gs *GroupsService) Delete(groupID, reassignGroupID string) error {
	if reassignGroupID == "" {
		reassignGroupID = DefaultReassignment
	}
	_, err := gs.s.Call(common.MethodDeleteGroup,
		&deleteGroupParams{GroupID: groupID, ReassignGroupID: reassignGroupID})
	return err
}

func (gs *GroupsService) roundTrip(method string, groups []common.Group) ([]common.Group, error) {
	var params interface{}
	if groups != nil {
		params = &groupList{Groups: groups}
	}
	reply, err := gs.s.Call(method, params)
	if err != nil {
		return nil, err
	}

	var result groupList
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s result", method)
	}
	return result.Groups, nil
}

type groupList struct {
	Groups []common.Group `json:"groups"`
}

type deleteGroupParams struct {
	GroupID         string `json:"groupID"`
	ReassignGroupID string `json:"reassignGroupID"`
}
