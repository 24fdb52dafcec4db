package ops

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
)

// ParticipantsService composes the participant methods: paged queries over
// the connected audience and bulk attribute updates.
type ParticipantsService struct {
	s client.Session
}

// All delivers every participant connected to the session, ordered by
// connection time ascending. from restricts the query to participants that
// connected at or after the supplied unix-millisecond timestamp; zero
// delivers everybody.
//
// The server pages its answer; paging continues while the reply indicates
// more data and the last page was non-empty, advancing the query marker to
// the connection time of the last participant returned.
func (ps *ParticipantsService) All(from uint64) ([]common.Participant, error) {
	return ps.page(common.MethodGetAllParticipants, from,
		func(marker uint64) interface{} { return &allParticipantsQuery{From: marker} },
		func(p *common.Participant) uint64 { return p.ConnectedAt })
}

// Active delivers the participants that have given input at or after the
// supplied unix-millisecond threshold, ordered by last-input time ascending.
// Paging follows the same rules as All, keyed on last-input time.
func (ps *ParticipantsService) Active(threshold uint64) ([]common.Participant, error) {
	return ps.page(common.MethodGetActiveParticipants, threshold,
		func(marker uint64) interface{} { return &activeParticipantsQuery{Threshold: marker} },
		func(p *common.Participant) uint64 { return p.LastInputAt })
}

// Update applies attribute changes (group membership, disabled flag, meta)
// to the supplied participants, and delivers the participants as the server
// now sees them.
func (ps *ParticipantsService) Update(participants []common.Participant) ([]common.Participant, error) {
	reply, err := ps.s.Call(common.MethodUpdateParticipants, &participantList{Participants: participants})
	if err != nil {
		return nil, err
	}

	var result participantList
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode updateParticipants result")
	}
	return result.Participants, nil
}

// page drains a paginated participant query. The running set is deduplicated
// by session id so a marker landing mid-timestamp cannot return the same
// participant twice, and an empty page always terminates the loop even if
// the server claims more data.
func (ps *ParticipantsService) page(method string, marker uint64,
	query func(marker uint64) interface{}, stamp func(*common.Participant) uint64) ([]common.Participant, error) {
	var all []common.Participant
	seen := map[string]struct{}{}

	for {
		reply, err := ps.s.Call(method, query(marker))
		if err != nil {
			return nil, err
		}

		var page participantPage
		if err := json.Unmarshal(reply.Result, &page); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s result", method)
		}
		if len(page.Participants) == 0 {
			break
		}

		for _, p := range page.Participants {
			if _, dup := seen[p.SessionID]; dup {
				continue
			}
			seen[p.SessionID] = struct{}{}
			all = append(all, p)
		}

		marker = stamp(&page.Participants[len(page.Participants)-1])
		if !page.HasMore {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return stamp(&all[i]) < stamp(&all[j]) })
	return all, nil
}

type allParticipantsQuery struct {
	From uint64 `json:"from"`
}

type activeParticipantsQuery struct {
	Threshold uint64 `json:"threshold"`
}

type participantPage struct {
	Participants []common.Participant `json:"participants"`
	Total        int                  `json:"total,omitempty"`
	HasMore      bool                 `json:"hasMore"`
}

type participantList struct {
	Participants []common.Participant `json:"participants"`
}
