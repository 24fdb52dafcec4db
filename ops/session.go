package ops

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec/compress"
	"github.com/damianoneill/interactive/state"
)

// The ops layer composes session methods into the domain operations a host
// uses to drive its project: readiness, clock and quota queries, traffic
// throttling, compression negotiation, and the per-resource services.

// OpSession represents an interactive operations session.
type OpSession interface {
	client.Session

	// Ready starts or stops the interactive experience for the audience.
	Ready(isReady bool) error

	// SetCompression negotiates the frame compression scheme from a
	// preference-ordered list of scheme names. Unknown names are filtered
	// out and duplicates dropped before the list is sent. The scheme chosen
	// by the server is applied to the session transport before this call
	// returns it.
	SetCompression(preferences ...string) (compress.Scheme, error)

	// Time delivers the server's clock reading, useful for latency
	// compensation.
	Time() (time.Time, error)

	// MemoryStats delivers the resource usage of the project on the server.
	MemoryStats() (*MemoryStats, error)

	// ThrottleState delivers the traffic counters of every throttle rule in
	// force.
	ThrottleState() (ThrottleState, error)

	// SetBandwidthThrottle installs leaky-bucket rules keyed by method name.
	SetBandwidthThrottle(rules map[string]ThrottleRule) error

	// Scenes delivers the scene service.
	Scenes() *ScenesService

	// Controls delivers the control service.
	Controls() *ControlsService

	// Groups delivers the group service.
	Groups() *GroupsService

	// Participants delivers the participant service.
	Participants() *ParticipantsService

	// Transactions delivers the transaction service.
	Transactions() *TransactionsService

	// Cache delivers the scene-graph mirror, or nil when the cache was not
	// enabled at construction.
	Cache() *state.Cache
}

type sImpl struct {
	client.Session

	scenes       *ScenesService
	controls     *ControlsService
	groups       *GroupsService
	participants *ParticipantsService
	transactions *TransactionsService

	cache *state.Cache
}

func newOpSession(cs client.Session, enableCache bool) *sImpl {
	s := &sImpl{
		Session:      cs,
		scenes:       &ScenesService{s: cs},
		controls:     &ControlsService{s: cs},
		groups:       &GroupsService{s: cs},
		participants: &ParticipantsService{s: cs},
		transactions: &TransactionsService{s: cs},
	}
	if enableCache {
		s.cache = state.NewCache(cs.Subscribe(state.SubscriptionBuffer).Events())
	}
	return s
}

func (s *sImpl) Close() {
	s.Session.Close()
}

func (s *sImpl) Ready(isReady bool) error {
	_, err := s.Session.Call(common.MethodReady, &readyParams{IsReady: isReady})
	return err
}

func (s *sImpl) SetCompression(preferences ...string) (compress.Scheme, error) {
	params := &compressionParams{Scheme: filterSchemes(preferences)}
	reply, err := s.Session.Call(common.MethodSetCompression, params)
	if err != nil {
		return compress.None, err
	}

	var result compressionResult
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return compress.None, errors.Wrap(err, "failed to decode setCompression result")
	}
	return compress.Resolve(result.Scheme), nil
}

func (s *sImpl) Time() (time.Time, error) {
	reply, err := s.Session.Call(common.MethodGetTime, nil)
	if err != nil {
		return time.Time{}, err
	}

	var result struct {
		Time int64 `json:"time"`
	}
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return time.Time{}, errors.Wrap(err, "failed to decode getTime result")
	}
	return time.UnixMilli(result.Time), nil
}

func (s *sImpl) MemoryStats() (*MemoryStats, error) {
	reply, err := s.Session.Call(common.MethodGetMemoryStats, nil)
	if err != nil {
		return nil, err
	}

	stats := &MemoryStats{}
	if err := json.Unmarshal(reply.Result, stats); err != nil {
		return nil, errors.Wrap(err, "failed to decode getMemoryStats result")
	}
	return stats, nil
}

func (s *sImpl) ThrottleState() (ThrottleState, error) {
	reply, err := s.Session.Call(common.MethodGetThrottleState, nil)
	if err != nil {
		return nil, err
	}

	counters := ThrottleState{}
	if err := json.Unmarshal(reply.Result, &counters); err != nil {
		return nil, errors.Wrap(err, "failed to decode getThrottleState result")
	}
	return counters, nil
}

func (s *sImpl) SetBandwidthThrottle(rules map[string]ThrottleRule) error {
	_, err := s.Session.Call(common.MethodSetBandwidthThrottle, rules)
	return err
}

func (s *sImpl) Scenes() *ScenesService { return s.scenes }

func (s *sImpl) Controls() *ControlsService { return s.controls }

func (s *sImpl) Groups() *GroupsService { return s.groups }

func (s *sImpl) Participants() *ParticipantsService { return s.participants }

func (s *sImpl) Transactions() *TransactionsService { return s.transactions }

func (s *sImpl) Cache() *state.Cache { return s.cache }

// Request parameter structs.

type readyParams struct {
	IsReady bool `json:"isReady"`
}

type compressionParams struct {
	Scheme []string `json:"scheme"`
}

type compressionResult struct {
	Scheme string `json:"scheme"`
}

// filterSchemes reduces a preference list to the schemes this client can
// actually speak, deduplicated and in preference order. An empty result
// falls back to the uncompressed scheme so the call stays well formed.
func filterSchemes(preferences []string) []string {
	supported := make([]string, 0, len(preferences))
	seen := map[string]struct{}{}
	for _, name := range preferences {
		if !compress.Known(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		supported = append(supported, name)
	}
	if len(supported) == 0 {
		supported = append(supported, string(compress.None))
	}
	return supported
}
