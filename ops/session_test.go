package ops

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec/compress"
	"github.com/damianoneill/interactive/mocks"
)

func newOpsSessionWithMockClient(t *testing.T) (OpSession, *mocks.Session) {
	mcli := &mocks.Session{}
	return newOpSession(mcli, false), mcli
}

func reply(result string) *common.Packet {
	return &common.Packet{Type: common.TypeReply, Result: json.RawMessage(result)}
}

func TestReady(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodReady, &readyParams{IsReady: true}).Return(reply(`{}`), nil)

	err := s.Ready(true)
	assert.NoError(t, err, "Not expecting call to fail")
	mcli.AssertExpectations(t)
}

func TestSetCompression(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodSetCompression, &compressionParams{Scheme: []string{"lz4", "gzip"}}).
		Return(reply(`{"scheme":"gzip"}`), nil)

	// Unknown schemes are filtered, duplicates dropped, order preserved.
	scheme, err := s.SetCompression("lz4", "zstd", "gzip", "lz4")
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, compress.Gzip, scheme, "Expected the server's choice")
	mcli.AssertExpectations(t)
}

func TestSetCompressionAllUnknown(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodSetCompression, &compressionParams{Scheme: []string{"none"}}).
		Return(reply(`{"scheme":"none"}`), nil)

	scheme, err := s.SetCompression("zstd", "brotli")
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, compress.None, scheme, "Expected fall-back to plain frames")
	mcli.AssertExpectations(t)
}

func TestSetCompressionCallError(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodSetCompression, &compressionParams{Scheme: []string{"gzip"}}).
		Return(nil, errors.New("failed"))

	scheme, err := s.SetCompression("gzip")
	assert.Error(t, err, "Expecting call to fail")
	assert.Equal(t, compress.None, scheme, "Scheme should be none on failure")
}

func TestTime(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodGetTime, nil).Return(reply(`{"time":1700000000000}`), nil)

	serverTime, err := s.Time()
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, time.UnixMilli(1700000000000), serverTime, "Expected server time")
}

func TestTimeDecodeFailure(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodGetTime, nil).Return(reply(`{"time":"noon"}`), nil)

	_, err := s.Time()
	assert.Error(t, err, "Expecting decode to fail")
}

func TestMemoryStats(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodGetMemoryStats, nil).
		Return(reply(`{"usedBytes":1024,"totalBytes":2048}`), nil)

	stats, err := s.MemoryStats()
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, &MemoryStats{UsedBytes: 1024, TotalBytes: 2048}, stats, "Expected server stats")
}

func TestThrottleState(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodGetThrottleState, nil).
		Return(reply(`{"giveInput":{"inserted":100,"rejected":7}}`), nil)

	state, err := s.ThrottleState()
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, ThrottleState{"giveInput": {Inserted: 100, Rejected: 7}}, state, "Expected throttle counters")
}

func TestSetBandwidthThrottle(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	rules := map[string]ThrottleRule{"giveInput": {Capacity: 10000000, DrainRate: 3000000}}
	mcli.On("Call", common.MethodSetBandwidthThrottle, rules).Return(reply(`{}`), nil)

	err := s.SetBandwidthThrottle(rules)
	assert.NoError(t, err, "Not expecting call to fail")
	mcli.AssertExpectations(t)
}

func TestServiceAccessors(t *testing.T) {
	s, _ := newOpsSessionWithMockClient(t)

	assert.NotNil(t, s.Scenes(), "Scene service should be non-nil")
	assert.NotNil(t, s.Controls(), "Control service should be non-nil")
	assert.NotNil(t, s.Groups(), "Group service should be non-nil")
	assert.NotNil(t, s.Participants(), "Participant service should be non-nil")
	assert.NotNil(t, s.Transactions(), "Transaction service should be non-nil")
	assert.Nil(t, s.Cache(), "Cache should be nil when not enabled")
}
