package ops

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/testserver"
)

func TestTransportFailure(t *testing.T) {
	cfg := &client.Config{Endpoints: []string{"ws://127.0.0.1:1/gameClient"}}
	s, err := NewSession(context.Background(), 1234, "token", ClientConfig(cfg))
	assert.Error(t, err, "Expecting new session to fail")
	assert.Nil(t, s, "OpSession should be nil")
}

func TestSessionSetupFailure(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t).WithoutHello()
	defer ts.Close()

	ctx := client.WithClientTrace(context.Background(), client.DefaultLoggingHooks)
	cfg := &client.Config{Endpoints: []string{ts.URL()}, SetupTimeoutSecs: 1}
	s, err := NewSession(ctx, 1234, "token", ClientConfig(cfg))
	assert.Error(t, err, "Expecting new session to fail - no hello from server")
	assert.Nil(t, s, "OpSession should be nil")
}

func TestSessionSetupSuccess(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	cfg := &client.Config{Endpoints: []string{ts.URL()}}
	s, err := NewSession(context.Background(), 1234, "token", ShareCode("xyz"), ClientConfig(cfg))
	assert.NoError(t, err, "Expecting new session to succeed")
	assert.NotNil(t, s, "OpSession should not be nil")
	defer s.Close()

	assert.Equal(t, "1234", ts.LastHandshake().Get("X-Interactive-Version"), "Expected project version header")
	assert.Equal(t, "xyz", ts.LastHandshake().Get("X-Interactive-Sharecode"), "Expected share code header")

	err = s.Ready(true)
	assert.NoError(t, err, "Not expecting ready to fail")

	var params struct {
		IsReady bool `json:"isReady"`
	}
	req := ts.LastHandler().LastReq()
	assert.Equal(t, common.MethodReady, req.Method, "Expected ready request")
	assert.NoError(t, json.Unmarshal(req.Params, &params), "Not expecting params decode to fail")
	assert.True(t, params.IsReady, "Expected ready flag on the wire")
}

func TestSessionSetupThroughDiscovery(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	cfg := &client.Config{DiscoveryURL: ts.DiscoveryURL()}
	s, err := NewSession(context.Background(), 1234, "token", ClientConfig(cfg))
	assert.NoError(t, err, "Expecting new session to succeed")
	assert.NotNil(t, s, "OpSession should not be nil")
	s.Close()
}

func TestStateCacheFedByEvents(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	cfg := &client.Config{Endpoints: []string{ts.URL()}}
	s, err := NewSession(context.Background(), 1234, "token", ClientConfig(cfg), StateCache())
	assert.NoError(t, err, "Expecting new session to succeed")
	defer s.Close()

	cache := s.Cache()
	assert.NotNil(t, cache, "Cache should be enabled")

	ts.LastHandler().SendEvent(common.MethodOnSceneCreate,
		map[string]interface{}{"scenes": []map[string]string{{"sceneID": "lobby"}}})

	assert.Eventually(t, func() bool {
		_, ok := cache.Scene("lobby")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "Expected the event to reach the cache")
}

func TestCompressionNegotiationEndToEnd(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	cfg := &client.Config{Endpoints: []string{ts.URL()}}
	s, err := NewSession(context.Background(), 1234, "token", ClientConfig(cfg))
	assert.NoError(t, err, "Expecting new session to succeed")
	defer s.Close()

	scheme, err := s.SetCompression("gzip", "lz4")
	assert.NoError(t, err, "Not expecting negotiation to fail")
	assert.Equal(t, "gzip", string(scheme), "Expected the first preference to win")

	// Traffic continues under the negotiated scheme in both directions.
	err = s.Ready(true)
	assert.NoError(t, err, "Not expecting ready to fail under the new scheme")
	assert.Equal(t, common.MethodReady, ts.LastHandler().LastReq().Method, "Expected ready request")
}
