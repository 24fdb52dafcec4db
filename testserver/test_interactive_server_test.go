package testserver_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
	"github.com/damianoneill/interactive/common/codec"
	"github.com/damianoneill/interactive/testserver"
)

func dial(t *testing.T, ts *testserver.TestInteractiveServer) *websocket.Conn {
	conn, resp, err := websocket.DefaultDialer.Dial(ts.URL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	assert.NoError(t, err, "Not expecting dial to fail")
	return conn
}

func readPackets(t *testing.T, conn *websocket.Conn) []*common.Packet {
	_, data, err := conn.ReadMessage()
	assert.NoError(t, err, "Not expecting read to fail")
	pkts, err := codec.Decode(data)
	assert.NoError(t, err, "Not expecting decode to fail")
	return pkts
}

func TestServerSendsHello(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	conn := dial(t, ts)
	defer conn.Close() // nolint: errcheck

	pkts := readPackets(t, conn)
	assert.Len(t, pkts, 1, "Expected one packet")
	assert.Equal(t, common.MethodHello, pkts[0].Method, "Expected hello first")
}

func TestServerEchoesRequests(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t)
	defer ts.Close()

	conn := dial(t, ts)
	defer conn.Close() // nolint: errcheck
	readPackets(t, conn) // hello

	body, err := codec.Encode(common.NewMethod(3, 0, common.MethodGetScenes, json.RawMessage(`{"x":1}`), false))
	assert.NoError(t, err, "Not expecting encode to fail")
	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, body), "Not expecting write to fail")

	pkts := readPackets(t, conn)
	assert.True(t, pkts[0].IsReply(), "Expected a reply")
	assert.Equal(t, uint32(3), pkts[0].ID, "Expected reply correlated to request")
	assert.JSONEq(t, `{"x":1}`, string(pkts[0].Result), "Expected the request params echoed")

	sh := ts.LastHandler()
	assert.Equal(t, 1, sh.ReqCount(), "Expected request count to be 1")
	assert.Equal(t, common.MethodGetScenes, sh.LastReq().Method, "Expected the request recorded")
}

func TestServerFailingHandler(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()

	conn := dial(t, ts)
	defer conn.Close() // nolint: errcheck
	readPackets(t, conn) // hello

	body, err := codec.Encode(common.NewMethod(0, 0, common.MethodGetTime, json.RawMessage(`{}`), false))
	assert.NoError(t, err, "Not expecting encode to fail")
	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, body), "Not expecting write to fail")

	pkts := readPackets(t, conn)
	assert.NotNil(t, pkts[0].Error, "Expected an error reply")
	assert.Equal(t, "oops", pkts[0].Error.Message, "Expected the handler's error")
}

func TestDiscoveryDocument(t *testing.T) {
	ts := testserver.NewTestInteractiveServer(t).WithExtraHosts("wss://dead.example/gameClient")
	defer ts.Close()

	resp, err := http.Get(ts.DiscoveryURL())
	assert.NoError(t, err, "Not expecting discovery to fail")
	defer resp.Body.Close() // nolint: errcheck

	var hosts []struct {
		Address string `json:"address"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&hosts), "Not expecting decode to fail")
	assert.Len(t, hosts, 2, "Expected extra host plus self")
	assert.Equal(t, "wss://dead.example/gameClient", hosts[0].Address, "Expected extra hosts first")
	assert.Equal(t, ts.URL(), hosts[1].Address, "Expected the server itself last")
}

func TestNewTestParticipant(t *testing.T) {
	p := testserver.NewTestParticipant("viewer1", 100)
	assert.NotEmpty(t, p.SessionID, "Expected a generated session id")
	assert.Equal(t, uint64(100), p.ConnectedAt, "Expected the supplied timestamp")
	assert.NotEqual(t, p.SessionID, testserver.NewTestParticipant("viewer2", 200).SessionID,
		"Expected unique session ids")
}
