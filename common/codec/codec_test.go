package codec

import (
	"encoding/json"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
)

func TestDecodeSinglePacket(t *testing.T) {
	pkts, err := Decode([]byte(`{"type":"method","id":0,"seq":0,"method":"getTime","params":{}}`))
	assert.NoError(t, err, "Not expecting decode to fail")
	assert.Len(t, pkts, 1, "Expected one packet")
	assert.Equal(t, common.TypeMethod, pkts[0].Type, "Expected a method packet")
	assert.Equal(t, "getTime", pkts[0].Method, "Expected method name")
}

func TestDecodePacketList(t *testing.T) {
	frame := `[{"type":"method","id":1,"seq":2,"method":"onSceneCreate","params":{}},` +
		`{"type":"reply","id":0,"seq":3,"result":{"time":1700000000000}}]`

	pkts, err := Decode([]byte(frame))
	assert.NoError(t, err, "Not expecting decode to fail")
	assert.Len(t, pkts, 2, "Expected two packets")
	assert.Equal(t, "onSceneCreate", pkts[0].Method, "Expected method name")
	assert.True(t, pkts[1].IsReply(), "Expected second packet to be a reply")
}

func TestDecodeMalformedFrame(t *testing.T) {
	for _, frame := range []string{``, `   `, `{`, `[{"type":`, `not json`} {
		pkts, err := Decode([]byte(frame))
		assert.Error(t, err, "Expecting decode to fail for %q", frame)
		assert.Nil(t, pkts, "Packets should be nil for %q", frame)

		var cerr *common.CodecError
		assert.ErrorAs(t, err, &cerr, "Expected a codec error for %q", frame)
	}
}

func TestEncodeSinglePacket(t *testing.T) {
	body, err := Encode(common.NewMethod(0, 0, "getTime", json.RawMessage(`{}`), false))
	assert.NoError(t, err, "Not expecting encode to fail")
	assert.JSONEq(t, `{"type":"method","id":0,"seq":0,"method":"getTime","params":{}}`, string(body),
		"Expected the single-object frame form")
}

func TestEncodeNoPackets(t *testing.T) {
	body, err := Encode()
	assert.Error(t, err, "Expecting encode of nothing to fail")
	assert.Nil(t, body, "Frame should be nil")
}

func TestRoundTrip(t *testing.T) {
	pkts := []*common.Packet{
		common.NewMethod(0, 0, "giveInput", json.RawMessage(`{"controlID":"btn","event":"mousedown"}`), true),
		common.NewReply(1, 1, json.RawMessage(`{"time":1700000000000}`), nil),
		common.NewReply(2, 2, nil, &common.RPCError{Code: 4012, Message: "bad", Path: "params.scenes"}),
	}

	body, err := Encode(pkts...)
	assert.NoError(t, err, "Not expecting encode to fail")

	decoded, err := Decode(body)
	assert.NoError(t, err, "Not expecting decode to fail")
	assert.Equal(t, pkts, decoded, "Round trip should be lossless")
}

func TestRoundTripSingle(t *testing.T) {
	pkt := common.NewMethod(7, 9, "onControlUpdate", json.RawMessage(`{"sceneID":"default","controls":[]}`), true)

	body, err := Encode(pkt)
	assert.NoError(t, err, "Not expecting encode to fail")

	decoded, err := Decode(body)
	assert.NoError(t, err, "Not expecting decode to fail")
	assert.Equal(t, []*common.Packet{pkt}, decoded, "Round trip should be lossless")
}
