// Package codec translates between frame payloads and protocol packets.
//
// A frame is the byte-wise encoding of a JSON value: either a single packet
// object or an array of packet objects. Decode normalizes both forms to a
// list; Encode renders the single-object form when given exactly one packet,
// matching what the service emits.
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/damianoneill/interactive/common"
)

// Decode parses a frame payload into its packets.
func Decode(frame []byte) ([]*common.Packet, error) {
	body := bytes.TrimSpace(frame)
	if len(body) == 0 {
		return nil, &common.CodecError{Cause: errors.New("empty frame")}
	}
	if body[0] == '[' {
		var pkts []*common.Packet
		if err := json.Unmarshal(body, &pkts); err != nil {
			return nil, &common.CodecError{Cause: err}
		}
		return pkts, nil
	}
	var pkt common.Packet
	if err := json.Unmarshal(body, &pkt); err != nil {
		return nil, &common.CodecError{Cause: err}
	}
	return []*common.Packet{&pkt}, nil
}

// Encode renders packets as a frame payload.
func Encode(pkts ...*common.Packet) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch len(pkts) {
	case 0:
		return nil, &common.CodecError{Cause: errors.New("no packets to encode")}
	case 1:
		body, err = json.Marshal(pkts[0])
	default:
		body, err = json.Marshal(pkts)
	}
	if err != nil {
		return nil, &common.CodecError{Cause: err}
	}
	return body, nil
}
