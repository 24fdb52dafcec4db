// Package compress implements the frame compression pipeline.
//
// The protocol names its schemes on the wire; Resolve maps a name onto a
// Scheme, treating anything unrecognized as None so that newer service
// versions degrade to plain frames instead of failing.
package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Scheme identifies a frame compression algorithm by its wire name.
type Scheme string

// Define the schemes recognized by the client.
const (
	None Scheme = "none"
	Gzip Scheme = "gzip"
	LZ4  Scheme = "lz4"
)

// Known returns true if name identifies a supported scheme.
func Known(name string) bool {
	switch Scheme(name) {
	case None, Gzip, LZ4:
		return true
	}
	return false
}

// Resolve maps a wire name onto a Scheme, defaulting to None.
func Resolve(name string) Scheme {
	if Known(name) {
		return Scheme(name)
	}
	return None
}

// Encode compresses a frame payload under the supplied scheme.
func Encode(s Scheme, payload []byte) ([]byte, error) {
	switch s {
	case Gzip:
		return gzipEncode(payload)
	case LZ4:
		return lz4Encode(payload)
	default:
		return payload, nil
	}
}

// Decode decompresses a frame payload under the supplied scheme.
func Decode(s Scheme, payload []byte) ([]byte, error) {
	switch s {
	case Gzip:
		return gzipDecode(payload)
	case LZ4:
		return lz4Decode(payload)
	default:
		return payload, nil
	}
}

func gzipEncode(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, errors.Wrap(err, "failed to gzip frame")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to flush gzip frame")
	}
	return buf.Bytes(), nil
}

func gzipDecode(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip frame")
	}
	defer r.Close() // nolint: errcheck
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to gunzip frame")
	}
	return body, nil
}

func lz4Encode(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, errors.Wrap(err, "failed to lz4 compress frame")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to flush lz4 frame")
	}
	return buf.Bytes(), nil
}

func lz4Decode(payload []byte) ([]byte, error) {
	body, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to lz4 decompress frame")
	}
	return body, nil
}
