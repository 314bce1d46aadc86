package adminapi

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated over grpc's content-subtype header
// ("application/grpc+gob"), selected per-call via grpc.CallContentSubtype
// on the client and picked up automatically by the server.
const codecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/gob instead of protobuf. There were no .proto sources or
// generated stubs in the retrieval pack to regenerate faithfully, so the
// service is registered by hand (see server.go) against this codec rather
// than against protoc-generated marshaling.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
