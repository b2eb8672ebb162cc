package zkstagepb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec marshals the hand-written request/response structs in this
// package as JSON instead of wire-format protobuf. There is no .proto
// source anywhere in this system, so these types never implement
// proto.Message; registering under the name "proto" overrides gRPC's
// built-in codec for every connection that doesn't request a different
// content-subtype, which is all of them here.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
