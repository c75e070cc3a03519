package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec replaces grpc-go's default protobuf codec with a plain
// JSON one. Registering it under the name "proto" is what makes it the
// codec grpc-go picks for requests that arrive with a bare
// "application/grpc" content type (no "+subtype"), which is what every
// generated client sends — there is no compiled .proto descriptor in
// this tree to drive the real codec, and the request/response types
// here are plain structs rather than generated proto.Message values,
// so registering under a different name would just leave ordinary
// calls unroutable.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
