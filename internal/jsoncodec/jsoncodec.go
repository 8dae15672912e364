// Package jsoncodec provides a gRPC codec that marshals messages as JSON.
//
// Podsite's gRPC services are described by hand-written service descriptors
// rather than generated protobuf code, so request and response types are
// plain Go structs. Both the model runtime client and the podcast gRPC
// transport force this codec on every call.
package jsoncodec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype registered for this codec.
const Name = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec implements encoding.Codec with encoding/json.
type Codec struct{}

// Marshal encodes v as JSON.
func (Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsoncodec: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes JSON data into v.
func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsoncodec: unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns the codec name.
func (Codec) Name() string { return Name }
