package wire

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Codec replaces grpc's default "proto" codec on the server. Hand-encoded
// messages go through Message; generated ones (the health service) through
// the protobuf runtime.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.Marshal(), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("wire: cannot marshal %T", v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("wire: cannot unmarshal into %T", v)
}

func (Codec) Name() string { return "proto" }
