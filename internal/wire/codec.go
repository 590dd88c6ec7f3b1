package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated over gRPC's content-subtype so that HTTP/2 framing
// carries Envelope/Reply payloads instead of protobuf. There are no
// generated protobuf message types for this protocol in the reference
// sources this package is grounded on, so Dispatch's request/response
// values are marshaled with the binary codec in binary.go and handed to
// gRPC as opaque frames through this encoding.Codec.
const codecName = "discofabric"

func init() {
	encoding.RegisterCodec(binaryCodec{})
}

// binaryCodec adapts Envelope/Reply's Marshal/Unmarshal methods to gRPC's
// encoding.Codec interface.
type binaryCodec struct{}

func (binaryCodec) Name() string { return codecName }

func (binaryCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Envelope:
		return m.Marshal()
	case *Reply:
		return m.Marshal()
	case marshaler:
		return m.Marshal()
	default:
		return nil, fmt.Errorf("wire: codec cannot marshal %T", v)
	}
}

func (binaryCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *Envelope:
		decoded, err := UnmarshalEnvelope(data)
		if err != nil {
			return err
		}
		*m = *decoded
		return nil
	case *Reply:
		decoded, err := UnmarshalReply(data)
		if err != nil {
			return err
		}
		*m = *decoded
		return nil
	default:
		return fmt.Errorf("wire: codec cannot unmarshal into %T", v)
	}
}

type marshaler interface {
	Marshal() ([]byte, error)
}
