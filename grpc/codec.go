package grpc

import (
	"github.com/pkg/errors"
)

// codecName identifies the wire codec both ends force on their streams.
const codecName = "pointstream"

// wireCodec marshals the two message types of the streaming protocol without
// generated code: query requests as JSON, batch chunks as the packed binary
// column layout.
type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	switch msg := v.(type) {
	case *queryRequest:
		return encodeRequest(msg)
	case *batchChunk:
		return encodeChunk(msg)
	default:
		return nil, errors.Errorf("codec cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	switch msg := v.(type) {
	case *queryRequest:
		return decodeRequest(data, msg)
	case *batchChunk:
		decoded, err := decodeChunk(data)
		if err != nil {
			return err
		}
		*msg = *decoded
		return nil
	default:
		return errors.Errorf("codec cannot unmarshal into %T", v)
	}
}
