package orm

import (
	"encoding/json"
	"fmt"

	"github.com/ugorji/go/codec"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec encodes Blob-kind fields to self-describing byte payloads.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codec names accepted by CodecByName.
const (
	CodecJSON    = "json"
	CodecBSON    = "bson"
	CodecMsgpack = "msgpack"
)

// CodecByName returns the codec registered under name. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecBSON:
		return BSONCodec{}, nil
	case CodecMsgpack:
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec stores payloads as JSON text.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return CodecJSON }

// Marshal encodes v as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes JSON into v.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// BSONCodec stores payloads as BSON documents. Values that are not
// documents themselves are wrapped as {"v": value}.
type BSONCodec struct{}

// bsonEnvelope lets slices, maps and scalars share one document shape.
type bsonEnvelope struct {
	V bson.RawValue `bson:"v"`
}

// Name returns "bson".
func (BSONCodec) Name() string { return CodecBSON }

// Marshal encodes v inside a BSON envelope document.
func (BSONCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(bson.M{"v": v})
}

// Unmarshal decodes the envelope's value into v.
func (BSONCodec) Unmarshal(data []byte, v any) error {
	var env bsonEnvelope
	if err := bson.Unmarshal(data, &env); err != nil {
		return err
	}
	return env.V.Unmarshal(v)
}

// MsgpackCodec stores payloads as MessagePack.
type MsgpackCodec struct {
	handle *codec.MsgpackHandle
}

// NewMsgpackCodec returns a MessagePack codec.
func NewMsgpackCodec() MsgpackCodec {
	return MsgpackCodec{handle: newMsgpackHandle()}
}

func newMsgpackHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	return h
}

func (c MsgpackCodec) h() *codec.MsgpackHandle {
	if c.handle == nil {
		return newMsgpackHandle()
	}
	return c.handle
}

// Name returns "msgpack".
func (MsgpackCodec) Name() string { return CodecMsgpack }

// Marshal encodes v as MessagePack.
func (c MsgpackCodec) Marshal(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, c.h()).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes MessagePack into v.
func (c MsgpackCodec) Unmarshal(data []byte, v any) error {
	return codec.NewDecoderBytes(data, c.h()).Decode(v)
}
