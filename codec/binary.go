package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// Msgpack uses vmihailenco/msgpack/v5. The zero value is ready to use.
// Mind `msgpack:"..."` tags; they differ from json tags.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

// CBOR uses fxamacker/cbor. Build it with NewCBOR; the zero value panics.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var (
	_ Codec[struct{}] = Msgpack[struct{}]{}
	_ Codec[struct{}] = CBOR[struct{}]{}
)

// NewCBOR builds a CBOR codec. deterministic selects RFC 8949 core
// deterministic encoding, so equal values always produce equal bytes
// (handy when several tenants compare stored blobs).
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }
func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

// Protobuf stores generated messages, e.g. Protobuf[*pb.Session]{}.
// Decode allocates through the message descriptor, so T must be a
// concrete generated pointer type. Unknown fields written by newer
// producers are kept unless DiscardUnknown is set.
type Protobuf[T proto.Message] struct {
	Deterministic  bool
	DiscardUnknown bool
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: c.Deterministic}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	var zero T
	m, ok := zero.ProtoReflect().New().Interface().(T)
	if !ok {
		return zero, fmt.Errorf("codec: cannot allocate %T", zero)
	}
	if err := (proto.UnmarshalOptions{DiscardUnknown: c.DiscardUnknown}).Unmarshal(b, m); err != nil {
		return zero, err
	}
	return m, nil
}
