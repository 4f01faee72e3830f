package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR is a Codec backed by fxamacker/cbor. Build it with NewCBOR, MustCBOR
// or NewKeyCBOR; the zero value has no modes and panics.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR returns a value codec. With deterministic set it encodes with
// RFC 8949 core deterministic options (sorted maps, shortest floats),
// otherwise with the faster preferred unsorted options. Times are written as
// RFC3339Nano text so they keep their zone.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	return newCBOR[V](eo)
}

// MustCBOR is like NewCBOR but panics on error.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

// NewKeyCBOR returns the codec used for call keys. Output is byte-for-byte
// stable for equal input: maps are sorted, NaN and infinities collapse to one
// encoding, nil and empty containers are the same, and times are tagged
// instants (zone dropped) so a time never collides with a plain number.
func NewKeyCBOR[V any]() (CBOR[V], error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeUnixDynamic
	eo.TimeTag = cbor.EncTagRequired
	eo.NaNConvert = cbor.NaNConvert7e00
	eo.InfConvert = cbor.InfConvertFloat16
	eo.NilContainers = cbor.NilContainerAsEmpty
	return newCBOR[V](eo)
}

func newCBOR[V any](eo cbor.EncOptions) (CBOR[V], error) {
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
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
