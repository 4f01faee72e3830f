package codec

import "encoding/json"

// JSON is a Codec backed by encoding/json. The zero value is ready to use.
//
// encoding/json sorts map keys, so it is usable as a key codec. Numbers lose
// their Go type on Decode (float64 for interface values).
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
