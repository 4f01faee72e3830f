// Package codec converts values to and from bytes.
//
// ttlmemo uses codecs in two places: to turn call arguments into a stable
// call key (see ttlmemo.Options.KeyCodec) and to serialize results for
// byte-oriented result stores such as store/bigcache. Key codecs must be
// deterministic: equal inputs must always produce identical bytes.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
