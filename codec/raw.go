package codec

// Bytes passes []byte results through untouched, for memoized functions
// whose results are already serialized and only need a byte store.
type Bytes struct{}

// String stores string results as their raw bytes. No UTF-8 check.
type String struct{}

var (
	_ Codec[[]byte] = Bytes{}
	_ Codec[string] = String{}
)

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
