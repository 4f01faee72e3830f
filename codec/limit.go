package codec

import "fmt"

// Limit wraps another codec and enforces a maximum payload size in both
// directions. A memoized result larger than MaxBytes is rejected on Encode,
// so the result store never holds it; oversized input is rejected on Decode
// without invoking Inner. If MaxBytes <= 0, size limiting is disabled.
type Limit[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxBytes is the maximum permitted encoded length.
	MaxBytes int
}

var _ Codec[struct{}] = Limit[struct{}]{}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxBytes > 0 && len(b) > c.MaxBytes {
		return nil, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxBytes)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxBytes > 0 && len(b) > c.MaxBytes {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxBytes)
	}
	return c.Inner.Decode(b)
}
