package ttlmemo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned by registry lookups for a handle that was
	// never registered. Wrap always registers first, so Memo never sees it.
	ErrNotRegistered = errors.New("ttlmemo: function not registered")
	ErrInvalidHandle = errors.New("ttlmemo: zero handle")
	ErrNilFunc       = errors.New("ttlmemo: nil function")
	// ErrStoreType means a handle was reused for a function of another
	// result type.
	ErrStoreType = errors.New("ttlmemo: handle registered with a different result type")
	// ErrUnkeyable is wrapped by a KeyError when an argument cannot be keyed
	// without losing information, such as a struct with unexported fields.
	ErrUnkeyable = errors.New("ttlmemo: argument cannot be part of a call key")
)

// KeyError reports arguments the key codec could not encode. The underlying
// function is not invoked when it is returned.
type KeyError struct {
	Func string
	Err  error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("ttlmemo: %s: cannot build call key: %v", e.Func, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }
