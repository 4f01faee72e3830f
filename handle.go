package ttlmemo

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
)

var handleSeq atomic.Uint64

// Handle identifies one memoized function inside a Registry. Handles are
// compared by identity: NewHandle never returns the same handle twice, even
// for the same name. The zero Handle is invalid.
type Handle struct {
	id   uint64
	name string
}

// NewHandle returns a new identity named name. Equal names still give
// distinct handles.
func NewHandle(name string) Handle {
	return Handle{id: handleSeq.Add(1), name: name}
}

func (h Handle) Name() string { return h.name }
func (h Handle) IsZero() bool { return h.id == 0 }

func (h Handle) String() string {
	return h.name + "#" + strconv.FormatUint(h.id, 10)
}

// funcName returns the short symbol name of fn, e.g. "pkg.add" or
// "pkg.TestX.func1".
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "func"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "func"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
