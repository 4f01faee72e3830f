package ttlmemo

import "context"

// Wrap1 memoizes a one-argument function. The argument is the only
// positional value of the call key.
func Wrap1[A, R any](p *Policy, fn func(context.Context, A) (R, error), opts ...WrapOption[R]) (func(context.Context, A) (R, error), error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	opts = append([]WrapOption[R]{WithName[R](funcName(fn))}, opts...)
	m, err := Wrap(p, func(ctx context.Context, args Args) (R, error) {
		a, _ := args.Positional[0].(A)
		return fn(ctx, a)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A) (R, error) {
		return m.Call(ctx, Argv(a))
	}, nil
}

// Wrap2 memoizes a two-argument function.
func Wrap2[A, B, R any](p *Policy, fn func(context.Context, A, B) (R, error), opts ...WrapOption[R]) (func(context.Context, A, B) (R, error), error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	opts = append([]WrapOption[R]{WithName[R](funcName(fn))}, opts...)
	m, err := Wrap(p, func(ctx context.Context, args Args) (R, error) {
		a, _ := args.Positional[0].(A)
		b, _ := args.Positional[1].(B)
		return fn(ctx, a, b)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A, b B) (R, error) {
		return m.Call(ctx, Argv(a, b))
	}, nil
}
