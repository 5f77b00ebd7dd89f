package outcome

import "errors"

// Result is the envelope returned to callers: success flag, a joined error message,
// the individual errors and optional data.
type Result[T any] struct {
	Success bool    `json:"success"`
	Kind    Kind    `json:"kind,omitempty"`
	Error   string  `json:"error,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
	Data    *T      `json:"data,omitempty"`
}

// OK wraps data in a successful Result.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: &data}
}

// Fail wraps err in a failed Result.
func Fail[T any](err error) Result[T] {
	r := Result[T]{
		Success: false,
		Kind:    KindOf(err),
		Error:   err.Error(),
	}
	var e *Error
	if errors.As(err, &e) {
		r.Errors = []Error{*e}
	}
	return r
}

// FailAll wraps a list of errors in a failed Result. The first error's kind is
// reported as the Result kind.
func FailAll[T any](errs []Error) Result[T] {
	r := Result[T]{Success: false, Errors: errs, Error: Join(errs)}
	if len(errs) > 0 {
		r.Kind = errs[0].Kind
	}
	return r
}
