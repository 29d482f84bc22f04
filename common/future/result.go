package future

// Result encapsulates a value along with an error. It is used wherever a
// single type has to carry the outcome of an operation that either succeeds
// with a value of type T or fails with an error, e.g. as the payload of a
// Future.
type Result[T any] struct {
	Value T
	Error error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

// Get returns the value and error contained in the Result.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Error
}
