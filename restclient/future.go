package restclient

import "context"

// Future is the single result of an asynchronous call: exactly one value or
// one error, delivered once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs fn in a new goroutine and returns its Future.
func Async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends. Cancelling ctx
// stops the wait only; the call itself observes the context it was
// started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the result is available.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Then chains a decoding step on a Future's value.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Async(context.Background(), func(context.Context) (U, error) {
		v, err := f.Result()
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}
