package messaging

// Future is the pending result of a backend call. Callbacks run on the loop.
type Future[T any] struct {
	id       uint64
	resolved bool
	value    T
	waiters  []func(T)
	post     func(func())
}

// ID is the correlation id of the call.
func (f *Future[T]) ID() uint64 { return f.id }

// Then runs fn with the result once it is available. A nil result means the
// backend did not answer.
func (f *Future[T]) Then(fn func(T)) {
	if fn == nil {
		return
	}
	if f.resolved {
		v := f.value
		f.post(func() { fn(v) })
		return
	}
	f.waiters = append(f.waiters, fn)
}

// Result returns the value and whether the future has resolved.
func (f *Future[T]) Result() (T, bool) {
	return f.value, f.resolved
}

func (f *Future[T]) resolve(v T) {
	if f.resolved {
		return
	}
	f.resolved = true
	f.value = v
	waiters := f.waiters
	f.waiters = nil
	for _, fn := range waiters {
		fn(v)
	}
}
