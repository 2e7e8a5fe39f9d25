// Package event provides synchronous, typed observer lists for the combat core.
package event

// Feed is an ordered list of subscribers for values of type T.
//
// Subscribers are notified synchronously in registration order. Unsubscribing
// (any subscriber, including the one currently being notified) during Emit is
// safe: a subscriber removed mid-notification is not called for the remainder
// of that Emit.
//
// Feed is not safe for concurrent use; the combat core runs on one logical thread.
// The zero value is ready for use.
type Feed[T any] struct {
	subs []*subscriber[T]
}

type subscriber[T any] struct {
	fn     func(T)
	active bool
}

// Subscribe registers fn and returns a function that removes it.
//
// Precondition: fn must not be nil.
// Postcondition: fn is called on every subsequent Emit until the returned
// function is called. Calling the returned function more than once is a no-op.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s := &subscriber[T]{fn: fn, active: true}
	f.subs = append(f.subs, s)
	return func() {
		if !s.active {
			return
		}
		s.active = false
		kept := make([]*subscriber[T], 0, len(f.subs))
		for _, other := range f.subs {
			if other != s {
				kept = append(kept, other)
			}
		}
		f.subs = kept
	}
}

// Emit delivers v to every active subscriber in registration order.
func (f *Feed[T]) Emit(v T) {
	if len(f.subs) == 0 {
		return
	}
	snapshot := f.subs
	for _, s := range snapshot {
		if s.active {
			s.fn(v)
		}
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int { return len(f.subs) }
