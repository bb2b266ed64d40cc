// Package weakref provides an invalidatable handle standing in for a
// weak reference: Go has no weak pointers before the runtime/weak
// package lands broadly, so this wraps an atomic.Pointer that a
// singleton's teardown can null out. Grounded on the atomic-swap-to-nil
// idiom already used for the connection manager's handler triple
// (wsgateway.Manager.handlers, an atomic.Pointer[handlerSet] swapped to
// a no-op set on shutdown): a worker-pool job that captured this Ref
// before teardown sees a live target or nothing, never a stale one.
package weakref

import "sync/atomic"

// Ref holds an invalidatable reference to a *T. Zero value is not
// usable; construct with New.
type Ref[T any] struct {
	ptr atomic.Pointer[T]
}

// New returns a Ref pointing at target.
func New[T any](target *T) *Ref[T] {
	r := &Ref[T]{}
	r.ptr.Store(target)
	return r
}

// Get returns the referenced value and true, or (nil, false) if the
// reference has been invalidated.
func (r *Ref[T]) Get() (*T, bool) {
	p := r.ptr.Load()
	return p, p != nil
}

// Invalidate clears the reference. Safe to call more than once, and
// safe to call concurrently with Get.
func (r *Ref[T]) Invalidate() {
	r.ptr.Store(nil)
}
