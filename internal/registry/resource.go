package registry

import (
	"errors"
	"reflect"
	"sync"
)

// ErrDisposed is the disposed-resource signal. Resource methods return an
// error wrapping it when called after teardown.
var ErrDisposed = errors.New("registry: resource disposed")

// Resource is the capability contract a managed instance must satisfy.
// Implementations must be comparable (typically pointer types).
type Resource interface {
	// Visible reports whether the resource is currently shown.
	Visible() (bool, error)
	// Show makes the resource visible. owner may be nil.
	Show(owner Resource) error
	// Activate brings an already visible resource to the foreground.
	Activate() error
	// Focus gives the resource input focus.
	Focus() error
	// Close starts teardown. Disposal may complete later.
	Close() error
	// Disposed reports whether teardown has completed. It must not fail.
	// The registry calls it with its lock held, so it must not block on
	// anything held while disposal callbacks run.
	Disposed() bool
	// OnDisposed subscribes fn to the one-shot disposal notification.
	OnDisposed(fn func())
}

// Tag distinguishes live resources of the same type in the tagged registry.
// Tags are compared with ==, so pointer tags compare by identity.
type Tag = any

// Lifecycle implements the disposal half of Resource. Embed it and call
// Dispose from Close (or whenever teardown finishes).
type Lifecycle struct {
	mu       sync.Mutex
	disposed bool
	subs     []func()
}

// Disposed reports whether Dispose has run.
func (l *Lifecycle) Disposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// OnDisposed registers fn to run once on disposal. When the lifecycle is
// already disposed fn runs immediately.
func (l *Lifecycle) OnDisposed(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		fn()
		return
	}
	l.subs = append(l.subs, fn)
	l.mu.Unlock()
}

// Dispose marks the lifecycle disposed and fires subscribers outside the
// internal lock. It returns false when already disposed.
func (l *Lifecycle) Dispose() bool {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return false
	}
	l.disposed = true
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return true
}

// Check returns ErrDisposed after disposal, nil before.
func (l *Lifecycle) Check() error {
	if l.Disposed() {
		return ErrDisposed
	}
	return nil
}

func isNilResource(res Resource) bool {
	if res == nil {
		return true
	}
	v := reflect.ValueOf(res)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// validateTag rejects nil tags and tags that would panic under ==, such as
// a struct holding a slice in an interface field.
func validateTag(tag Tag) (err error) {
	if tag == nil || !reflect.TypeOf(tag).Comparable() {
		return ErrInvalidTag
	}
	defer func() {
		if recover() != nil {
			err = ErrInvalidTag
		}
	}()
	_ = map[Tag]struct{}{tag: {}}
	return nil
}
