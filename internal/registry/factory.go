package registry

import (
	"fmt"
	"reflect"
)

type factorySet struct {
	tagged   any // TaggedFactory[T]
	fallback any // Factory[T]
}

func (r *Registry) factoriesFor(typ reflect.Type) *factorySet {
	fs, ok := r.factories[typ]
	if !ok {
		fs = &factorySet{}
		r.factories[typ] = fs
	}
	return fs
}

// RegisterFactory sets the tagged constructor for T, replacing any previous
// one. It receives the tag followed by the caller's arguments.
func RegisterFactory[T Resource](r *Registry, f TaggedFactory[T]) error {
	if f == nil {
		return ErrNilFactory
	}
	r.fmu.Lock()
	defer r.fmu.Unlock()
	r.factoriesFor(typeOf[T]()).tagged = f
	return nil
}

// RegisterDefault sets the argument-less constructor used for T when no
// tagged constructor is registered.
func RegisterDefault[T Resource](r *Registry, f Factory[T]) error {
	if f == nil {
		return ErrNilFactory
	}
	r.fmu.Lock()
	defer r.fmu.Unlock()
	r.factoriesFor(typeOf[T]()).fallback = f
	return nil
}

// FactoryFor resolves the tagged constructor for T, falling back to the
// default constructor called without arguments.
func FactoryFor[T Resource](r *Registry) (TaggedFactory[T], error) {
	typ := typeOf[T]()
	r.fmu.RLock()
	fs := r.factories[typ]
	r.fmu.RUnlock()

	switch {
	case fs != nil && fs.tagged != nil:
		return fs.tagged.(TaggedFactory[T]), nil
	case fs != nil && fs.fallback != nil:
		def := fs.fallback.(Factory[T])
		return func(Tag, ...any) (T, error) { return def() }, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoFactory, typ)
	}
}

// ShowOrCreateRegistered is ShowOrCreateTagged with the factory resolved by
// FactoryFor.
func ShowOrCreateRegistered[T Resource](r *Registry, tag Tag, owner Resource, args ...any) (T, error) {
	create, err := FactoryFor[T](r)
	if err != nil {
		var zero T
		return zero, err
	}
	return ShowOrCreateTagged(r, tag, owner, create, args...)
}
