package registry

// Factory constructs a resource from optional constructor arguments.
type Factory[T Resource] func(args ...any) (T, error)

// ShowOrCreate returns the live instance of T, reactivating it, or creates
// one with create(args...) and shows it. owner is only used when an existing
// hidden instance is shown again.
func ShowOrCreate[T Resource](r *Registry, owner Resource, create Factory[T], args ...any) (T, error) {
	var zero T
	if create == nil {
		return zero, ErrNilFactory
	}
	k := key{scope: scopeUnique, typ: typeOf[T]()}
	res, err := r.showOrCreate(k, owner, func() (Resource, error) {
		v, err := create(args...)
		return v, err
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// Get returns the live instance of T without side effects.
func Get[T Resource](r *Registry) (T, bool) {
	return lookup[T](r, key{scope: scopeUnique, typ: typeOf[T]()})
}

func lookup[T Resource](r *Registry, k key) (T, bool) {
	var zero T
	e := r.find(k)
	if e == nil {
		return zero, false
	}
	v, ok := e.res.(T)
	return v, ok
}
