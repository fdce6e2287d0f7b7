package registry

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TaggedFactory constructs a resource for tag from optional arguments.
type TaggedFactory[T Resource] func(tag Tag, args ...any) (T, error)

// ShowOrCreateTagged returns the live instance of T tagged with tag,
// reactivating it, or creates one with create(tag, args...) and shows it
// with owner.
func ShowOrCreateTagged[T Resource](r *Registry, tag Tag, owner Resource, create TaggedFactory[T], args ...any) (T, error) {
	var zero T
	if create == nil {
		return zero, ErrNilFactory
	}
	if err := validateTag(tag); err != nil {
		return zero, err
	}
	k := key{scope: scopeTagged, typ: typeOf[T](), tag: tag}
	res, err := r.showOrCreate(k, owner, func() (Resource, error) {
		v, err := create(tag, args...)
		return v, err
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// GetByTag returns the live instance of T tagged with tag without side
// effects.
func GetByTag[T Resource](r *Registry, tag Tag) (T, bool) {
	if validateTag(tag) != nil {
		var zero T
		return zero, false
	}
	return lookup[T](r, key{scope: scopeTagged, typ: typeOf[T](), tag: tag})
}

// ChangeTag moves the live instance of T from oldTag to newTag. It reports
// false when no instance holds oldTag.
//
// The caller is responsible for newTag being free: a collision is logged
// but not prevented.
func ChangeTag[T Resource](r *Registry, oldTag, newTag Tag) (bool, error) {
	if err := validateTag(oldTag); err != nil {
		return false, err
	}
	if err := validateTag(newTag); err != nil {
		return false, err
	}
	typ := typeOf[T]()

	r.mu.Lock()
	e := r.findLocked(key{scope: scopeTagged, typ: typ, tag: oldTag})
	if e == nil {
		r.mu.Unlock()
		return false, nil
	}
	other := r.findLocked(key{scope: scopeTagged, typ: typ, tag: newTag})
	e.tag = newTag
	r.mu.Unlock()

	if other != nil && other != e {
		r.log.Warn("tag already held by a live resource",
			zap.Stringer("kind", typ), zap.Any("tag", newTag))
	}
	r.log.Debug("resource retagged",
		zap.Stringer("kind", typ), zap.Any("from", oldTag), zap.Any("to", newTag))
	return true, nil
}

// CloseAndRemove closes the live instance of T tagged with tag and removes
// it. A missing instance is a no-op.
//
// Each matching entry is closed at most once. Entries that are disposed, or
// still registered after their close returned, are removed directly.
func CloseAndRemove[T Resource](r *Registry, tag Tag) error {
	if err := validateTag(tag); err != nil {
		return err
	}
	e := r.find(key{scope: scopeTagged, typ: typeOf[T](), tag: tag})
	if e == nil {
		return nil
	}
	target := e.res

	closed := make(map[*entry]struct{})
	var errs error
	for {
		next := r.nextToClose(target, tag, closed)
		if next == nil {
			return errs
		}
		closed[next] = struct{}{}
		if err := next.res.Close(); err != nil {
			if errors.Is(err, ErrDisposed) {
				r.observe(err, true)
				r.remove(next)
				continue
			}
			errs = multierr.Append(errs, err)
		}
	}
}

func (r *Registry) nextToClose(target Resource, tag Tag, closed map[*entry]struct{}) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < len(r.tagged); {
		e := r.tagged[i]
		if e.res != target || e.tag != tag {
			i++
			continue
		}
		if _, done := closed[e]; done || e.res.Disposed() {
			r.removeLocked(e)
			continue
		}
		return e
	}
	return nil
}

// CloseAllTagged clears the tagged registry and closes every instance that
// was not yet disposed. Disposal callbacks firing afterwards are no-ops.
func (r *Registry) CloseAllTagged() error {
	r.mu.Lock()
	snapshot := r.tagged
	r.tagged = nil
	for _, e := range snapshot {
		r.recorder.ResourceRemoved(e.scope.String(), e.typ.String())
	}
	r.mu.Unlock()

	r.log.Debug("tagged registry cleared", zap.Int("entries", len(snapshot)))
	return r.closeEach(snapshot)
}
