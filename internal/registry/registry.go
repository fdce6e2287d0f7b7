package registry

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNilFactory indicates a missing creation function.
	ErrNilFactory = errors.New("registry: nil factory")
	// ErrInvalidTag indicates a nil or non-comparable tag.
	ErrInvalidTag = errors.New("registry: invalid tag")
	// ErrNoFactory indicates no factory is registered for a resource type.
	ErrNoFactory = errors.New("registry: no factory registered")
	// ErrNilResource indicates a factory returned a nil resource.
	ErrNilResource = errors.New("registry: factory returned nil resource")
)

type scope uint8

const (
	scopeUnique scope = iota
	scopeTagged
)

func (s scope) String() string {
	if s == scopeTagged {
		return "tagged"
	}
	return "unique"
}

// key identifies a slot. tag is nil for the unique scope.
type key struct {
	scope scope
	typ   reflect.Type
	tag   Tag
}

func (k key) String() string {
	if k.scope == scopeTagged {
		return fmt.Sprintf("%s[%v]", k.typ, k.tag)
	}
	return k.typ.String()
}

type entry struct {
	scope scope
	typ   reflect.Type
	tag   Tag // guarded by Registry.mu
	res   Resource
	// building is set until the first Show succeeds. Guarded by Registry.mu.
	building bool
}

func (e *entry) matches(k key) bool {
	if e.scope != k.scope || e.typ != k.typ {
		return false
	}
	return k.scope == scopeUnique || e.tag == k.tag
}

// call tracks an in-flight creation so concurrent callers for the same key
// wait for it instead of creating a second instance.
type call struct {
	done chan struct{}
}

// Registry is the keyed single-instance registry. It is safe for concurrent
// use. Factories and resource methods other than Disposed run without the
// lock held, so a resource may dispose synchronously from any of them.
type Registry struct {
	mu       sync.Mutex
	unique   []*entry
	tagged   []*entry
	inflight map[key]*call

	fmu       sync.RWMutex
	factories map[reflect.Type]*factorySet

	observer Observer
	recorder Recorder
	log      *zap.Logger
}

// New creates an empty registry with the provided options.
func New(opts ...Option) *Registry {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	r := &Registry{
		inflight:  make(map[key]*call),
		factories: make(map[reflect.Type]*factorySet),
		observer:  o.Observer,
		recorder:  o.Recorder,
		log:       o.Logger,
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

func typeOf[T Resource]() reflect.Type { return reflect.TypeFor[T]() }

func (r *Registry) collection(s scope) *[]*entry {
	if s == scopeTagged {
		return &r.tagged
	}
	return &r.unique
}

// findLocked returns the first matching entry that is fully shown and not
// disposed.
func (r *Registry) findLocked(k key) *entry {
	for _, e := range *r.collection(k.scope) {
		if !e.matches(k) || e.building || e.res.Disposed() {
			continue
		}
		return e
	}
	return nil
}

func (r *Registry) find(k key) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(k)
}

func (r *Registry) removeLocked(e *entry) bool {
	col := r.collection(e.scope)
	i := slices.Index(*col, e)
	if i < 0 {
		return false
	}
	*col = slices.Delete(*col, i, i+1)
	r.recorder.ResourceRemoved(e.scope.String(), e.typ.String())
	return true
}

// remove drops exactly e. Removing an absent entry is a no-op.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	removed := r.removeLocked(e)
	r.mu.Unlock()
	if removed {
		r.log.Debug("resource removed",
			zap.Stringer("scope", e.scope),
			zap.Stringer("kind", e.typ),
			zap.Any("tag", e.tag))
	}
}

func (r *Registry) observe(err error, handled bool) {
	r.log.Debug("recovered resource error", zap.Error(err), zap.Bool("handled", handled))
	if r.observer != nil {
		r.observer.Observe(err, handled)
	}
}

// showOrCreate returns the live resource for k, reactivating it, or creates
// one. At most one creation per key runs at a time.
func (r *Registry) showOrCreate(k key, owner Resource, create func() (Resource, error)) (Resource, error) {
	for {
		r.mu.Lock()
		if e := r.findLocked(k); e != nil {
			r.mu.Unlock()
			err := reactivate(e.res, owner)
			if err == nil {
				r.recorder.ResourceReused(k.scope.String(), k.typ.String())
				return e.res, nil
			}
			if errors.Is(err, ErrDisposed) {
				r.observe(err, true)
				r.remove(e)
				continue
			}
			return nil, fmt.Errorf("registry: reactivate %s: %w", k, err)
		}
		if c, busy := r.inflight[k]; busy {
			r.mu.Unlock()
			<-c.done
			continue
		}
		c := &call{done: make(chan struct{})}
		r.inflight[k] = c
		r.mu.Unlock()
		return r.createOnce(k, c, owner, create)
	}
}

// createOnce runs create for the in-flight slot c and releases the slot
// even when create panics.
func (r *Registry) createOnce(k key, c *call, owner Resource, create func() (Resource, error)) (Resource, error) {
	defer func() {
		r.mu.Lock()
		delete(r.inflight, k)
		r.mu.Unlock()
		close(c.done)
	}()
	return r.create(k, owner, create)
}

func (r *Registry) create(k key, owner Resource, create func() (Resource, error)) (Resource, error) {
	res, err := create()
	if err != nil {
		return nil, fmt.Errorf("registry: create %s: %w", k, err)
	}
	if isNilResource(res) {
		return nil, fmt.Errorf("%w: %s", ErrNilResource, k)
	}

	e := &entry{scope: k.scope, typ: k.typ, tag: k.tag, res: res, building: true}
	r.mu.Lock()
	col := r.collection(k.scope)
	*col = append(*col, e)
	r.recorder.ResourceCreated(k.scope.String(), k.typ.String())
	r.mu.Unlock()
	r.log.Debug("resource created", zap.Stringer("key", k))

	defer func() {
		if p := recover(); p != nil {
			r.remove(e)
			panic(p)
		}
	}()

	res.OnDisposed(func() { r.remove(e) })
	if res.Disposed() {
		r.remove(e)
	}

	// Only the tagged registry hands the owner to a fresh instance.
	var showOwner Resource
	if k.scope == scopeTagged {
		showOwner = owner
	}
	if err := res.Show(showOwner); err != nil {
		if errors.Is(err, ErrDisposed) {
			r.observe(err, true)
		}
		r.remove(e)
		if cerr := res.Close(); cerr != nil && !errors.Is(cerr, ErrDisposed) {
			err = multierr.Append(err, cerr)
		}
		return nil, fmt.Errorf("registry: show %s: %w", k, err)
	}

	r.mu.Lock()
	e.building = false
	r.mu.Unlock()
	return res, nil
}

// reactivate brings a live resource forward: activate when visible, show
// otherwise, then focus.
func reactivate(res, owner Resource) error {
	visible, err := res.Visible()
	if err != nil {
		return err
	}
	if visible {
		err = res.Activate()
	} else {
		err = res.Show(owner)
	}
	if err != nil {
		return err
	}
	return res.Focus()
}

// closeEach closes every entry that is not already disposed. Disposed
// signals are observed as handled; other failures are aggregated.
func (r *Registry) closeEach(entries []*entry) error {
	var errs error
	for _, e := range entries {
		if e.res.Disposed() {
			continue
		}
		if err := e.res.Close(); err != nil {
			if errors.Is(err, ErrDisposed) {
				r.observe(err, true)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", e.typ, err))
		}
	}
	return errs
}

// Close tears down both registries. Entries are dropped before their
// resources are closed, so late disposal callbacks are no-ops.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := make([]*entry, 0, len(r.unique)+len(r.tagged))
	all = append(all, r.unique...)
	all = append(all, r.tagged...)
	for _, e := range all {
		r.recorder.ResourceRemoved(e.scope.String(), e.typ.String())
	}
	r.unique, r.tagged = nil, nil
	r.mu.Unlock()

	r.log.Debug("registry closed", zap.Int("entries", len(all)))
	return r.closeEach(all)
}

// EntryInfo is a read-only view of a registered entry.
type EntryInfo struct {
	Scope    string `json:"scope"`
	Kind     string `json:"kind"`
	Tag      Tag    `json:"tag,omitempty"`
	Disposed bool   `json:"disposed"`
}

// Snapshot lists the current entries, unique ones first, in insertion order.
func (r *Registry) Snapshot() []EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EntryInfo, 0, len(r.unique)+len(r.tagged))
	for _, col := range [][]*entry{r.unique, r.tagged} {
		for _, e := range col {
			out = append(out, EntryInfo{
				Scope:    e.scope.String(),
				Kind:     e.typ.String(),
				Tag:      e.tag,
				Disposed: e.res.Disposed(),
			})
		}
	}
	return out
}

// Len returns the number of registered entries per sub-registry, including
// entries whose disposal callback has not fired yet.
func (r *Registry) Len() (unique, tagged int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unique), len(r.tagged)
}
