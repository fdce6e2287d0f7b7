package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// fakeWindow is a scriptable Resource used across the registry tests.
type fakeWindow struct {
	Lifecycle

	id  int
	tag Tag
	arg []any

	mu          sync.Mutex
	visible     bool
	shows       int
	activations int
	focuses     int
	closes      int
	lastOwner   Resource

	// asyncClose leaves disposal to a later explicit Dispose call.
	asyncClose bool
	// showErr is returned from Show when set.
	showErr error
	// disposeOnShow disposes synchronously from inside Show.
	disposeOnShow bool
	// showGate blocks Show until closed; showStarted is closed on entry.
	showGate    chan struct{}
	showStarted chan struct{}
	startOnce   sync.Once
	// panicOnShow makes Show panic.
	panicOnShow bool
	// stale makes every method report the disposed signal while Disposed
	// still returns false, as if the disposal callback had not run yet.
	stale atomic.Bool
}

func (w *fakeWindow) String() string { return fmt.Sprintf("window#%d", w.id) }

func (w *fakeWindow) check() error {
	if w.stale.Load() {
		return fmt.Errorf("%s: %w", w, ErrDisposed)
	}
	return w.Check()
}

func (w *fakeWindow) Visible() (bool, error) {
	if err := w.check(); err != nil {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible, nil
}

func (w *fakeWindow) Show(owner Resource) error {
	if err := w.check(); err != nil {
		return err
	}
	if w.showGate != nil {
		w.startOnce.Do(func() { close(w.showStarted) })
		<-w.showGate
	}
	if w.panicOnShow {
		panic("show exploded")
	}
	if w.disposeOnShow {
		w.Dispose()
		return ErrDisposed
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.showErr != nil {
		return w.showErr
	}
	w.shows++
	w.visible = true
	w.lastOwner = owner
	return nil
}

func (w *fakeWindow) Activate() error {
	if err := w.check(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activations++
	return nil
}

func (w *fakeWindow) Focus() error {
	if err := w.check(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focuses++
	return nil
}

func (w *fakeWindow) Close() error {
	if err := w.check(); err != nil {
		return err
	}
	w.mu.Lock()
	w.closes++
	w.visible = false
	async := w.asyncClose
	w.mu.Unlock()
	if !async {
		w.Dispose()
	}
	return nil
}

func (w *fakeWindow) hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
}

func (w *fakeWindow) counts() (shows, activations, focuses, closes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shows, w.activations, w.focuses, w.closes
}

// toolWindow is a second resource type with its own identity.
type toolWindow struct{ fakeWindow }

type windowFactory struct {
	created atomic.Int32
	// configure adjusts each new window before it is returned.
	configure func(*fakeWindow)
}

func (f *windowFactory) unique(args ...any) (*fakeWindow, error) {
	w := &fakeWindow{id: int(f.created.Add(1)), arg: args}
	if f.configure != nil {
		f.configure(w)
	}
	return w, nil
}

func (f *windowFactory) tagged(tag Tag, args ...any) (*fakeWindow, error) {
	w, _ := f.unique(args...)
	w.tag = tag
	return w, nil
}

func (f *windowFactory) tool(tag Tag, _ ...any) (*toolWindow, error) {
	return &toolWindow{fakeWindow{id: int(f.created.Add(1)), tag: tag}}, nil
}

type observed struct {
	mu      sync.Mutex
	errs    []error
	handled []bool
}

func (o *observed) Observe(err error, handled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
	o.handled = append(o.handled, handled)
}

func (o *observed) disposedSignals() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for i, err := range o.errs {
		if errors.Is(err, ErrDisposed) && o.handled[i] {
			n++
		}
	}
	return n
}

type countingRecorder struct {
	mu                       sync.Mutex
	created, reused, removed map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{created: map[string]int{}, reused: map[string]int{}, removed: map[string]int{}}
}

func (c *countingRecorder) ResourceCreated(scope, _ string) { c.bump(c.created, scope) }
func (c *countingRecorder) ResourceReused(scope, _ string)  { c.bump(c.reused, scope) }
func (c *countingRecorder) ResourceRemoved(scope, _ string) { c.bump(c.removed, scope) }

func (c *countingRecorder) bump(m map[string]int, scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m[scope]++
}
