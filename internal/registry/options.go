package registry

import "go.uber.org/zap"

// Observer receives errors the registry recovered from internally.
// handled is true when the error did not reach the caller.
type Observer interface {
	Observe(err error, handled bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(err error, handled bool)

// Observe calls f(err, handled).
func (f ObserverFunc) Observe(err error, handled bool) { f(err, handled) }

// Recorder receives entry lifecycle events, typically for metrics.
// It is called with the registry lock held and must not call back into it.
type Recorder interface {
	ResourceCreated(scope, kind string)
	ResourceReused(scope, kind string)
	ResourceRemoved(scope, kind string)
}

// Options control registry behavior.
type Options struct {
	Observer Observer
	Recorder Recorder
	Logger   *zap.Logger
}

// Option modifies Options.
type Option func(*Options)

// WithObserver installs the sink for recovered disposed-resource signals.
func WithObserver(o Observer) Option { return func(opt *Options) { opt.Observer = o } }

// WithRecorder installs a lifecycle event recorder.
func WithRecorder(rec Recorder) Option { return func(opt *Options) { opt.Recorder = rec } }

// WithLogger sets the debug logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option { return func(opt *Options) { opt.Logger = l } }

type nopRecorder struct{}

func (nopRecorder) ResourceCreated(string, string) {}
func (nopRecorder) ResourceReused(string, string)  {}
func (nopRecorder) ResourceRemoved(string, string) {}
