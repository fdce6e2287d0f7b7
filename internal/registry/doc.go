// Package registry keeps at most one live instance of a resource per
// identity key and arbitrates creation, reactivation and teardown of those
// instances under concurrent access.
//
// Two sub-registries share one lock:
//   - the unique registry holds at most one live instance per Go type;
//   - the tagged registry holds at most one live instance per (type, tag).
//
// A resource is created lazily by the first ShowOrCreate call for its key,
// reactivated (shown or activated, then focused) by later calls, and removed
// when it reports disposal through OnDisposed.
//
// Typical usage:
//
//	reg := registry.New(registry.WithLogger(logger))
//	sess, err := registry.ShowOrCreateTagged(reg, "billing", nil, newSession)
//	...
//	_ = registry.CloseAndRemove[*Session](reg, "billing")
package registry
