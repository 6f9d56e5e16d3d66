package live

import "fmt"

// Resolver answers "what is current right now" for a handle.
type Resolver func() Implementation

// Handle is the stable reference consumers hold for a registry entry.
// It never stores the implementation itself; every operation resolves the
// entry's current value at the moment of access, so a handle captured before
// a swap observes the new implementation afterwards.
type Handle struct {
	name    string
	resolve Resolver
}

// NewHandle creates a handle that forwards to whatever resolve returns.
func NewHandle(name string, resolve Resolver) *Handle {
	return &Handle{name: name, resolve: resolve}
}

// Name returns the registry name the handle was issued for.
func (h *Handle) Name() string { return h.name }

// Current returns the implementation the handle forwards to right now.
func (h *Handle) Current() Implementation { return h.resolve() }

// Kind returns the shape class of the current implementation.
func (h *Handle) Kind() Kind { return Classify(h.resolve()) }

// Get reads a property. Method names yield a Func bound to the object that
// was current when Get ran.
func (h *Handle) Get(field string) (any, error) {
	target, err := h.record()
	if err != nil {
		return nil, err
	}
	v, ok := target.Get(field)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", h.name, field, ErrNoSuchField)
	}
	return v, nil
}

// Set writes a property on the current implementation.
func (h *Handle) Set(field string, value any) error {
	target, err := h.record()
	if err != nil {
		return err
	}
	target.Set(field, value)
	return nil
}

// Call invokes a function-like implementation with args forwarded unchanged.
func (h *Handle) Call(args ...any) (any, error) {
	fn, ok := h.resolve().(Func)
	if !ok {
		return nil, fmt.Errorf("%s is a %s: %w", h.name, h.Kind(), ErrNotCallable)
	}
	return fn(args...)
}

// Invoke calls a method with the underlying object as receiver, never the
// handle, so self references inside the method see the real implementation.
func (h *Handle) Invoke(method string, args ...any) (any, error) {
	target, err := h.record()
	if err != nil {
		return nil, err
	}
	v, err := target.Invoke(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.name, err)
	}
	return v, nil
}

// New constructs an instance from a class-like implementation.
func (h *Handle) New(args ...any) (*Object, error) {
	c, ok := h.resolve().(*Class)
	if !ok {
		return nil, fmt.Errorf("%s is a %s: %w", h.name, h.Kind(), ErrNotConstructible)
	}
	return c.New(args...)
}

// record resolves the object that property access applies to: the record
// itself, or the static attributes of a class.
func (h *Handle) record() (*Object, error) {
	switch v := h.resolve().(type) {
	case *Object:
		return v, nil
	case *Class:
		return v.Static(), nil
	default:
		return nil, fmt.Errorf("%s is a %s: %w", h.name, h.Kind(), ErrNotRecord)
	}
}
