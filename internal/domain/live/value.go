package live

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// Value errors
var (
	ErrNotCallable      = errors.New("implementation is not callable")
	ErrNotConstructible = errors.New("implementation is not constructible")
	ErrNotRecord        = errors.New("implementation has no fields")
	ErrNoSuchField      = errors.New("no such field")
	ErrNoSuchMethod     = errors.New("no such method")
	ErrTooManyArguments = errors.New("too many constructor arguments")
	ErrUnsupportedValue = errors.New("value cannot be used as an implementation")
)

// Kind is the shape class of an implementation. Two implementations are
// swap-compatible when their kinds are equal.
type Kind int

const (
	KindUnknown Kind = iota
	KindFunction
	KindRecord
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindRecord:
		return "record"
	case KindClass:
		return "class"
	default:
		return "unknown"
	}
}

// ParseKind maps a manifest kind string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "function", "func":
		return KindFunction, nil
	case "record", "object", "":
		return KindRecord, nil
	case "class":
		return KindClass, nil
	default:
		return KindUnknown, fmt.Errorf("unknown kind %q", s)
	}
}

// Implementation is anything a registry entry can hold as its current value.
type Implementation interface {
	Kind() Kind
}

// Classify returns the shape class of v. A nil implementation, including a
// nil *Object, *Class or Func, is KindUnknown.
func Classify(v Implementation) Kind {
	if v == nil {
		return KindUnknown
	}
	return v.Kind()
}

// Compatible reports whether candidate may replace current.
func Compatible(current, candidate Implementation) bool {
	k := Classify(current)
	return k != KindUnknown && k == Classify(candidate)
}

// Func is a function-like implementation.
type Func func(args ...any) (any, error)

// Kind implements Implementation.
func (f Func) Kind() Kind {
	if f == nil {
		return KindUnknown
	}
	return KindFunction
}

// Method is a function that runs with an Object as its receiver.
type Method func(self *Object, args ...any) (any, error)

// Object is a record-like implementation: named fields plus methods.
// Objects constructed from a Class also see the class's methods.
type Object struct {
	mu      sync.RWMutex
	class   *Class
	fields  map[string]any
	methods map[string]Method
}

// NewObject creates a record with copies of the given fields and methods.
func NewObject(fields map[string]any, methods map[string]Method) *Object {
	o := &Object{
		fields:  make(map[string]any, len(fields)),
		methods: make(map[string]Method, len(methods)),
	}
	maps.Copy(o.fields, fields)
	maps.Copy(o.methods, methods)
	return o
}

// Kind implements Implementation.
func (o *Object) Kind() Kind {
	if o == nil {
		return KindUnknown
	}
	return KindRecord
}

// Class returns the class the object was constructed from, or nil.
func (o *Object) Class() *Class { return o.class }

// Field returns the raw field value without method lookup.
func (o *Object) Field(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[name]
	return v, ok
}

// Fields returns a snapshot of the object's fields.
func (o *Object) Fields() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.fields))
	maps.Copy(out, o.fields)
	return out
}

// Set assigns a field.
func (o *Object) Set(name string, value any) {
	o.mu.Lock()
	o.fields[name] = value
	o.mu.Unlock()
}

// Method looks up a method on the object, then on its class.
func (o *Object) Method(name string) (Method, bool) {
	o.mu.RLock()
	m, ok := o.methods[name]
	o.mu.RUnlock()
	if ok {
		return m, true
	}
	if o.class != nil {
		m, ok = o.class.methods[name]
	}
	return m, ok
}

// MethodNames returns the sorted names of all methods visible on the object.
func (o *Object) MethodNames() []string {
	seen := make(map[string]struct{})
	o.mu.RLock()
	for name := range o.methods {
		seen[name] = struct{}{}
	}
	o.mu.RUnlock()
	if o.class != nil {
		for name := range o.class.methods {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get reads a field, falling back to a method bound to this object.
func (o *Object) Get(name string) (any, bool) {
	if v, ok := o.Field(name); ok {
		return v, true
	}
	if m, ok := o.Method(name); ok {
		return o.bind(m), true
	}
	return nil, false
}

// Invoke runs the named method with o as the receiver. A field holding a Func
// is callable the same way.
func (o *Object) Invoke(name string, args ...any) (any, error) {
	if m, ok := o.Method(name); ok {
		return m(o, args...)
	}
	if v, ok := o.Field(name); ok {
		if fn, ok := v.(Func); ok {
			return fn(args...)
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNoSuchMethod)
}

func (o *Object) bind(m Method) Func {
	return func(args ...any) (any, error) {
		return m(o, args...)
	}
}

// Class is a constructible implementation. Params name the fields that
// constructor arguments are assigned to, in order.
type Class struct {
	Name    string
	Params  []string
	fields  map[string]any
	methods map[string]Method
	static  *Object
}

// NewClass creates a class with instance field defaults and methods.
func NewClass(name string, params []string, fields map[string]any, methods map[string]Method) *Class {
	c := &Class{
		Name:    name,
		Params:  append([]string(nil), params...),
		fields:  make(map[string]any, len(fields)),
		methods: make(map[string]Method, len(methods)),
		static:  NewObject(nil, nil),
	}
	maps.Copy(c.fields, fields)
	maps.Copy(c.methods, methods)
	return c
}

// Kind implements Implementation.
func (c *Class) Kind() Kind {
	if c == nil {
		return KindUnknown
	}
	return KindClass
}

// Static returns the class-level attribute record.
func (c *Class) Static() *Object { return c.static }

// New constructs an instance. Missing arguments leave the field default.
func (c *Class) New(args ...any) (*Object, error) {
	if len(args) > len(c.Params) {
		return nil, fmt.Errorf("%s: got %d, want at most %d: %w", c.Name, len(args), len(c.Params), ErrTooManyArguments)
	}
	o := NewObject(c.fields, nil)
	o.class = c
	for i, arg := range args {
		o.fields[c.Params[i]] = arg
	}
	return o, nil
}

// Wrap converts common Go values into an Implementation.
func Wrap(v any) (Implementation, error) {
	switch val := v.(type) {
	case Implementation:
		return val, nil
	case func(args ...any) (any, error):
		return Func(val), nil
	case func(args ...any) any:
		return Func(func(args ...any) (any, error) { return val(args...), nil }), nil
	case map[string]any:
		return NewObject(val, nil), nil
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrUnsupportedValue)
	}
}
