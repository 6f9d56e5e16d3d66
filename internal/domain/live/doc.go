// Package live defines the values a registry entry can hold and the Handle
// consumers use to reach them.
//
// Like the other domain packages it is pure Go with standard library imports
// only; loading, storage, and orchestration live elsewhere.
//
// # Shapes
//
// Every implementation is one of three shape classes:
//   - Func: function-like, invoked with Handle.Call
//   - *Object: record-like, fields read and written with Get/Set, methods run with Invoke
//   - *Class: class-like, instances built with Handle.New; Get/Set reach class-level attributes
//
// Classify computes the shape once and Compatible compares two shapes. A
// reload whose candidate changes shape is rejected by the registry.
//
// # Handles
//
// A Handle holds a Resolver, never a copy of the implementation:
//
//	h := live.NewHandle("greeter", entry.Current)
//	v, err := h.Invoke("greet", "ada") // runs against whatever is current now
package live
