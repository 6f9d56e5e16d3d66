// Package registry implements the domain layer of the live-object registry.
//
// It contains only pure Go with standard library imports. Loading modules,
// archiving artifacts, and publishing events belong to the application layer;
// this package owns the state those operations mutate and the rules for
// mutating it.
//
// # Entry
//
// An Entry is the record for one name: the current implementation, a bounded
// undo stack, a redo stack, and for file-backed entries a VersionLog of
// artifact keys. Its Handle never changes.
//
// Mutation rules:
//   - Install pushes the previous current onto undo (evicting the oldest past
//     the depth bound) and clears redo.
//   - Rollback moves current to redo and pops undo; RollForward is the reverse.
//   - RestoreVersion installs a value recovered from the VersionLog, truncating
//     the log after it and discarding redo.
//
// Callers hold the entry lock (Lock/Unlock) across an operation so that I/O
// and the mutation that follows it are not interleaved with another swap of
// the same entry. Readers never take the lock: the current value sits behind
// an atomic pointer.
package registry
