// Package registry implements the application layer of the live-object
// registry.
//
// Service is the facade collaborators (the shell, the watcher, the serve
// command) drive. It bridges the domain entries to infrastructure:
//   - a loader.Loader builds candidate implementations from module files
//   - an artifact.Store archives every file-backed version and, with resume
//     enabled, each entry's version log
//   - tracing, metrics, structured logging, and pubsub events wrap every
//     operation
//
// Every mutating operation is all-or-nothing: loading, the shape check, and
// all Store writes happen before the entry changes. An operation that fails
// leaves current, undo, redo, and the version log exactly as they were.
//
// # Import Aliasing
//
// This package has the same name as the domain registry package. When
// importing both, alias them:
//
//	import (
//	    domainreg "github.com/zjrosen/hotswap/internal/domain/registry"
//	    appreg "github.com/zjrosen/hotswap/internal/application/registry"
//	)
package registry
