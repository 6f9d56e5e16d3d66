// Package artifact defines the contract of the versioned artifact store: a
// compressed key to blob persistence layer with interchangeable backends.
//
// The package holds only the interface, the key conventions, and the error
// taxonomy. Backends live under internal/infrastructure and are selected once
// at construction time by the storage package.
//
// Keys follow "<name>@<unix-millis>" for archived versions and
// "<name>@versions" for an entry's persisted version log. The store itself
// treats keys as opaque.
package artifact
