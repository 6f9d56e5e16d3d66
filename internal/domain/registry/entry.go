package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/domain/live"
)

// DepthFunc reports the current undo bound. It is consulted on every push so
// a changed setting applies from the next swap on.
type DepthFunc func() int

// FixedDepth returns a DepthFunc that always reports n.
func FixedDepth(n int) DepthFunc {
	return func() int { return n }
}

// slot boxes the current implementation for atomic replacement.
type slot struct {
	impl live.Implementation
}

// Entry is the registry's record for one name.
type Entry struct {
	mu sync.Mutex

	name       string
	sourcePath string
	current    atomic.Pointer[slot]
	undo       []live.Implementation
	redo       []live.Implementation
	log        *VersionLog
	currentKey string
	handle     *live.Handle
}

// NewEntry creates an entry holding impl with empty history.
func NewEntry(name string, impl live.Implementation) *Entry {
	e := &Entry{name: name}
	e.current.Store(&slot{impl: impl})
	e.handle = live.NewHandle(name, e.Current)
	return e
}

// Lock serializes swaps on the entry.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the swap lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Name returns the entry name.
func (e *Entry) Name() string { return e.name }

// Handle returns the entry's handle; it is the same value for the entry's
// whole lifetime.
func (e *Entry) Handle() *live.Handle { return e.handle }

// Current returns the active implementation. Safe without the lock.
func (e *Entry) Current() live.Implementation {
	return e.current.Load().impl
}

// Kind returns the shape class of the current implementation.
func (e *Entry) Kind() live.Kind { return live.Classify(e.Current()) }

// SourcePath returns the backing file, or "" for in-memory entries.
func (e *Entry) SourcePath() string { return e.sourcePath }

// FileBacked reports whether the entry has a backing file.
func (e *Entry) FileBacked() bool { return e.sourcePath != "" }

// SetSourcePath rebinds the backing file.
func (e *Entry) SetSourcePath(path string) { e.sourcePath = path }

// Log returns the version log, or nil when the entry is not versioned.
func (e *Entry) Log() *VersionLog { return e.log }

// SetLog attaches a version log.
func (e *Entry) SetLog(l *VersionLog) { e.log = l }

// CurrentKey returns the artifact key of the current implementation, if any.
func (e *Entry) CurrentKey() string { return e.currentKey }

// SetCurrentKey records the artifact key of the current implementation.
func (e *Entry) SetCurrentKey(key string) { e.currentKey = key }

// UndoDepth returns the number of values available to Rollback.
func (e *Entry) UndoDepth() int { return len(e.undo) }

// RedoDepth returns the number of values available to RollForward.
func (e *Entry) RedoDepth() int { return len(e.redo) }

// Undo returns a copy of the undo stack, most recent last.
func (e *Entry) Undo() []live.Implementation {
	return append([]live.Implementation(nil), e.undo...)
}

// Redo returns a copy of the redo stack, most recent last.
func (e *Entry) Redo() []live.Implementation {
	return append([]live.Implementation(nil), e.redo...)
}

func (e *Entry) swap(impl live.Implementation) live.Implementation {
	return e.current.Swap(&slot{impl: impl}).impl
}

// pushUndo appends v and evicts the oldest values beyond depth.
func (e *Entry) pushUndo(v live.Implementation, depth int) {
	if depth <= 0 {
		clear(e.undo)
		e.undo = e.undo[:0]
		return
	}
	e.undo = append(e.undo, v)
	if over := len(e.undo) - depth; over > 0 {
		clear(e.undo[:over])
		e.undo = append(e.undo[:0], e.undo[over:]...)
	}
}

// Install makes candidate current. The previous value goes onto undo and redo
// is cleared.
func (e *Entry) Install(candidate live.Implementation, depth int) {
	prev := e.swap(candidate)
	e.pushUndo(prev, depth)
	clear(e.redo)
	e.redo = e.redo[:0]
}

// Rollback steps back through the undo stack. On error nothing changes.
func (e *Entry) Rollback(steps int) error {
	if steps < 1 {
		return ErrInvalidSteps
	}
	if steps > len(e.undo) {
		return ErrNoHistoryAvailable
	}
	// One swap straight to the target; readers never see the values in between.
	target := len(e.undo) - steps
	e.redo = append(e.redo, e.swap(e.undo[target]))
	for i := len(e.undo) - 1; i > target; i-- {
		e.redo = append(e.redo, e.undo[i])
	}
	clear(e.undo[target:])
	e.undo = e.undo[:target]
	return nil
}

// RollForward reinstates the most recently rolled-back value.
func (e *Entry) RollForward(depth int) error {
	if len(e.redo) == 0 {
		return ErrNoForwardAvailable
	}
	last := len(e.redo) - 1
	next := e.redo[last]
	e.redo[last] = nil
	e.redo = e.redo[:last]
	e.pushUndo(e.swap(next), depth)
	return nil
}

// RollbackTarget resolves the version a persisted rollback of steps would
// restore, and its index in the log. When the current value was installed
// without an archived source the newest logged version is one step back.
func (e *Entry) RollbackTarget(steps int) (Version, int, error) {
	if steps < 1 {
		return Version{}, 0, ErrInvalidSteps
	}
	if e.log.Len() == 0 {
		return Version{}, 0, ErrNoVersionLog
	}
	idx := e.log.Len() - steps
	if e.currentKey != "" {
		idx--
	}
	v, ok := e.log.At(idx)
	if !ok {
		return Version{}, 0, ErrNoHistoryAvailable
	}
	return v, idx, nil
}

// RestoreVersion installs impl as the value of the version at idx. Newer
// versions are dropped from the log and redo is discarded; undo is kept.
func (e *Entry) RestoreVersion(impl live.Implementation, idx int) {
	v, _ := e.log.At(idx)
	e.swap(impl)
	e.log.Truncate(idx + 1)
	e.currentKey = v.Key
	clear(e.redo)
	e.redo = e.redo[:0]
}

// NextVersion returns the version record for an artifact archived at now.
// Keys are strictly increasing per entry: a timestamp not after the newest
// logged version is bumped one millisecond past it.
func (e *Entry) NextVersion(now time.Time) Version {
	t := time.UnixMilli(now.UnixMilli())
	if last, ok := e.log.Last(); ok && !t.After(last.CreatedAt) {
		t = last.CreatedAt.Add(time.Millisecond)
	}
	return Version{Key: artifact.VersionKey(e.name, t), CreatedAt: t}
}

// RecordVersion appends v to the log, creating the log if needed, and marks
// it current.
func (e *Entry) RecordVersion(v Version) {
	if e.log == nil {
		e.log = NewVersionLog()
	}
	e.log.Append(v)
	e.currentKey = v.Key
}

// Snapshot is a read-only view of an entry's history.
type Snapshot struct {
	Name       string
	SourcePath string
	Kind       live.Kind
	CurrentKey string
	Versions   []Version
	UndoDepth  int
	RedoDepth  int
}

// Snapshot captures the entry's history metadata. Callers hold the lock.
func (e *Entry) Snapshot() Snapshot {
	return Snapshot{
		Name:       e.name,
		SourcePath: e.sourcePath,
		Kind:       e.Kind(),
		CurrentKey: e.currentKey,
		Versions:   e.log.Versions(),
		UndoDepth:  len(e.undo),
		RedoDepth:  len(e.redo),
	}
}
