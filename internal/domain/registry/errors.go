package registry

import (
	"errors"
	"fmt"
)

// Registry errors
var (
	ErrNotRegistered           = errors.New("name not registered")
	ErrInvalidName             = errors.New("name must not be empty")
	ErrNameConflict            = errors.New("name already registered")
	ErrNoBackingFile           = errors.New("entry has no backing file")
	ErrIncompatibleReplacement = errors.New("replacement has a different shape")
	ErrNoHistoryAvailable      = errors.New("no history available")
	ErrNoForwardAvailable      = errors.New("nothing to roll forward to")
	ErrArtifactMissing         = errors.New("version log references a missing artifact")
	ErrLoadFailure             = errors.New("module load failed")
	ErrInvalidSteps            = errors.New("steps must be at least 1")
	ErrNoVersionLog            = errors.New("entry has no version log")
	ErrFormatMismatch          = errors.New("source format differs from the backing file")
)

// OpError records the registry operation and entry name a failure belongs to.
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
