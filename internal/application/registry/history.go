package registry

import (
	"context"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// History returns the version log and undo/redo depths of name.
func (s *Service) History(name string) (registry.Snapshot, error) {
	e, err := s.lookup(name)
	if err != nil {
		return registry.Snapshot{}, &registry.OpError{Op: OpHistory, Name: name, Err: err}
	}
	e.Lock()
	defer e.Unlock()
	return e.Snapshot(), nil
}

// Diff returns a unified-style patch from the version steps back to the
// current version. Both must be archived in the store.
func (s *Service) Diff(ctx context.Context, name string, steps int) (string, error) {
	var patch string
	err := s.run(ctx, OpDiff, name, false, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int(tracing.AttrSteps, steps))
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if s.store == nil || e.CurrentKey() == "" {
			return registry.ErrNoVersionLog
		}
		target, _, err := e.RollbackTarget(steps)
		if err != nil {
			return err
		}
		from, err := s.fetch(ctx, target.Key)
		if err != nil {
			return err
		}
		to, err := s.fetch(ctx, e.CurrentKey())
		if err != nil {
			return err
		}
		patch = diffText(string(from), string(to))
		return nil
	})
	return patch, err
}

func (s *Service) fetch(ctx context.Context, key string) ([]byte, error) {
	payload, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", key, registry.ErrArtifactMissing)
	}
	return payload, nil
}

// diffText renders the line-level patch between two sources.
func diffText(from, to string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(from, diffs))
}

// Versions lists the archived versions of name straight from the store,
// oldest first. It works for entries that are not registered in this
// process.
func Versions(ctx context.Context, store artifact.Store, name string) ([]artifact.Info, error) {
	infos, err := store.List(ctx, artifact.VersionPrefix(name))
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if n, _, ok := artifact.ParseVersionKey(info.Key); ok && n == name {
			out = append(out, info)
		}
	}
	return out, nil
}
