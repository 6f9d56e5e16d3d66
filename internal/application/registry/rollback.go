package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/pubsub"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// Rollback moves the entry steps versions back.
//
// A file-backed entry with a populated version log and a store rolls back
// through the log: the target artifact is written to the backing file and
// loaded from there, and newer versions are dropped. Every other entry pops
// its in-memory undo stack. Either way a failure changes nothing.
func (s *Service) Rollback(ctx context.Context, name string, steps int) error {
	return s.run(ctx, OpRollback, name, true, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int(tracing.AttrSteps, steps))
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if s.versioned(e) && e.Log().Len() > 0 {
			err = s.rollbackPersisted(ctx, span, e, steps)
		} else {
			err = e.Rollback(steps)
		}
		if err != nil {
			return err
		}
		span.SetAttributes(
			attribute.Int(tracing.AttrUndoDepth, e.UndoDepth()),
			attribute.Int(tracing.AttrRedoDepth, e.RedoDepth()),
		)
		s.publish(pubsub.RolledBackEvent, OpRollback, e)
		return nil
	})
}

func (s *Service) rollbackPersisted(ctx context.Context, span trace.Span, e *registry.Entry, steps int) error {
	target, idx, err := e.RollbackTarget(steps)
	if err != nil {
		return err
	}
	payload, found, err := s.store.Get(ctx, target.Key)
	if err != nil {
		return err
	}
	if !found {
		log.Error(log.CatRegistry, "version log references missing artifact", "name", e.Name(), "key", target.Key)
		return registry.ErrArtifactMissing
	}

	restore, err := writeFileAtomic(e.SourcePath(), payload)
	if err != nil {
		return err
	}
	span.AddEvent(tracing.EventFileRestored, trace.WithAttributes(attribute.String(tracing.AttrVersionKey, target.Key)))

	unit, err := s.loader.Load(ctx, e.SourcePath())
	if err != nil {
		return joinRestore(err, restore())
	}
	if s.resume {
		kept := e.Log().Clone()
		kept.Truncate(idx + 1)
		if err := s.persistLog(ctx, e.Name(), kept); err != nil {
			return joinRestore(err, restore())
		}
	}
	e.RestoreVersion(unit.Impl, idx)
	span.AddEvent(tracing.EventInstalled, trace.WithAttributes(attribute.String(tracing.AttrVersionKey, target.Key)))
	return nil
}

// RollForward reinstates the most recently rolled-back in-memory value.
func (s *Service) RollForward(ctx context.Context, name string) error {
	return s.run(ctx, OpRollForward, name, true, func(ctx context.Context, span trace.Span) error {
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if err := e.RollForward(s.maxDepth()); err != nil {
			return err
		}
		s.publish(pubsub.RolledForwardEvent, OpRollForward, e)
		return nil
	})
}
