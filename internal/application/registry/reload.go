package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hotswap/internal/domain/live"
	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/infrastructure/loader"
	"github.com/zjrosen/hotswap/internal/pubsub"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// ReloadOption configures ReloadInstance.
type ReloadOption func(*reloadOptions)

type reloadOptions struct {
	source []byte
}

// WithSource supplies the source text of the new instance. For a file-backed
// entry it is written to the backing file and archived as a new version; the
// text must load from that file, so it has to be in the file's format.
func WithSource(source []byte) ReloadOption {
	return func(o *reloadOptions) { o.source = source }
}

// Reload loads the entry's backing file again and installs the result.
func (s *Service) Reload(ctx context.Context, name string) error {
	return s.run(ctx, OpReload, name, true, func(ctx context.Context, span trace.Span) error {
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if !e.FileBacked() {
			return registry.ErrNoBackingFile
		}
		unit, err := s.loadCompatible(ctx, span, e, e.SourcePath())
		if err != nil {
			return err
		}
		if err := s.installUnit(ctx, span, e, unit); err != nil {
			return err
		}
		s.publish(pubsub.ReloadedEvent, OpReload, e)
		return nil
	})
}

// ReloadFromFile rebinds the entry to path and installs what it loads.
// A file-backed entry keeps its manifest format. On failure the previous path
// stays bound.
func (s *Service) ReloadFromFile(ctx context.Context, name, path string) error {
	return s.run(ctx, OpReloadFromFile, name, true, func(ctx context.Context, span trace.Span) error {
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if e.FileBacked() && loader.Format(path) != loader.Format(e.SourcePath()) {
			return registry.ErrFormatMismatch
		}
		unit, err := s.loadCompatible(ctx, span, e, path)
		if err != nil {
			return err
		}
		previous := e.SourcePath()
		e.SetSourcePath(unit.Path)
		if err := s.installUnit(ctx, span, e, unit); err != nil {
			e.SetSourcePath(previous)
			return err
		}
		s.publish(pubsub.ReloadedEvent, OpReloadFromFile, e)
		return nil
	})
}

// ReloadInstance installs impl directly. No shape check is made.
func (s *Service) ReloadInstance(ctx context.Context, name string, impl live.Implementation, opts ...ReloadOption) error {
	var o reloadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return s.run(ctx, OpReloadInstance, name, true, func(ctx context.Context, span trace.Span) error {
		if live.Classify(impl) == live.KindUnknown {
			return live.ErrUnsupportedValue
		}
		e, err := s.lookup(name)
		if err != nil {
			return err
		}
		e.Lock()
		defer e.Unlock()

		if o.source == nil || !e.FileBacked() {
			e.Install(impl, s.maxDepth())
			// The new value has no archived source.
			e.SetCurrentKey("")
			span.AddEvent(tracing.EventInstalled)
			s.publish(pubsub.ReloadedEvent, OpReloadInstance, e)
			return nil
		}

		restore, err := writeFileAtomic(e.SourcePath(), o.source)
		if err != nil {
			return err
		}
		if _, err := s.loader.Load(ctx, e.SourcePath()); err != nil {
			return joinRestore(err, restore())
		}
		var v registry.Version
		if s.versioned(e) {
			v = e.NextVersion(s.now())
			if err := s.archive(ctx, span, e, v, o.source); err != nil {
				return joinRestore(err, restore())
			}
		}
		e.Install(impl, s.maxDepth())
		if v.Key != "" {
			e.RecordVersion(v)
		} else {
			e.SetCurrentKey("")
		}
		span.AddEvent(tracing.EventInstalled)
		s.publish(pubsub.ReloadedEvent, OpReloadInstance, e)
		return nil
	})
}

// loadCompatible loads path and rejects a candidate whose shape differs from
// the entry's current value.
func (s *Service) loadCompatible(ctx context.Context, span trace.Span, e *registry.Entry, path string) (*loader.Unit, error) {
	unit, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventModuleLoaded, trace.WithAttributes(
		attribute.String(tracing.AttrSourcePath, unit.Path),
		attribute.String(tracing.AttrEntryKind, unit.Impl.Kind().String()),
	))
	if !live.Compatible(e.Current(), unit.Impl) {
		return nil, registry.ErrIncompatibleReplacement
	}
	return unit, nil
}

// installUnit archives unit when the entry is versioned, then installs it.
func (s *Service) installUnit(ctx context.Context, span trace.Span, e *registry.Entry, unit *loader.Unit) error {
	if !s.versioned(e) {
		e.Install(unit.Impl, s.maxDepth())
		e.SetCurrentKey("")
		span.AddEvent(tracing.EventInstalled)
		return nil
	}
	v := e.NextVersion(s.now())
	if err := s.archive(ctx, span, e, v, unit.Source); err != nil {
		return err
	}
	e.Install(unit.Impl, s.maxDepth())
	e.RecordVersion(v)
	span.AddEvent(tracing.EventInstalled, trace.WithAttributes(
		attribute.String(tracing.AttrVersionKey, v.Key),
		attribute.Int(tracing.AttrUndoDepth, e.UndoDepth()),
	))
	return nil
}
