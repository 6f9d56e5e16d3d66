package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// versioned reports whether swaps on e are archived.
func (s *Service) versioned(e *registry.Entry) bool {
	return s.store != nil && e.FileBacked()
}

// archive writes source under v.Key and, with resume, the log that will hold
// v. The entry is not touched; callers record v only after archive succeeds.
func (s *Service) archive(ctx context.Context, span trace.Span, e *registry.Entry, v registry.Version, source []byte) error {
	if err := s.store.Put(ctx, v.Key, source); err != nil {
		return err
	}
	span.AddEvent(tracing.EventArtifactArchived, trace.WithAttributes(
		attribute.String(tracing.AttrVersionKey, v.Key),
		attribute.Int("artifact.bytes", len(source)),
	))
	log.Debug(log.CatStore, "archived version", "name", e.Name(), "key", v.Key, "bytes", len(source))

	if !s.resume {
		return nil
	}
	next := e.Log().Clone()
	next.Append(v)
	return s.persistLog(ctx, e.Name(), next)
}

// persistLog stores l under the entry's log key.
func (s *Service) persistLog(ctx context.Context, name string, l *registry.VersionLog) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode version log: %w", err)
	}
	return s.store.Put(ctx, artifact.LogKey(name), data)
}

// restoreLog reads a persisted log for name. A missing log is not an error.
func (s *Service) restoreLog(ctx context.Context, name string) (*registry.VersionLog, error) {
	return StoredLog(ctx, s.store, name)
}

// StoredLog reads the version log persisted for name, or nil when there is
// none.
func StoredLog(ctx context.Context, store artifact.Store, name string) (*registry.VersionLog, error) {
	data, found, err := store.Get(ctx, artifact.LogKey(name))
	if err != nil || !found {
		return nil, err
	}
	l := registry.NewVersionLog()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, artifact.IOError("decode", artifact.LogKey(name), err)
	}
	return l, nil
}

// attachHistory gives a new file-backed entry its version log: the resumed
// log when one exists, plus a fresh version unless the newest archived
// artifact already holds source.
func (s *Service) attachHistory(ctx context.Context, span trace.Span, e *registry.Entry, source []byte) error {
	if s.store == nil {
		return nil
	}
	if s.resume {
		restored, err := s.restoreLog(ctx, e.Name())
		if err != nil {
			return err
		}
		if restored.Len() > 0 {
			e.SetLog(restored)
			last, _ := restored.Last()
			payload, found, err := s.store.Get(ctx, last.Key)
			if err != nil {
				return err
			}
			if found && bytes.Equal(payload, source) {
				e.SetCurrentKey(last.Key)
				log.Info(log.CatRegistry, "resumed history", "name", e.Name(), "versions", restored.Len())
				return nil
			}
		}
	}
	v := e.NextVersion(s.now())
	if err := s.archive(ctx, span, e, v, source); err != nil {
		return err
	}
	e.RecordVersion(v)
	return nil
}
