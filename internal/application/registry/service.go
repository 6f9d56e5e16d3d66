package registry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/domain/live"
	"github.com/zjrosen/hotswap/internal/domain/registry"
	"github.com/zjrosen/hotswap/internal/infrastructure/loader"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/metrics"
	"github.com/zjrosen/hotswap/internal/pubsub"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// Operation names used for spans, metrics, logs, and OpError.Op.
const (
	OpRegister         = "register"
	OpRegisterFromFile = "register_from_file"
	OpGet              = "get"
	OpReload           = "reload"
	OpReloadInstance   = "reload_instance"
	OpReloadFromFile   = "reload_from_file"
	OpRollback         = "rollback"
	OpRollForward      = "roll_forward"
	OpHistory          = "history"
	OpRemove           = "remove"
	OpDiff             = "diff"
)

// Event is the payload published after a successful mutation.
type Event struct {
	Name       string
	Op         string
	Kind       live.Kind
	VersionKey string
}

// Service owns the registry and orchestrates swaps.
type Service struct {
	entries *registry.Registry
	loader  loader.Loader
	store   artifact.Store
	depth   registry.DepthFunc
	resume  bool
	now     func() time.Time
	tracer  trace.Tracer
	metrics *metrics.Metrics
	events  *pubsub.Broker[Event]
}

// Option configures a Service.
type Option func(*Service)

// WithStore archives file-backed versions in s. Without a store, entries
// keep only in-memory undo/redo history.
func WithStore(s artifact.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithDepth sets the undo bound source. The default is a fixed depth of 1.
func WithDepth(fn registry.DepthFunc) Option {
	return func(svc *Service) {
		if fn != nil {
			svc.depth = fn
		}
	}
}

// WithResume persists each entry's version log to the store and restores it
// when the entry is registered from file again.
func WithResume(enabled bool) Option {
	return func(svc *Service) { svc.resume = enabled }
}

// WithClock overrides the time source used for version keys.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithTracer records a span per operation.
func WithTracer(t trace.Tracer) Option {
	return func(svc *Service) { svc.tracer = t }
}

// WithMetrics records operation counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithEvents publishes an Event after every successful mutation.
func WithEvents(b *pubsub.Broker[Event]) Option {
	return func(svc *Service) { svc.events = b }
}

// NewService creates a service that loads modules with l.
func NewService(l loader.Loader, opts ...Option) *Service {
	s := &Service{
		entries: registry.NewRegistry(),
		loader:  l,
		depth:   registry.FixedDepth(1),
		now:     time.Now,
		tracer:  noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the artifact store, or nil.
func (s *Service) Store() artifact.Store { return s.store }

// maxDepth reads the undo bound; negative settings count as zero.
func (s *Service) maxDepth() int {
	return max(s.depth(), 0)
}

// run wraps one operation with a span, metrics, logging, and OpError.
func (s *Service) run(ctx context.Context, op, name string, swaps bool, fn func(ctx context.Context, span trace.Span) error) error {
	start := time.Now()
	ctx, span := tracing.StartOp(ctx, s.tracer, op, name)
	err := fn(ctx, span)
	if err != nil {
		var opErr *registry.OpError
		if !errors.As(err, &opErr) {
			err = &registry.OpError{Op: op, Name: name, Err: err}
		}
		log.Warn(log.CatRegistry, "operation failed", "op", op, "name", name, "error", err)
	} else if swaps {
		log.Info(log.CatRegistry, "operation complete", "op", op, "name", name)
	}
	tracing.Finish(span, err)
	s.metrics.Observe(op, start, swaps, err)
	return err
}

func (s *Service) publish(eventType pubsub.EventType, op string, e *registry.Entry) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventType, Event{
		Name:       e.Name(),
		Op:         op,
		Kind:       e.Kind(),
		VersionKey: e.CurrentKey(),
	})
}

func (s *Service) lookup(name string) (*registry.Entry, error) {
	return s.entries.Get(name)
}

// Register adds an in-memory entry. A name that is already registered is
// rejected with ErrNameConflict; the existing entry is untouched.
func (s *Service) Register(ctx context.Context, name string, impl live.Implementation) (*live.Handle, error) {
	var h *live.Handle
	err := s.run(ctx, OpRegister, name, true, func(ctx context.Context, span trace.Span) error {
		if err := validateName(name); err != nil {
			return err
		}
		if live.Classify(impl) == live.KindUnknown {
			return live.ErrUnsupportedValue
		}
		e := registry.NewEntry(name, impl)
		if err := s.entries.Add(e); err != nil {
			return err
		}
		h = e.Handle()
		s.metrics.SetEntries(s.entries.Len())
		s.publish(pubsub.RegisteredEvent, OpRegister, e)
		return nil
	})
	return h, err
}

// RegisterFromFile loads path and registers the result as a file-backed
// entry. With a store the source is archived as the first version; with
// resume a previously persisted version log is restored first.
func (s *Service) RegisterFromFile(ctx context.Context, name, path string) (*live.Handle, error) {
	var h *live.Handle
	err := s.run(ctx, OpRegisterFromFile, name, true, func(ctx context.Context, span trace.Span) error {
		if err := validateName(name); err != nil {
			return err
		}
		if _, err := s.lookup(name); err == nil {
			return registry.ErrNameConflict
		}
		unit, err := s.loader.Load(ctx, path)
		if err != nil {
			return err
		}
		span.AddEvent(tracing.EventModuleLoaded)

		e := registry.NewEntry(name, unit.Impl)
		e.SetSourcePath(unit.Path)
		if err := s.attachHistory(ctx, span, e, unit.Source); err != nil {
			return err
		}
		if err := s.entries.Add(e); err != nil {
			return err
		}
		h = e.Handle()
		s.metrics.SetEntries(s.entries.Len())
		s.publish(pubsub.RegisteredEvent, OpRegisterFromFile, e)
		return nil
	})
	return h, err
}

// Get returns the handle for name. The same handle is returned on every call
// for the lifetime of the entry.
func (s *Service) Get(name string) (*live.Handle, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, &registry.OpError{Op: OpGet, Name: name, Err: err}
	}
	return e.Handle(), nil
}

// List returns every registered name, sorted.
func (s *Service) List() []string {
	return s.entries.Names()
}

// Remove destroys the entry for name. Archived artifacts stay in the store,
// and handles already handed out keep forwarding to the last current value.
func (s *Service) Remove(ctx context.Context, name string) error {
	return s.run(ctx, OpRemove, name, false, func(ctx context.Context, span trace.Span) error {
		e, err := s.entries.Remove(name)
		if err != nil {
			return err
		}
		s.metrics.SetEntries(s.entries.Len())
		s.publish(pubsub.RemovedEvent, OpRemove, e)
		return nil
	})
}

func validateName(name string) error {
	if name == "" {
		return registry.ErrInvalidName
	}
	return nil
}
