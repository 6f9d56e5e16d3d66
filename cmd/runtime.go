package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	appreg "github.com/zjrosen/hotswap/internal/application/registry"
	"github.com/zjrosen/hotswap/internal/config"
	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/flags"
	"github.com/zjrosen/hotswap/internal/infrastructure/loader"
	"github.com/zjrosen/hotswap/internal/infrastructure/storage"
	"github.com/zjrosen/hotswap/internal/metrics"
	"github.com/zjrosen/hotswap/internal/paths"
	"github.com/zjrosen/hotswap/internal/pubsub"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// runtime wires the registry service to its collaborators for one command.
type runtime struct {
	svc     *appreg.Service
	loader  loader.Loader
	store   artifact.Store
	tracing *tracing.Provider
	metrics *metrics.Metrics
	events  *pubsub.Broker[appreg.Event]
	flags   *flags.Registry
}

func openStore(c config.Config) (artifact.Store, error) {
	store, err := storage.Open(c.Store.Storage())
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}
	return store, nil
}

func newRuntime(c config.Config, depth func() int) (*runtime, error) {
	store, err := openStore(c)
	if err != nil {
		return nil, err
	}

	tc := c.Tracing
	tc.FilePath = paths.ExpandHome(tc.FilePath)
	tp, err := tracing.NewProvider(tc)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	rt := &runtime{
		loader:  loader.NewManifestLoader(),
		store:   store,
		tracing: tp,
		metrics: metrics.New(),
		events:  pubsub.NewBroker[appreg.Event](),
		flags:   flags.New(c.Flags),
	}
	rt.svc = appreg.NewService(rt.loader,
		appreg.WithStore(store),
		appreg.WithDepth(depth),
		appreg.WithResume(c.Registry.ResumeHistory),
		appreg.WithTracer(tp.Tracer()),
		appreg.WithMetrics(rt.metrics),
		appreg.WithEvents(rt.events),
	)
	return rt, nil
}

// registerEntries registers every configured entry, collecting failures.
func (r *runtime) registerEntries(ctx context.Context, entries []config.EntryConfig) error {
	var result *multierror.Error
	for _, e := range entries {
		if _, err := r.svc.RegisterFromFile(ctx, e.Name, e.Path); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *runtime) Close(ctx context.Context) error {
	var result *multierror.Error
	r.events.Close()
	if err := r.tracing.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutting down tracing: %w", err))
	}
	if err := r.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing store: %w", err))
	}
	return result.ErrorOrNil()
}
