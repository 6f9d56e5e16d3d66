package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appreg "github.com/zjrosen/hotswap/internal/application/registry"
	"github.com/zjrosen/hotswap/internal/config"
	"github.com/zjrosen/hotswap/internal/flags"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Register configured entries and reload them as their files change",
	Long: `Register every entry listed in the config file, then watch their files and
reload an entry whenever its file is saved. Entries added to the config file
while serve runs are registered on the fly, and registry.max_rollback_depth
applies from the next swap.

Example:
  hotswap serve
  hotswap serve --metrics-addr localhost:9464`,
	RunE: runServe,
}

var serveMetricsAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(cfg, config.DepthSource(v))
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			log.ErrorErr(log.CatCLI, "Error closing runtime", err)
		}
	}()

	out := cmd.OutOrStdout()
	if err := rt.registerEntries(ctx, cfg.Entries); err != nil {
		// Entries that failed stay unregistered; the rest are served.
		log.ErrorErr(log.CatCLI, "Some entries failed to register", err)
		fmt.Fprintf(out, "warning: %v\n", err)
	}

	if rt.flags.Enabled(flags.FlagEventLog) {
		go logEvents(ctx, rt)
	}

	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w, err = watcher.New(watcher.Config{Debounce: cfg.Watch.Debounce, Buffer: 64})
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
		watchEntries(w, rt.svc)
		changes := w.Start()
		go reloadChanged(ctx, rt.svc, changes)
	}

	if v.ConfigFileUsed() != "" {
		config.WatchFile(v, func(next config.Config) {
			registerAdded(ctx, rt, w, next.Entries)
		})
	}

	addr := serveMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	var server *http.Server
	errCh := make(chan error, 1)
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		fmt.Fprintf(out, "Metrics on http://%s/metrics\n", addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Fprintf(out, "Serving %d entries\n", len(rt.svc.List()))
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatCLI, "Error stopping metrics server", err)
		}
	}
	fmt.Fprintln(out, "Stopped")
	return nil
}

// watchEntries adds the backing file of every file-backed entry.
func watchEntries(w *watcher.Watcher, svc *appreg.Service) {
	for _, name := range svc.List() {
		snap, err := svc.History(name)
		if err != nil || snap.SourcePath == "" {
			continue
		}
		if err := w.Add(snap.SourcePath); err != nil {
			log.Warn(log.CatWatcher, "Cannot watch entry file", "name", name, "path", snap.SourcePath, "error", err)
		}
	}
}

// entriesFor returns the names whose backing file is path.
func entriesFor(svc *appreg.Service, path string) []string {
	var names []string
	for _, name := range svc.List() {
		snap, err := svc.History(name)
		if err != nil || snap.SourcePath == "" {
			continue
		}
		abs, err := filepath.Abs(snap.SourcePath)
		if err != nil {
			continue
		}
		if abs == path {
			names = append(names, name)
		}
	}
	return names
}

func reloadChanged(ctx context.Context, svc *appreg.Service, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-changes:
			if !ok {
				return
			}
			for _, name := range entriesFor(svc, path) {
				// Failures are logged by the service; the previous version keeps serving.
				_ = svc.Reload(ctx, name)
			}
		}
	}
}

// registerAdded registers config entries that are not registered yet.
func registerAdded(ctx context.Context, rt *runtime, w *watcher.Watcher, entries []config.EntryConfig) {
	known := make(map[string]struct{})
	for _, name := range rt.svc.List() {
		known[name] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := known[e.Name]; ok {
			continue
		}
		if _, err := rt.svc.RegisterFromFile(ctx, e.Name, e.Path); err != nil {
			continue
		}
		if w != nil {
			if err := w.Add(e.Path); err != nil {
				log.Warn(log.CatWatcher, "Cannot watch entry file", "name", e.Name, "path", e.Path, "error", err)
			}
		}
	}
}

func logEvents(ctx context.Context, rt *runtime) {
	for ev := range rt.events.Subscribe(ctx) {
		log.Info(log.CatRegistry, "event",
			"type", ev.Type,
			"name", ev.Payload.Name,
			"op", ev.Payload.Op,
			"kind", ev.Payload.Kind.String(),
			"version", ev.Payload.VersionKey)
	}
}
