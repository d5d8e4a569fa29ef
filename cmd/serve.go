package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/rolodex/internal/api"
	"github.com/zjrosen/rolodex/internal/cachemanager"
	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
	"github.com/zjrosen/rolodex/internal/flags"
	"github.com/zjrosen/rolodex/internal/log"
	"github.com/zjrosen/rolodex/internal/pubsub"
	"github.com/zjrosen/rolodex/internal/tracing"
	"github.com/zjrosen/rolodex/internal/watcher"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		Long: `Serve the contact registry over HTTP until interrupted.

Endpoints:
  POST   /contacts        add a contact (honors Idempotency-Key)
  GET    /contacts        list contacts in slot order
  GET    /contacts/{id}   get a contact
  PUT    /contacts/{id}   replace a contact's fields
  DELETE /contacts/{id}   delete a contact
  GET    /events          server-sent events for every mutation
  GET    /health          liveness, count and next id

Example:
  rolodex serve                        # Start on the configured address
  rolodex serve --addr 127.0.0.1:0     # Let the OS pick a port`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			return c.serve(ctx, cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides config)")
	return cmd
}

// serve runs the API server until ctx is done or the server fails.
func (c *cli) serve(ctx context.Context, cmd *cobra.Command, addr string) error {
	broker := pubsub.NewBroker[domain.Event]()
	defer broker.Close()

	r, closeDB, err := c.openRegistry(registry.WithObserver(registry.PublishTo(broker)))
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	tracingCfg := tracing.Config{
		Enabled:      c.cfg.Tracing.Enabled,
		Exporter:     c.cfg.Tracing.Exporter,
		FilePath:     c.cfg.Tracing.FilePath,
		OTLPEndpoint: c.cfg.Tracing.OTLPEndpoint,
		SampleRate:   c.cfg.Tracing.SampleRate,
		ServiceName:  tracing.DefaultServiceName,
	}
	tp, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("creating tracing provider: %w", err)
	}

	var idempotency *cachemanager.IdempotentCall[string, domain.Contact]
	if c.flags.Enabled(flags.FlagIdempotency) {
		ttl := c.cfg.Cache.IdempotencyTTL
		cache := cachemanager.NewInMemoryCacheManager[string, domain.Contact]("idempotency", ttl, 2*ttl)
		idempotency = cachemanager.NewIdempotentCall[string, domain.Contact](cache, ttl)
	}

	server, err := api.NewServer(api.ServerConfig{
		Addr:        addr,
		ReadTimeout: c.cfg.Server.ReadTimeout,
		Handler: api.HandlerConfig{
			Registry:    r,
			Events:      broker,
			Idempotency: idempotency,
			Tracer:      tp.Tracer(),
		},
	})
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return fmt.Errorf("creating API server: %w", err)
	}

	if c.cfg.Watch.Enabled && c.flags.Enabled(flags.FlagReloadOnChange) && !c.flags.Enabled(flags.FlagMemoryOnly) {
		stopWatch, err := c.watchDatabase(r)
		if err != nil {
			log.ErrorErr(log.CatWatcher, "Reload on change disabled", err, "db", c.cfg.DBPath)
		} else {
			defer stopWatch()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "rolodex listening on http://%s (%d contacts)\n", server.Addr(), r.Len())
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	var serveErr error
	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(out, "\nShutting down...")
	case serveErr = <-errCh:
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatAPI, "Error stopping API server", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "Error shutting down tracing", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}

// watchDatabase reloads r whenever another process writes the database.
func (c *cli) watchDatabase(r *registry.Registry) (func(), error) {
	w, err := watcher.New(watcher.Config{Path: c.cfg.DBPath, Debounce: c.cfg.Watch.Debounce})
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if err := r.Reload(); err != nil {
					log.ErrorErr(log.CatRegistry, "Reload after database change failed", err)
					continue
				}
				log.Debug(log.CatRegistry, "Reloaded after database change", "count", r.Len(), "nextID", r.NextID())
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Stop()
	}, nil
}
