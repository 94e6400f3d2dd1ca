package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/config"
	"github.com/openkcm/esignet-login/internal/login"
	"github.com/openkcm/esignet-login/internal/middleware/requestorigin"
)

func newRouter(cfg *config.Config, api *apiServer) http.Handler {
	traced := newTraceMiddleware(cfg)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestorigin.Middleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/authorize", traced("authorize", api.authorize))
		r.Post("/authenticate", traced("authenticate", api.authenticate))
	})

	return r
}

// newAdminRouter serves the host endpoints. They are unauthenticated and
// must only be reachable from inside the deployment.
func newAdminRouter(cfg *config.Config, api *apiServer) http.Handler {
	traced := newTraceMiddleware(cfg)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/hosts", traced("listHosts", api.listHosts))
		r.Put("/hosts", traced("putHost", api.putHost))
		r.Delete("/hosts", traced("deleteHost", api.deleteHost))
	})

	return r
}

// createHTTPServers creates the login API server and, when an admin address
// is configured, the host admin server.
func createHTTPServers(_ context.Context, cfg *config.Config, manager *login.Manager, hostRepo HostRepository) (public, admin *http.Server) {
	api := newAPIServer(manager, hostRepo)

	public = &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: newRouter(cfg, api),
	}

	if cfg.HTTP.AdminAddress != "" {
		admin = &http.Server{
			Addr:    cfg.HTTP.AdminAddress,
			Handler: newAdminRouter(cfg, api),
		}
	}

	return public, admin
}

// StartHTTPServer serves the login API until the context is cancelled.
// hostRepo may be nil, in which case host changes only live in memory.
func StartHTTPServer(ctx context.Context, cfg *config.Config, manager *login.Manager, hostRepo HostRepository) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	public, admin := createHTTPServers(ctx, cfg, manager, hostRepo)

	servers := []*http.Server{public}
	if admin != nil {
		servers = append(servers, admin)
	}

	for _, server := range servers {
		if err := listenAndServe(ctx, server); err != nil {
			_ = shutdown(ctx, cfg, servers...)
			return err
		}
	}

	<-ctx.Done()

	if err := shutdown(ctx, cfg, servers...); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}

// listenAndServe starts serving in the background. The address may be given
// as network://address, e.g. unix:///tmp/api.sock. Otherwise tcp is used.
func listenAndServe(ctx context.Context, server *http.Server) error {
	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	network, address := "tcp", server.Addr
	if idx := strings.IndexRune(address, ':'); idx != -1 && len(address) > idx+3 && address[idx:idx+3] == "://" {
		network = address[:idx]
		address = address[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, address)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server", "address", listener.Addr().String())
	}()

	return nil
}

func shutdown(ctx context.Context, cfg *config.Config, servers ...*http.Server) error {
	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	var errs []error
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
