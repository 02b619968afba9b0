package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vitalvas/svcauth/config"
	"github.com/vitalvas/svcauth/muxhandlers"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/server"
	"golang.org/x/net/netutil"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the signed demo API",
		Description: "Serves POST /api/echo and POST /api/time behind request " +
			"authentication, plus GET /healthz and GET /metrics. A file registry is " +
			"reloaded on SIGHUP.",
		Action: func(ctx *cli.Context) error {
			if err := a.cfg.ValidateServer(); err != nil {
				return err
			}

			return a.serve(ctx.Context)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	reg, closeRegistry, err := openRegistry(ctx, cfg.Registry, a.log)
	if err != nil {
		return err
	}
	defer closeRegistry()

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := newHandler(cfg.Server, reg, a.log, metricsRegistry)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}

	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		a.log.WithField("addr", ln.Addr().String()).Info("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	a.log.Info("shutdown completed")

	return nil
}

// newHandler assembles the router: ambient middleware on every route, the
// signing middleware on /api only.
func newHandler(cfg config.ServerConfig, reg registry.Registry, log logrus.FieldLogger, metricsRegistry *prometheus.Registry) (http.Handler, error) {
	metrics, err := server.NewMetrics(metricsRegistry)
	if err != nil {
		return nil, err
	}

	auth, err := server.NewAuthenticator(server.Config{
		Registry: reg,
		Log:      log.WithField("component", "auth"),
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}

	mwCfg := server.MiddlewareConfig{
		Authenticator: auth,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}

	if cfg.PublicURL != "" {
		base := strings.TrimSuffix(cfg.PublicURL, "/")
		mwCfg.URLFunc = func(r *http.Request) string {
			return base + r.URL.RequestURI()
		}
	}

	signed, err := server.Middleware(mwCfg)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(
		muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{}),
		muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{Log: log}),
		muxhandlers.AccessLogMiddleware(muxhandlers.AccessLogConfig{
			Log:       log.WithField("component", "http"),
			SkipPaths: []string{"/healthz", "/metrics"},
		}),
	)

	if len(cfg.TrustedProxies) > 0 {
		proxy, err := muxhandlers.ProxyHeadersMiddleware(muxhandlers.ProxyHeadersConfig{
			TrustedProxies: cfg.TrustedProxies,
		})
		if err != nil {
			return nil, err
		}

		r.Use(proxy)
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(signed)
	api.Handle("/echo", &server.Handler{Func: echo, Log: log}).Methods(http.MethodPost)
	api.Handle("/time", &server.Handler{Func: now, Log: log}).Methods(http.MethodPost)

	return r, nil
}

// echo returns the caller identity and its form fields.
func echo(r *http.Request) (server.Result, error) {
	if err := r.ParseForm(); err != nil {
		return nil, server.Error(http.StatusBadRequest, "malformed form body")
	}

	form := make(map[string]any, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) == 1 {
			form[k] = v[0]
		} else {
			form[k] = v
		}
	}

	return server.Result{
		"service": server.ServiceFromContext(r.Context()).ID,
		"form":    form,
	}, nil
}

// now returns the server time in the requested zone.
func now(r *http.Request) (server.Result, error) {
	if err := r.ParseForm(); err != nil {
		return nil, server.Error(http.StatusBadRequest, "malformed form body")
	}

	loc := time.UTC

	if tz := r.PostForm.Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, server.Error(http.StatusBadRequest, fmt.Sprintf("unknown time zone %q", tz))
		}

		loc = l
	}

	t := time.Now().In(loc)

	return server.Result{
		"time":              t.Format(time.RFC3339),
		server.UpdatedField: t,
	}, nil
}

// openRegistry opens the configured record source. A file registry is
// reloaded on SIGHUP until ctx is done.
func openRegistry(ctx context.Context, cfg config.RegistryConfig, log logrus.FieldLogger) (registry.Registry, func(), error) {
	if cfg.Badger != "" {
		store, err := openBadgerStore(cfg, log)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Warn("cannot close registry store")
			}
		}

		if cfg.Preload {
			mem, err := store.Load(ctx)
			if err != nil {
				closeFn()
				return nil, nil, err
			}

			log.WithField("services", len(mem.List())).Info("registry preloaded")

			return mem, closeFn, nil
		}

		cached, err := registry.NewCached(store, cfg.CacheSize)
		if err != nil {
			closeFn()
			return nil, nil, err
		}

		return cached, closeFn, nil
	}

	records, err := registry.LoadFile(cfg.File)
	if err != nil {
		return nil, nil, err
	}

	mem, err := registry.NewMemory(records...)
	if err != nil {
		return nil, nil, err
	}

	log.WithField("services", len(records)).Info("registry loaded")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-hup:
				reloadFile(mem, cfg.File, log)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	closeFn := func() {
		signal.Stop(hup)
		close(done)
	}

	return mem, closeFn, nil
}

func reloadFile(mem *registry.Memory, path string, log logrus.FieldLogger) {
	records, err := registry.LoadFile(path)
	if err == nil {
		err = mem.Replace(records)
	}

	if err != nil {
		log.WithError(err).Error("registry reload failed, keeping previous records")
		return
	}

	log.WithField("services", len(records)).Info("registry reloaded")
}

func openBadgerStore(cfg config.RegistryConfig, log logrus.FieldLogger) (*registry.Badger, error) {
	opts := badger.DefaultOptions(cfg.Badger).
		WithLogger(log.WithField("component", "badger"))

	return registry.OpenBadger(opts, cfg.MasterKey)
}
