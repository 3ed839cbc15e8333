package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	executor "github.com/hanpama/graphedge/internal/executor"
	fixture "github.com/hanpama/graphedge/internal/fixture"
	logging "github.com/hanpama/graphedge/internal/logging"
	metrics "github.com/hanpama/graphedge/internal/metrics"
	otel "github.com/hanpama/graphedge/internal/otel"
	querycache "github.com/hanpama/graphedge/internal/querycache"
	responder "github.com/hanpama/graphedge/internal/responder"
	server "github.com/hanpama/graphedge/internal/server"
)

func newServeCmd() *subCommand {
	sc := &subCommand{}
	sc.Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, sc.Conf)
		},
	}
	registerServeFlags(sc.Cmd.Flags())
	return sc
}

func registerServeFlags(f *pflag.FlagSet) {
	f.StringSlice("graphql.schema", nil, "GraphQL SDL file. Repeatable; at least one is required")
	f.String("graphql.data", "", "YAML or JSON file used as the root value")
	f.Duration("graphql.subscription-interval", 0, "Delay between events of list-valued subscription fields in --graphql.data")
	f.Bool("graphql.introspection", true, "Enable GraphQL introspection")
	f.Int("graphql.query-cache-size", querycache.DefaultSize,
		"Parsed query cache entries. The default shares the process-wide cache; 0 disables caching")
	f.String("server.addr", ":8080", "HTTP listen address")
	f.Bool("server.pretty", false, "Pretty-print JSON responses")
	f.Duration("server.timeout", 10*time.Second, "Per-request timeout, streams included. 0 disables it")
	f.Int64("server.max-body-bytes", 1<<20, "Maximum request body size. 0 means unlimited")
	f.StringSlice("server.cors-origin", nil, "Allowed CORS origin, or * for any. Repeatable")
	f.StringSlice("server.metadata-header", nil, "Forward HTTP header to gRPC metadata. Repeatable")
	f.Bool("server.graphiql", true, "Serve GraphiQL to browsers")
	f.Bool("server.gzip", true, "Compress single responses when the client accepts gzip")
	f.Bool("metrics.enabled", true, "Expose Prometheus metrics at /metrics")
	f.String("log.level", "info", "Log level: debug, info, warn or error")
	f.String("log.format", "json", "Log format: json or console")
	f.String("otel.endpoint", "", "OTLP collector endpoint")
	f.String("otel.service", "graphedge", "OpenTelemetry service name")
}

func runServe(ctx context.Context, conf *viper.Viper) error {
	logger, err := logging.New(conf.GetString("log.level"), conf.GetString("log.format"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	handler, cleanup, err := buildHandler(conf, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              conf.GetString("server.addr"),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("graphql server listening", zap.String("addr", srv.Addr), zap.String("version", version))

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildHandler wires the schema, runtime, observability and HTTP middleware
// described by conf. cleanup releases the event subscribers and exporters.
func buildHandler(conf *viper.Viper, logger *zap.Logger, reg *prometheus.Registry) (http.Handler, func(), error) {
	sch, err := loadSchema(conf.GetStringSlice("graphql.schema"))
	if err != nil {
		return nil, nil, err
	}

	var runtime executor.Runtime = executor.NewDefaultRuntime()
	var rootValue any
	if path := conf.GetString("graphql.data"); path != "" {
		data, err := fixture.Load(path)
		if err != nil {
			return nil, nil, err
		}
		runtime = fixture.NewRuntime(conf.GetDuration("graphql.subscription-interval"))
		rootValue = data
	}

	ropts, err := cacheOptions(conf.GetInt("graphql.query-cache-size"))
	if err != nil {
		return nil, nil, err
	}
	ropts = append(ropts, responder.WithRootValue(rootValue))

	eventbus.Use(eventbus.New())
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	cleanups = append(cleanups, logging.Subscribe(logger))

	shutdown, err := otel.Setup(conf.GetString("otel.endpoint"), conf.GetString("otel.service"))
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "otel setup")
	}
	cleanups = append(cleanups, func() { _ = shutdown(context.Background()) })

	sopts := []server.Option{
		server.WithTimeout(conf.GetDuration("server.timeout")),
		server.WithMaxBodyBytes(conf.GetInt64("server.max-body-bytes")),
		server.WithGraphiQL(conf.GetBool("server.graphiql")),
		server.WithIntrospection(conf.GetBool("graphql.introspection")),
		server.WithLogger(logger),
		server.WithResponderOptions(ropts...),
	}
	if conf.GetBool("server.pretty") {
		sopts = append(sopts, server.WithPretty())
	}
	if origins := conf.GetStringSlice("server.cors-origin"); len(origins) > 0 {
		sopts = append(sopts, server.WithCORS(origins...))
	}
	if headers := conf.GetStringSlice("server.metadata-header"); len(headers) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(headers...))
	}
	h, err := server.New(runtime, sch, sopts...)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "server init")
	}

	var graphql http.Handler = h
	if conf.GetBool("server.gzip") {
		// streamed content types are left uncompressed so parts flush as written
		wrap, err := gzhttp.NewWrapper(gzhttp.ExceptContentTypes([]string{"multipart/mixed", "text/event-stream"}))
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "gzip")
		}
		graphql = wrap(h)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", graphql)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if conf.GetBool("metrics.enabled") {
		m, err := metrics.New(reg)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "metrics")
		}
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		cleanups = append(cleanups, m.Subscribe())
		mux.Handle("/metrics", metrics.Handler(reg))
	}
	return mux, cleanup, nil
}

// cacheOptions maps --graphql.query-cache-size to responder options: the
// default size shares the process-wide cache, other sizes get a private one
// and zero disables caching.
func cacheOptions(size int) ([]responder.Option, error) {
	switch {
	case size < 0:
		return nil, errors.Errorf("graphql.query-cache-size must not be negative, got %d", size)
	case size == 0:
		return []responder.Option{responder.WithoutCache()}, nil
	case size == querycache.DefaultSize:
		return []responder.Option{responder.WithCache(querycache.Default())}, nil
	}
	c, err := querycache.New(size)
	if err != nil {
		return nil, err
	}
	return []responder.Option{responder.WithCache(c)}, nil
}
