package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gqlmcpd/internal/infra/batch"
	"gqlmcpd/internal/infra/catalog"
	"gqlmcpd/internal/infra/gateway"
	"gqlmcpd/internal/infra/registry"
	"gqlmcpd/internal/infra/schema"
	"gqlmcpd/internal/infra/telemetry"
	"gqlmcpd/internal/infra/transport"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.Named("app"),
	}
}

// Serve wires the full pipeline and runs the MCP gateway over stdio until
// the context is cancelled.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	loader := catalog.NewLoader(a.logger)

	cat := catalog.Default()
	if cfg.ConfigPath != "" {
		loaded, err := loader.Load(ctx, cfg.ConfigPath)
		if err != nil {
			return err
		}
		cat = loaded
		a.logger.Info("configuration loaded",
			zap.String("config", cfg.ConfigPath),
			zap.Int("endpoints", len(cat.Endpoints)))
	}

	runtime := cat.Runtime
	requestTimeout := time.Duration(runtime.RequestTimeoutSeconds) * time.Second
	batchTimeout := time.Duration(runtime.BatchTimeoutSeconds) * time.Second

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(promRegistry)

	client := transport.NewClient(transport.ClientOptions{Logger: a.logger})
	introspector := schema.NewIntrospector(schema.IntrospectorOptions{
		Client:  client,
		Logger:  a.logger,
		Timeout: requestTimeout,
	})
	compiler := schema.NewCompiler(a.logger)
	synthesizer := schema.NewSynthesizer(schema.SynthesizerOptions{
		Logger:            a.logger,
		MaxDepth:          &runtime.MaxDepth,
		IncludeAllScalars: &runtime.IncludeAllScalars,
	})

	tools := registry.NewToolRegistry(a.logger)
	endpoints := registry.NewEndpointRegistry(registry.EndpointRegistryOptions{
		Logger:       a.logger,
		Introspector: introspector,
		Compiler:     compiler,
		Synthesizer:  synthesizer,
		Tools:        tools,
		Metrics:      metrics,
	})

	engine := batch.NewEngine(batch.EngineOptions{
		Logger:      a.logger,
		Endpoints:   endpoints,
		Client:      client,
		Metrics:     metrics,
		Concurrency: runtime.BatchConcurrency,
	})

	gw := gateway.New(gateway.Options{
		Logger:         a.logger,
		Endpoints:      endpoints,
		Tools:          tools,
		Engine:         engine,
		Client:         client,
		RequestTimeout: requestTimeout,
		BatchTimeout:   batchTimeout,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.bootstrapEndpoints(runCtx, endpoints, cat, runtime.BootstrapConcurrency)

	go func() {
		err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
			Addr:     runtime.Observability.ListenAddress,
			Registry: promRegistry,
		}, a.logger)
		if err != nil {
			a.logger.Error("observability server error", zap.Error(err))
		}
	}()

	if cfg.ConfigPath != "" {
		watcher := catalog.NewWatcher(a.logger, loader, cfg.ConfigPath, endpoints, cat.Endpoints)
		go watcher.Run(runCtx)
	}

	return gw.Run(runCtx)
}

// bootstrapEndpoints registers the preconfigured endpoints with bounded
// concurrency. A failing endpoint is logged and skipped; startup proceeds
// so the management tools stay usable.
func (a *App) bootstrapEndpoints(ctx context.Context, endpoints *registry.EndpointRegistry, cat catalog.Catalog, concurrency int) {
	if len(cat.Endpoints) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, info := range cat.Endpoints {
		group.Go(func() error {
			count, err := endpoints.Register(groupCtx, info)
			if err != nil {
				a.logger.Warn("bootstrap endpoint failed",
					zap.String("endpoint", info.Name),
					zap.Error(err))
				return nil
			}
			a.logger.Info("bootstrap endpoint registered",
				zap.String("endpoint", info.Name),
				zap.Int("tools", count))
			return nil
		})
	}
	_ = group.Wait()
}
