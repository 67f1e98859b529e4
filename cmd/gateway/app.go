package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"playground-gateway/internal/config"
	"playground-gateway/internal/dispatch"
	"playground-gateway/internal/gist"
	"playground-gateway/internal/handlers"
	"playground-gateway/internal/httpserver"
	"playground-gateway/internal/mcpserver"
	"playground-gateway/internal/metacache"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/playground"
	"playground-gateway/internal/sandbox"
	"playground-gateway/internal/sandbox/remote"
	"playground-gateway/pkg/logging/logging"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, sf *serveFlags) error {
	cfg, err := config.Load(sf.config)
	if err != nil {
		return fmt.Errorf("fail to load config: %w", err)
	}

	app := fx.New(appOptions(cfg)...)
	if err := app.Err(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelStop()
	return app.Stop(stopCtx)
}

func appOptions(cfg *config.Config) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			metrics.NewRecorder,
			newSandboxFactory,
			newMetaCache,
			newPipeline,
			newGistService,
			newPlayground,
			newHTTPHandler,
			newMCPServer,
		),
		fx.Invoke(registerHTTPServer, registerMCPServer),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	}
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	lc.Append(fx.StopHook(func() {
		_ = logger.Sync()
	}))
	return logger, nil
}

func newSandboxFactory(cfg *config.Config, logger *zap.Logger) (sandbox.Factory, error) {
	switch cfg.Sandbox.Backend {
	case "docker":
		return sandbox.NewDockerFactory(logger, &sandbox.Config{
			TimeoutSec:     cfg.Sandbox.TimeoutSec,
			MemoryMB:       cfg.Sandbox.MemoryMB,
			NetworkEnabled: cfg.Sandbox.NetworkEnabled,
			ImagePrefix:    cfg.Sandbox.ImagePrefix,
		}), nil
	case "remote":
		return remote.NewFactory(remote.Config{
			BaseURL:         cfg.Sandbox.Remote.BaseURL,
			APIKey:          cfg.Sandbox.Remote.APIKey,
			UpstreamTimeout: cfg.Sandbox.Remote.Timeout,
			MaxRetries:      cfg.Sandbox.Remote.MaxRetries,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported sandbox backend: %s", cfg.Sandbox.Backend)
	}
}

func newMetaCache(cfg *config.Config, factory sandbox.Factory, recorder *metrics.Recorder, logger *zap.Logger) *metacache.Cache {
	return metacache.New(factory, recorder, logger, cfg.Cache.TTL)
}

func newPipeline(factory sandbox.Factory, recorder *metrics.Recorder, logger *zap.Logger) *dispatch.Pipeline {
	return dispatch.New(factory, recorder, logger)
}

func newGistService(lc fx.Lifecycle, cfg *config.Config, recorder *metrics.Recorder, logger *zap.Logger) (*gist.Service, error) {
	store, closeStore, err := gist.NewStore(gist.Config{
		Backend:   cfg.Gist.Backend,
		Token:     cfg.Gist.Token,
		APIBase:   cfg.Gist.APIBase,
		RedisAddr: cfg.Gist.RedisAddr,
		Prefix:    cfg.Gist.Prefix,
		URLBase:   cfg.Gist.URLBase,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Fail fast if Redis is misconfigured
			if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					return fmt.Errorf("gist store unreachable: %w", err)
				}
				logger.Info("gist store connection established", zap.String("addr", cfg.Gist.RedisAddr))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return closeStore()
		},
	})

	logged := gist.NewLoggingStore(store, cfg.Gist.Backend, recorder, logger)
	return gist.NewService(logged), nil
}

func newPlayground(cfg *config.Config, pipeline *dispatch.Pipeline, meta *metacache.Cache, gists *gist.Service) *playground.Service {
	return playground.New(pipeline, meta, gists, cfg.Metrics.Token)
}

func newHTTPHandler(cfg *config.Config, core *playground.Service, recorder *metrics.Recorder, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, recorder, handlers.NewPlaygroundHandler(core), httpserver.Options{
		CORSEnabled:      cfg.Server.CORSEnabled,
		RequestTimeout:   cfg.Server.RequestTimeout,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		AuthorizeMetrics: core.AuthorizeMetrics,
	})
	return r
}

func newMCPServer(core *playground.Service, logger *zap.Logger) *mcpserver.MCPServer {
	return mcpserver.New(core, logger)
}

func registerHTTPServer(lc fx.Lifecycle, cfg *config.Config, handler http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting gateway",
				zap.String("addr", srv.Addr),
				zap.String("sandbox_backend", cfg.Sandbox.Backend),
				zap.String("gist_backend", cfg.Gist.Backend),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutdown signal received")
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
				return err
			}
			logger.Info("server shutdown complete")
			return nil
		},
	})
}

func registerMCPServer(lc fx.Lifecycle, cfg *config.Config, s *mcpserver.MCPServer, logger *zap.Logger) {
	if !cfg.MCP.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				var err error
				switch cfg.MCP.Transport {
				case "stdio":
					err = s.ServeStdio()
				default:
					err = s.ServeHTTP(fmt.Sprintf(":%d", cfg.MCP.Port))
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("mcp server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cfg.MCP.Transport == "stdio" {
				return nil
			}
			return s.Shutdown(ctx)
		},
	})
}
