// Package app wires the engine, the option store, storage and the UCI
// session together with fx.
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hailam/chessrelocate/internal/config"
	"github.com/hailam/chessrelocate/internal/engine"
	"github.com/hailam/chessrelocate/internal/options"
	"github.com/hailam/chessrelocate/internal/stats"
	"github.com/hailam/chessrelocate/internal/stats/logger"
	"github.com/hailam/chessrelocate/internal/stats/prometheus"
	"github.com/hailam/chessrelocate/internal/storage"
	"github.com/hailam/chessrelocate/internal/tablebase"
	"github.com/hailam/chessrelocate/internal/uci"
)

// tablebaseCacheSize is the number of positions kept by the prober cache.
const tablebaseCacheSize = 4096

// IO carries the protocol streams.
type IO struct {
	In  io.Reader
	Out io.Writer
}

// Module provides the session and everything it depends on. It requires a
// config.Config and an IO to be supplied.
var Module = fx.Module("chessrelocate",
	fx.Provide(
		NewLogger,
		newStatsCollector,
		newStorage,
		newOptions,
		newProberFactory,
		newEngine,
		newSession,
	),
)

// New builds an application around Module. extra is typically an fx.Invoke
// or fx.Populate for the session.
func New(cfg config.Config, streams IO, extra ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(cfg, streams),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		Module,
		fx.Options(extra...),
	)
}

// NewLogger builds the process logger. It writes JSON to stderr, since
// stdout carries the protocol.
func NewLogger(cfg config.Config, lc fx.Lifecycle) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Syncing stderr fails on some terminals; nothing to do about it.
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

// statsParams holds dependencies for the metrics collector.
type statsParams struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// newStatsCollector logs metrics at debug level, or exports them on
// /metrics when a metrics address is configured.
func newStatsCollector(p statsParams) stats.Collector {
	if p.Config.MetricsAddr == "" {
		return logger.New(p.Logger)
	}

	registry := prom.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              p.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log := p.Logger.Named("metrics")

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return prometheus.New(registry)
}

// newStorage opens the database, or returns nil when storage is disabled.
func newStorage(cfg config.Config, log *zap.Logger, lc fx.Lifecycle) (*storage.Store, error) {
	if cfg.NoStore {
		return nil, nil
	}
	store, err := storage.Open(cfg.DataDir, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// newOptions builds the option store and restores saved values.
func newOptions(cfg config.Config, log *zap.Logger, store *storage.Store) (*options.Store, error) {
	var persist options.Persister
	if store != nil {
		persist = store
	}
	opts := options.NewDefault(persist, log.Named("options"), cfg.Threads, cfg.HashMB)
	if cfg.TablebaseURL != "" {
		if err := opts.SetDefault(options.TablebaseURL, cfg.TablebaseURL); err != nil {
			return nil, err
		}
	}
	if err := opts.Restore(); err != nil {
		return nil, err
	}
	return opts, nil
}

// newProberFactory caches every online tablebase prober the session makes.
func newProberFactory(log *zap.Logger, collector stats.Collector) uci.ProberFactory {
	return func(url string) (tablebase.Prober, error) {
		inner := tablebase.NewLichessProber(url, log.Named("tablebase"))
		return tablebase.NewCachedProber(inner, tablebaseCacheSize, collector)
	}
}

// engineParams holds dependencies for the engine.
type engineParams struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Options   *options.Store
	Lifecycle fx.Lifecycle
}

func newEngine(p engineParams) *engine.Engine {
	e := engine.New(
		engine.WithLogger(p.Logger.Named("engine")),
		engine.WithStats(p.Collector),
		engine.WithHash(p.Options.Get(options.Hash).Int()),
		engine.WithThreads(p.Options.Get(options.Threads).Int()),
	)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			e.Stop()
			e.WaitUntilIdle()
			return nil
		},
	})
	return e
}

// sessionParams holds dependencies for the UCI session.
type sessionParams struct {
	fx.In

	IO        IO
	Logger    *zap.Logger
	Collector stats.Collector
	Engine    *engine.Engine
	Options   *options.Store
	Store     *storage.Store
	Probers   uci.ProberFactory
}

func newSession(p sessionParams) *uci.Session {
	in, out := p.IO.In, p.IO.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	opts := []uci.Option{
		uci.WithLogger(p.Logger.Named("uci")),
		uci.WithStats(p.Collector),
		uci.WithProberFactory(p.Probers),
	}
	if p.Store != nil {
		opts = append(opts, uci.WithArchive(p.Store))
	}
	return uci.NewSession(in, out, p.Engine, p.Options, opts...)
}
