package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"gateway-service/common/rabbitmq"
	"gateway-service/common/redis"
	"gateway-service/config"
	"gateway-service/consumer"
	"gateway-service/handlers"
	"gateway-service/hub"
	"gateway-service/middleware"
	"gateway-service/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.String("port", "", "listen port (overrides PORT)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

// newLogger builds a production JSON logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := hub.NewRegistry(logger.Named("registry"))
	dispatcher := hub.NewDispatcher(registry, logger.Named("dispatcher"))

	events := newEventStore(ctx, cfg.Redis, logger)

	target, err := url.Parse(cfg.Proxy.BackendURL)
	if err != nil {
		return fmt.Errorf("parse backend url: %w", err)
	}

	var limiter *middleware.RateLimiter
	if cfg.Proxy.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Proxy.RateLimitRPS, cfg.Proxy.RateLimitBurst)
		defer limiter.Stop()
	}

	router := newRouter(routes{
		registry:   registry,
		dispatcher: dispatcher,
		events:     events,
		proxy:      handlers.NewProxyHandler(target, cfg.Proxy.Timeout, logger.Named("proxy")),
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived streams end when the process is told to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gateway listening", zap.String("addr", server.Addr),
			zap.String("backend", target.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runConsumer(gctx, cfg.Broker, dispatcher, events, logger.Named("consumer"))
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newEventStore prefers Redis when configured. Counters only feed /stats, so
// an unreachable Redis degrades to in-memory counts instead of failing.
func newEventStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) store.EventStore {
	if cfg.URL == "" {
		logger.Info("REDIS_URL not set, keeping event counts in memory")
		return store.NewMemoryStore()
	}
	client, err := redis.Connect(ctx, cfg.URL)
	if err != nil {
		logger.Warn("redis unavailable, keeping event counts in memory", zap.Error(err))
		return store.NewMemoryStore()
	}
	logger.Info("recording event counts in Redis", zap.String("key", cfg.StatsKey))
	return store.NewRedisStore(client, cfg.StatsKey)
}

type routes struct {
	registry   *hub.Registry
	dispatcher *hub.Dispatcher
	events     store.EventStore
	proxy      http.Handler
	limiter    *middleware.RateLimiter
	cfg        *config.Config
	logger     *zap.Logger
}

func newRouter(rt routes) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", handlers.HealthHandler).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/ws", handlers.NewWebSocketHandler(rt.registry, rt.dispatcher,
		handlers.CheckOrigin(rt.cfg.AllowedOrigins), rt.cfg.Stream.BufferSize, rt.logger.Named("websocket")))
	r.Handle("/events", handlers.NewSSEHandler(rt.registry, rt.cfg.Stream.Heartbeat,
		rt.cfg.Stream.BufferSize, rt.logger.Named("sse"))).Methods(http.MethodGet)
	r.Handle("/stats", handlers.NewStatsHandler(rt.registry, rt.events, rt.logger.Named("stats"))).Methods(http.MethodGet)

	api := r.MatcherFunc(isAPIPath).Subrouter()
	if rt.limiter != nil {
		api.Use(rt.limiter.Middleware())
	}
	api.PathPrefix("/").Handler(rt.proxy)

	return r
}

// isAPIPath matches /api and everything below it, but not /apifoo.
func isAPIPath(r *http.Request, _ *mux.RouteMatch) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

// runConsumer keeps the broker consumer alive. Broker failures never stop the
// gateway: client connections and the proxy keep serving without events.
func runConsumer(ctx context.Context, cfg config.BrokerConfig, d *hub.Dispatcher, s store.EventStore, logger *zap.Logger) {
	for {
		err := consumeOnce(ctx, cfg, d, s, logger)
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, consumer.ErrDeliveriesClosed) || !cfg.Reconnect {
			logger.Error("broker consumer stopped, relaying no further events", zap.Error(err))
			return
		}

		logger.Warn("broker connection lost, reconnecting", zap.Duration("delay", cfg.RetryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.RetryDelay):
		}
	}
}

func consumeOnce(ctx context.Context, cfg config.BrokerConfig, d *hub.Dispatcher, s store.EventStore, logger *zap.Logger) error {
	conn, err := rabbitmq.Connect(ctx, nil, cfg.URL, cfg.ConnectAttempts, cfg.RetryDelay, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	c := consumer.New(ch, consumer.Config{
		Exchange:           cfg.Exchange,
		Queue:              cfg.Queue,
		RoutingKey:         cfg.RoutingKey,
		ConsumerTag:        cfg.ConsumerTag,
		RejectMalformed:    cfg.MalformedPolicy == config.MalformedReject,
		DeadLetterExchange: cfg.DeadLetterExchange,
	}, d, s, logger)
	return c.Start(ctx)
}
