package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/jonboulle/clockwork"

	"github.com/andresfernandez89/livestore/internal/auth"
	"github.com/andresfernandez89/livestore/internal/config"
	"github.com/andresfernandez89/livestore/internal/coordinator"
	"github.com/andresfernandez89/livestore/internal/database"
	"github.com/andresfernandez89/livestore/internal/domain"
	"github.com/andresfernandez89/livestore/internal/hub"
	"github.com/andresfernandez89/livestore/internal/logging"
	"github.com/andresfernandez89/livestore/internal/memstore"
	"github.com/andresfernandez89/livestore/internal/redis"
	"github.com/andresfernandez89/livestore/internal/server"
	"github.com/andresfernandez89/livestore/internal/supervisor"
)

const usage = `LiveStore realtime server.

Configuration comes from the environment; the flags below override it.

Usage:
    server [--port=<port>] [--mode=<mode>] [--workers=<n>]

Options:
    -h --help          Show this screen.
    -p --port=<port>   Listen port.
    --mode=<mode>      Topology, FORK or CLUSTER.
    --workers=<n>      Worker count in CLUSTER mode.`

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	applyFlags(cfg, opts)
	return cfg
}

func applyFlags(cfg *config.Config, opts docopt.Opts) {
	if port, ok := opts["--port"].(string); ok && port != "" {
		cfg.Port = port
	}
	if mode, ok := opts["--mode"].(string); ok && mode != "" {
		if mode != config.ModeFork && mode != config.ModeCluster {
			log.Fatalf("--mode must be %s or %s, got %q", config.ModeFork, config.ModeCluster, mode)
		}
		cfg.Mode = mode
	}
	if workers, ok := opts["--workers"].(string); ok && workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			log.Fatalf("--workers must be a positive integer, got %q", workers)
		}
		cfg.Workers = n
	}
}

type stores struct {
	products domain.ProductStore
	messages domain.MessageStore
	sessions domain.AuthSessionStore
	close    func()
}

// setupStores picks the persistence backend. Postgres wins when configured,
// then Redis; the in-memory fallback exists for development only and Load has
// already rejected it in production.
func setupStores(cfg *config.Config) *stores {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case cfg.DatabaseURL != "":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}

		sessions := setupRedisSessions(ctx, cfg)
		slog.Info("Using postgres record store")
		return &stores{
			products: database.NewProductRepo(pool),
			messages: database.NewMessageRepo(pool),
			sessions: sessions,
			close:    pool.Close,
		}

	case cfg.RedisURL != "":
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("Using redis record store")
		return &stores{
			products: redis.NewProductStore(client),
			messages: redis.NewMessageStore(client),
			sessions: redis.NewAuthSessionRepo(client, cfg.SessionTTL),
			close:    func() { _ = client.Close() },
		}

	default:
		slog.Warn("No store configured, using in-memory store; data is lost on restart and not shared between workers")
		return &stores{
			products: memstore.NewProductStore(),
			messages: memstore.NewMessageStore(),
			sessions: memstore.NewAuthSessionStore(),
			close:    func() {},
		}
	}
}

// setupRedisSessions provides the auth session store when the record store is
// postgres. Redis stays the session backend when available so workers share
// logins; otherwise sessions are process-local.
func setupRedisSessions(ctx context.Context, cfg *config.Config) domain.AuthSessionStore {
	if cfg.RedisURL == "" {
		slog.Warn("No Redis configured, auth sessions are process-local")
		return memstore.NewAuthSessionStore()
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewAuthSessionRepo(client, cfg.SessionTTL)
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, st *stores) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()
		st.close()
		close(done)
	}()

	return done
}

// runSupervisor is the CLUSTER-mode parent: it spawns the workers and waits.
func runSupervisor(cfg *config.Config) {
	slog.Info("Supervisor starting", "workers", cfg.Workers, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.New(cfg.Workers).Run(ctx); err != nil {
		slog.Error("Supervisor finished with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Supervisor finished")
}

func runWorker(cfg *config.Config, clock clockwork.Clock) {
	st := setupStores(cfg)

	gate := auth.NewGate(cfg.SessionSecret, st.sessions, cfg.AppEnv == "production")

	// The hub calls back into the coordinator when the room empties, and the
	// coordinator publishes through the hub, so wire the cycle via closure.
	var coord *coordinator.Coordinator
	h := hub.NewHub(clock, func() {
		if err := coord.ClearChat(context.Background()); err != nil {
			slog.Error("Failed to clear chat after last disconnect", "error", err)
		}
	})
	coord = coordinator.New(st.products, st.messages, h, clock)

	srv := server.NewServer(cfg, gate, coord, h, clock)
	done := runGracefulShutdown(srv, h, st)

	var err error
	if cfg.Mode == config.ModeCluster {
		// Cluster workers share the port through a reuseport listener.
		listener, listenErr := supervisor.Listen(context.Background(), ":"+cfg.Port)
		if listenErr != nil {
			slog.Error("Failed to open shared listener", "error", listenErr)
			os.Exit(1)
		}
		slog.Info("Worker serving", "pid", os.Getpid(), "port", cfg.Port)
		err = srv.Serve(listener)
	} else {
		slog.Info("Server starting", "pid", os.Getpid(), "port", cfg.Port)
		err = srv.Start()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "mode", cfg.Mode, "port", cfg.Port)

	if cfg.Mode == config.ModeCluster && !supervisor.IsWorker() {
		runSupervisor(cfg)
		return
	}
	runWorker(cfg, clock)
}
