package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/catalog"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/config"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/game"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/limit"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/metrics"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Configuration ---
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// Environment overrides for containerized deployments.
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			slog.Error("invalid PORT", "value", port, "err", err)
			os.Exit(1)
		}
		cfg.Server.Port = n
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Database.RedisURL = redisURL
	}

	// Durations were validated in config.Load.
	readTimeout, _ := cfg.Server.ReadTimeoutDuration()
	writeTimeout, _ := cfg.Server.WriteTimeoutDuration()
	shutdownTimeout, _ := cfg.Server.ShutdownTimeoutDuration()
	cacheTTL, _ := cfg.Database.CacheTTLDuration()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.InitSchema(context.Background()); err != nil {
			slog.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Database.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Database.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cacheTTL)
			slog.Info("Redis cache enabled", "ttl", cacheTTL)
		}
	} else {
		slog.Warn("database_url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Card catalog ---
	cat := catalog.Builtin()
	if path := cfg.Catalog.Path; path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			slog.Warn("catalog load failed, using built-in catalog", "path", path, "err", err)
		} else {
			cat = loaded
			slog.Info("catalog loaded", "path", path, "pools", len(loaded.Names()))
		}
	}
	holder := catalog.NewHolder(cat)

	// Hot reload on catalog file changes.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if path := cfg.Catalog.Path; path != "" {
		watcher, err := catalog.NewWatcher(path, holder)
		if err != nil {
			slog.Warn("catalog watcher disabled", "path", path, "err", err)
		} else {
			go watcher.Run(watchCtx)
		}
	}

	// --- Draw rate limits ---
	limiter := limit.NewDrawLimiter(cfg.RateLimit.DrawsPerSecond, cfg.RateLimit.DrawBurst)

	// --- WebSocket hub ---
	wsHub := game.NewWSHub()
	go wsHub.Run()

	// --- Game service ---
	gameSvc := game.NewService(cfg, st, holder, limiter, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"deck-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time draw events.
		r.Get("/ws", wsHub.HandleWS)

		// Card catalog.
		r.Get("/catalog", gameSvc.GetCatalog)

		// Player lifecycle.
		r.Post("/players", gameSvc.CreatePlayer)
		r.Get("/players/{playerID}", gameSvc.GetPlayer)

		// Draw execution and history.
		r.Post("/players/{playerID}/draws", gameSvc.ExecuteDraw)
		r.Get("/players/{playerID}/draws", gameSvc.GetDrawHistory)
		r.Get("/players/{playerID}/collection", gameSvc.GetCollection)

		// Upgrades.
		r.Get("/players/{playerID}/upgrades", gameSvc.ListUpgrades)
		r.Post("/players/{playerID}/upgrades", gameSvc.PurchaseUpgrade)

		// Offline progression.
		r.Post("/players/{playerID}/offline-claim", gameSvc.ClaimOffline)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("deck-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWatch()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down deck-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("deck-engine stopped")
}
