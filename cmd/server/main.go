package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/api"
	"github.com/openlobby/commitment-engine/internal/exposure"
	"github.com/openlobby/commitment-engine/internal/keylock"
	"github.com/openlobby/commitment-engine/internal/ledger"
	"github.com/openlobby/commitment-engine/internal/metrics"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/registry"
	"github.com/openlobby/commitment-engine/internal/settlement"
	"github.com/openlobby/commitment-engine/internal/store"
	"github.com/openlobby/commitment-engine/internal/treasury"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	oracleToken := os.Getenv("ORACLE_TOKEN")
	if oracleToken == "" {
		slog.Error("ORACLE_TOKEN must be set; it authenticates the resolution oracle")
		os.Exit(1)
	}

	minCommitment := amount.MustFromInt64(1000)
	if v := os.Getenv("MIN_COMMITMENT"); v != "" {
		parsed, err := amount.FromString(v)
		if err != nil {
			slog.Error("invalid MIN_COMMITMENT", "err", err)
			os.Exit(1)
		}
		minCommitment = parsed
	}

	maxOpenEscrow := amount.Zero // unlimited by default
	if v := os.Getenv("MAX_OPEN_ESCROW"); v != "" {
		parsed, err := amount.FromString(v)
		if err != nil {
			slog.Error("invalid MAX_OPEN_ESCROW", "err", err)
			os.Exit(1)
		}
		maxOpenEscrow = parsed
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Treasury ---
	// The in-memory treasury stands in for the real transfer channel.
	tr := treasury.NewMemoryTreasury()

	// --- Core components ---
	locks := keylock.New()
	limiter := exposure.NewLimiter(maxOpenEscrow)

	hub := api.NewHub()
	go hub.Run()

	reg := registry.New(st, locks, oracleToken, func(billID string, outcome model.Outcome) {
		hub.Broadcast(api.Event{Type: "bill_resolved", BillID: billID, Outcome: string(outcome)})
	})
	led := ledger.New(st, tr, limiter, locks, minCommitment, nil)
	eng := settlement.NewEngine(st, tr, locks, nil, nil)

	svc := api.NewService(reg, led, eng, tr, hub)

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
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Oracle-Token")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"commitment-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("commitment-engine listening", "port", port,
			"min_commitment", minCommitment.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down commitment-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("commitment-engine stopped")
}
