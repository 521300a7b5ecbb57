package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	skyodyssey "github.com/maru-775/SkyOdyssey-CLI"
)

// runServer starts the HTTP daemon: POST /search and /trip run the engine,
// /healthz and /metrics serve operations, a cron job sweeps the cache.
func runServer() error {
	cfg, err := skyodyssey.LoadConfig()
	if err != nil {
		return err
	}
	logger := skyodyssey.NewSimpleLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metrics := skyodyssey.NewMetricsCollector()
	engine := skyodyssey.New(
		skyodyssey.WithProvider(skyodyssey.NewHTTPProvider(cfg.ProviderURL, nil)),
		skyodyssey.WithCache(cache),
		skyodyssey.WithMetrics(metrics),
		skyodyssey.WithLogger(logger),
		skyodyssey.WithDebug(cfg.Debug),
	)
	if err := engine.ValidationError(); err != nil {
		return err
	}

	sweeper := skyodyssey.NewSweepScheduler(cache, cfg.SweepIntervalHours, metrics, logger)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/search", func(w http.ResponseWriter, req *http.Request) {
		var params skyodyssey.SearchParams
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		result, err := engine.Run(req.Context(), params)
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, result)
	})

	r.Post("/trip", func(w http.ResponseWriter, req *http.Request) {
		var params skyodyssey.TripParams
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		result, err := engine.SearchTrip(req.Context(), params)
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, result)
	})

	r.Post("/anywhere", func(w http.ResponseWriter, req *http.Request) {
		var params skyodyssey.AnywhereParams
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		result, err := engine.SearchAnywhere(req.Context(), params)
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, result)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port, "cache_backend", cfg.CacheBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildCache(ctx context.Context, cfg *skyodyssey.Config, logger skyodyssey.Logger) (skyodyssey.CacheStore, error) {
	switch cfg.CacheBackend {
	case "redis":
		rdb, err := skyodyssey.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return skyodyssey.NewRedisCache(rdb, logger), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return skyodyssey.NewPostgresCache(ctx, pool, logger)
	default:
		return skyodyssey.NewInMemoryCache(), nil
	}
}

func statusFor(err error) int {
	var se *skyodyssey.SearchError
	if errors.As(err, &se) && se.Type == skyodyssey.ErrorTypeValidation {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
