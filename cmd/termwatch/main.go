package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/config"
	"github.com/seclens/termwatch/internal/db"
	dbRedis "github.com/seclens/termwatch/internal/db/redis"
	"github.com/seclens/termwatch/internal/domain"
	logpkg "github.com/seclens/termwatch/internal/logger"
	"github.com/seclens/termwatch/internal/metrics"
	corpusrepo "github.com/seclens/termwatch/internal/repository/corpus"
	"github.com/seclens/termwatch/internal/repository/embcache"
	chiTransport "github.com/seclens/termwatch/internal/transport/chi"
	"github.com/seclens/termwatch/internal/transport/hec"
	ollamaEmb "github.com/seclens/termwatch/internal/transport/ollama"
	openaiEmb "github.com/seclens/termwatch/internal/transport/openai"
	"github.com/seclens/termwatch/internal/transport/splunk"
	detectuc "github.com/seclens/termwatch/internal/usecase/detect"
	ingestuc "github.com/seclens/termwatch/internal/usecase/ingest"
	"github.com/seclens/termwatch/internal/usecase/similarity"
	"github.com/seclens/termwatch/internal/version"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting termwatch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Optional Redis embedding cache
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, 10*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	embedder, err := buildEmbedder(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}

	// Load the sensitive-term corpus and precompute its embeddings
	terms, err := corpusrepo.LoadTerms(cfg.Corpus.Path, cfg.Corpus.Column)
	if err != nil {
		logger.Fatal("Failed to load term corpus", zap.Error(err))
	}
	corpus, err := corpusrepo.Build(ctx, terms, embedder, logger)
	if err != nil {
		logger.Fatal("Failed to embed term corpus", zap.Error(err))
	}
	logger.Info("Corpus ready", zap.Int("terms", corpus.Len()))

	engine := similarity.New(similarity.Weights{
		SubstringGate:           cfg.Detection.SubstringGate,
		OverlapGate:             cfg.Detection.OverlapGate,
		SemanticSubstringWeight: cfg.Detection.SemanticSubstringWeight,
		SemanticOverlapWeight:   cfg.Detection.SemanticOverlapWeight,
	})
	detector := detectuc.New(corpus, embedder, engine, cfg.Detection.Threshold, logger)

	exporter := hec.New(hec.Config{
		URL:             cfg.Collector.URL,
		Token:           cfg.Collector.Token,
		Index:           cfg.Collector.Index,
		Source:          cfg.Collector.Source,
		Timeout:         time.Duration(cfg.Collector.TimeoutSec) * time.Second,
		BreakerFailures: uint32(cfg.Collector.BreakerFailures),
		BreakerCooldown: time.Duration(cfg.Collector.BreakerCooldownSec) * time.Second,
	}, logger)
	if exporter.Enabled() {
		logger.Info("Event collector configured", zap.String("index", cfg.Collector.Index))
	} else {
		logger.Warn("Event collector not configured, detections will not be exported")
	}

	searchClient := splunk.NewClient(splunk.Config{
		BaseURL:            cfg.Splunk.BaseURL,
		Username:           cfg.Splunk.Username,
		Password:           cfg.Splunk.Password,
		SavedSearch:        cfg.Splunk.SavedSearch,
		PollInterval:       time.Duration(cfg.Splunk.PollIntervalSec) * time.Second,
		MaxPollAttempts:    cfg.Splunk.MaxPollAttempts,
		PageSize:           cfg.Splunk.PageSize,
		RequestTimeout:     time.Duration(cfg.Splunk.RequestTimeoutSec) * time.Second,
		InsecureSkipVerify: cfg.Splunk.InsecureSkipVerify,
	}, logger)

	pipeline := ingestuc.New(searchClient, detector, exporter, cfg.Scheduler.Workers, logger)

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()

	var scheduler *ingestuc.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = ingestuc.NewScheduler(
			pipeline, time.Duration(cfg.Scheduler.IntervalMin)*time.Minute, logger)
		go scheduler.Run(schedCtx)
	}

	// The interface-typed scheduler must stay nil when disabled, a typed nil
	// pointer would pass the != nil check inside the handler.
	var statusReporter chiTransport.StatusReporter
	if scheduler != nil {
		statusReporter = scheduler
	}

	server := chiTransport.NewServer(detector, pipeline, exporter, statusReporter, corpus, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: provider -> cached.
func buildEmbedder(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
	case "ollama":
		var err error
		base, err = ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			URL:    cfg.Embedding.Ollama.URL,
			Model:  cfg.Embedding.Ollama.Model,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	// Probe the provider before the corpus build burns tokens on it
	if hc, ok := base.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			logger.Warn("Embedding provider health check failed", zap.Error(err))
		}
	}

	if store == nil {
		return base, nil
	}
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger), nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
