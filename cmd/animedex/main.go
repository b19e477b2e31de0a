package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/bootstrap"
	"github.com/kailas-cloud/animedex/internal/config"
	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	logpkg "github.com/kailas-cloud/animedex/internal/logger"
	"github.com/kailas-cloud/animedex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/animedex/internal/repository/catalog"
	"github.com/kailas-cloud/animedex/internal/repository/liststore"
	chiTransport "github.com/kailas-cloud/animedex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/animedex/internal/transport/openai"
	actionuc "github.com/kailas-cloud/animedex/internal/usecase/action"
	cataloguc "github.com/kailas-cloud/animedex/internal/usecase/catalog"
	chatuc "github.com/kailas-cloud/animedex/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/animedex/internal/usecase/embedding"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
	healthuc "github.com/kailas-cloud/animedex/internal/usecase/health"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
	intentuc "github.com/kailas-cloud/animedex/internal/usecase/intent"
	listsuc "github.com/kailas-cloud/animedex/internal/usecase/lists"
	recommenduc "github.com/kailas-cloud/animedex/internal/usecase/recommend"
	searchuc "github.com/kailas-cloud/animedex/internal/usecase/search"
	"github.com/kailas-cloud/animedex/internal/version"
)

func main() {
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

	logger.Info("Starting animedex API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("reattempt_policy", cfg.Search.ReattemptPolicy),
	)

	metrics.Register()
	ctx := context.Background()

	// The list store is required; the vector index is not.
	pool, err := bootstrap.OpenPostgres(ctx, &cfg)
	if err != nil {
		logger.Fatal("Postgres not ready", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Connected to postgres")

	catalog := cataloguc.New(catalogrepo.New(pool))
	if err := catalog.Load(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	logger.Info("Catalog loaded",
		zap.Int("anime", catalog.Len(title.Anime)),
		zap.Int("manga", catalog.Len(title.Manga)),
	)

	store, err := bootstrap.OpenStore(ctx, &cfg)
	if err != nil {
		logger.Warn("Index store unavailable, searches will use the keyword fallback", zap.Error(err))
	} else {
		defer store.Close()
		logger.Info("Connected to index store")
	}

	emb, err := bootstrap.BuildEmbedders(&cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to build embedders", zap.Error(err))
	}
	queryCache, err := embeddinguc.NewQueryCache(emb.Query, cfg.Search.QueryCacheSize, metrics.QueryCacheTotal)
	if err != nil {
		logger.Fatal("Failed to create query cache", zap.Error(err))
	}
	logger.Info("Embedders created",
		zap.String("provider", emb.Provider),
		zap.String("model", emb.Model),
		zap.Int("dimensions", emb.Dim),
	)

	// The handle must see an untyped nil on failure: a nil *index.Adapter
	// stored in searchuc.Index is not == nil.
	var openIndex func(ctx context.Context) (searchuc.Index, error)
	if store != nil {
		opener := bootstrap.NewOpener(&cfg, bootstrap.VectorRepo(&cfg, store), emb, queryCache, logger)
		openIndex = func(ctx context.Context) (searchuc.Index, error) {
			a, err := opener.Open(ctx)
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	} else {
		openIndex = func(context.Context) (searchuc.Index, error) {
			return nil, fmt.Errorf("%w: index store not connected", domain.ErrIndexUnavailable)
		}
	}
	handle := index.NewHandle(openIndex)

	searchSvc := searchuc.New(handle, fallback.New(catalog), searchuc.Config{
		Policy:            searchuc.ReattemptPolicy(cfg.Search.ReattemptPolicy),
		ReattemptInterval: time.Duration(cfg.Search.ReattemptIntervalSec) * time.Second,
		FailureThreshold:  cfg.Search.FailureThreshold,
	}, searchuc.Metrics{
		Requests: metrics.SearchRequestsTotal,
		Mode:     metrics.SearchMode,
	}, logger)

	lists := liststore.New(pool, cfg.Timeouts.StoreTx())
	actionSvc := actionuc.New(
		intentuc.NewDetector(intentuc.DefaultRules()), searchSvc, lists, metrics.ActionsTotal, logger,
	)
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Logger:      logger,
	})
	chatSvc := chatuc.New(actionSvc, searchSvc, lists, generator, logger)
	recommendSvc := recommenduc.New(searchSvc, lists, logger)

	var indexPinger healthuc.Pinger = unavailablePinger{}
	if store != nil {
		indexPinger = store
	}
	healthSvc := healthuc.New(indexPinger, pool, newEmbeddingHealthChecker(emb.Doc), searchSvc)

	listSvc := listsuc.New(lists, catalog, logger)
	server := chiTransport.NewServer(searchSvc, chatSvc, recommendSvc, listSvc, healthSvc)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// unavailablePinger reports the index store down when it never connected.
type unavailablePinger struct{}

func (unavailablePinger) Ping(context.Context) error {
	return domain.ErrIndexUnavailable
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
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

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
