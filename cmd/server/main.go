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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"stylist-orchestrator/internal/adapter/catalogdb"
	"stylist-orchestrator/internal/adapter/httpapi"
	"stylist-orchestrator/internal/adapter/oracle"
	"stylist-orchestrator/internal/adapter/sessionstore"
	"stylist-orchestrator/internal/adapter/weatherapi"
	"stylist-orchestrator/internal/adapter/websearch"
	"stylist-orchestrator/internal/infra"
	"stylist-orchestrator/internal/infra/config"
	"stylist-orchestrator/internal/infra/httpclient"
	"stylist-orchestrator/internal/infra/logger"
	"stylist-orchestrator/internal/usecase"
	"stylist-orchestrator/internal/usecase/pipeline"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New()
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(context.Background(), cfg.DB.DSN(), infra.PoolConfig{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Initialize Session Store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()
	sessions := sessionstore.NewRedisSessionRepository(redisClient, 0)

	// 5. Initialize Adapters
	catalogIndex := catalogdb.NewCatalogIndex(dbPool)
	embedder := oracle.NewEmbedClient(cfg.Embedder.URL, cfg.Embedder.Model,
		serviceTimeout(cfg.Embedder), log, httpclient.NewPooledClient(serviceTimeout(cfg.Embedder)))
	rankOracle := oracle.NewRankClient(cfg.RankOracle.URL, cfg.RankOracle.Model,
		serviceTimeout(cfg.RankOracle), log, httpclient.NewPooledClient(serviceTimeout(cfg.RankOracle)))
	matchOracle := oracle.NewMatchClient(cfg.MatchOracle.URL,
		serviceTimeout(cfg.MatchOracle), cfg.MatchOracleRate, cfg.MatchOracleBurst, log,
		httpclient.NewPooledClient(serviceTimeout(cfg.MatchOracle)))
	planOracle := oracle.NewPlanClient(cfg.Planner.URL, cfg.Planner.Model,
		serviceTimeout(cfg.Planner), log, httpclient.NewPooledClient(serviceTimeout(cfg.Planner)))
	intentClient := oracle.NewIntentClient(cfg.Planner.URL, cfg.Planner.Model,
		serviceTimeout(cfg.Planner), log, httpclient.NewPooledClient(serviceTimeout(cfg.Planner)))
	webClient := websearch.NewClient(cfg.WebSearch.URL, serviceTimeout(cfg.WebSearch), log,
		httpclient.NewPooledClient(serviceTimeout(cfg.WebSearch)))
	weatherClient := weatherapi.NewClient(cfg.GeocodeURL, cfg.WeatherURL, 10*time.Second, log)

	// 6. Initialize Pipeline Stages
	retriever := pipeline.NewRetriever(embedder, catalogIndex,
		cfg.Pipeline.SearchLimit, cfg.Pipeline.BrandCap, serviceTimeout(cfg.Embedder), log)
	reranker := pipeline.NewReranker(rankOracle,
		cfg.Pipeline.RerankTopK, cfg.Pipeline.BrandCap, cfg.Pipeline.DiversityWindow,
		serviceTimeout(cfg.RankOracle), log)
	validator := pipeline.NewValidator(matchOracle,
		cfg.Pipeline.OracleImageCap, serviceTimeout(cfg.MatchOracle), log)
	planner := pipeline.NewPlanner(planOracle,
		cfg.Pipeline.MaxSubQueries, serviceTimeout(cfg.Planner), log)
	outfits := pipeline.NewOutfitBuilder(planOracle, serviceTimeout(cfg.Planner), log)

	// 7. Initialize Orchestrator
	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Classifier: intentClient,
		Sessions:   sessions,
		Retriever:  retriever,
		Reranker:   reranker,
		Validator:  validator,
		Planner:    planner,
		Outfits:    outfits,
		WebSearch:  webClient,
		NormMiner:  webClient,
		Trends:     webClient,
		Weather:    weatherClient,
		Logger:     log,
	}, usecase.OrchestratorConfig{
		ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
		SearchLimit:         cfg.Pipeline.SearchLimit,
		MinValidForWeb:      cfg.Pipeline.MinValidForWeb,
		WebSearchLimit:      cfg.Pipeline.WebSearchLimit,
		OriginCap:           cfg.Pipeline.OriginCap,
		FinalBound:          cfg.Pipeline.FinalBound,
		TrendsTTL:           time.Duration(cfg.Cache.TrendsTTL) * time.Second,
		WeatherTTL:          time.Duration(cfg.Cache.WeatherTTL) * time.Second,
		WebResultsTTL:       time.Duration(cfg.Cache.WebResultsTTL) * time.Second,
		CacheSize:           cfg.Cache.Size,
	})

	// 8. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 9. Register Handlers
	handler := httpapi.NewHandler(orchestrator, log)
	handler.Register(e)

	// 10. Health Checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		if err := redisClient.Ping(c.Request().Context()).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "session store down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 11. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 12. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

func serviceTimeout(svc config.ServiceConfig) time.Duration {
	return time.Duration(svc.Timeout) * time.Second
}
