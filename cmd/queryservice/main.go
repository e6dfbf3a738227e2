package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/nyashahama/nlsql-queryengine/internal/api"
	"github.com/nyashahama/nlsql-queryengine/internal/config"
	"github.com/nyashahama/nlsql-queryengine/internal/dbx"
	"github.com/nyashahama/nlsql-queryengine/internal/llm"
	"github.com/nyashahama/nlsql-queryengine/internal/metrics"
	"github.com/nyashahama/nlsql-queryengine/internal/orchestrator"
	"github.com/nyashahama/nlsql-queryengine/internal/resilience"
	"github.com/nyashahama/nlsql-queryengine/internal/schema"
	"github.com/nyashahama/nlsql-queryengine/internal/sqlvalidator"
)

func main() {
	// ── Logger ───────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ───────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "databases", len(cfg.Databases))

	// ── Databases, validators, schema snapshots ─────────────────────────
	bindings := make(map[string]orchestrator.DatabaseBinding, len(cfg.Databases))
	schemaCache := dbx.NewSnapshotCache()
	var pools []*sql.DB

	for name, dbCfg := range cfg.Databases {
		pool, err := openDB(dbCfg)
		if err != nil {
			for _, p := range pools {
				p.Close()
			}
			return fmt.Errorf("database %q: %w", name, err)
		}
		pools = append(pools, pool)
		logger.Info("database connected", "database", name)

		validator := sqlvalidator.New(sqlvalidator.DefaultSecurityConfig(), sqlvalidator.Options{
			BlockedTables:  dbCfg.BlockedTables,
			BlockedColumns: dbCfg.BlockedColumns,
			AllowExplain:   dbCfg.AllowExplain,
		})

		bindings[name] = orchestrator.DatabaseBinding{
			Executor:  dbx.NewPoolExecutor(name, pool),
			Validator: validator,
		}

		if dbCfg.SchemaSnapshotPath != "" {
			snapshot, err := schema.LoadSnapshot(dbCfg.SchemaSnapshotPath)
			if err != nil {
				return fmt.Errorf("schema snapshot for %q: %w", name, err)
			}
			if snapshot.DatabaseName == "" {
				snapshot.DatabaseName = name
			}
			schemaCache.Set(snapshot)
			logger.Info("schema snapshot loaded", "database", name, "tables", len(snapshot.Tables))
		}
	}
	defer func() {
		for _, p := range pools {
			p.Close()
		}
	}()

	// ── LLM generator ─────────────────────────────────────────────────────
	// Anthropic is primary. DeepSeek is the fallback when DEEPSEEK_API_KEY
	// is also set. In production, set both keys for maximum resilience.
	var generator llm.SQLGenerator
	var resultValidator llm.ResultValidator
	validationCfg := llm.ValidationConfig{
		Enabled:             cfg.ResultValidationEnabled,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		SampleRows:          cfg.SampleRows,
	}

	switch {
	case cfg.AnthropicAPIKey != "" && cfg.DeepSeekAPIKey != "":
		primary := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMCallTimeout)
		secondary := llm.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.LLMCallTimeout)
		generator = llm.NewFallbackGenerator(primary, secondary, logger)
		if cfg.ResultValidationEnabled {
			resultValidator = llm.NewFallbackResultValidator(
				llm.NewAnthropicResultValidator(primary, validationCfg),
				llm.NewDeepSeekResultValidator(secondary, validationCfg),
				logger,
			)
		}
		logger.Info("llm: using Anthropic with DeepSeek fallback")
	case cfg.DeepSeekAPIKey != "":
		client := llm.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.LLMCallTimeout)
		generator = client
		if cfg.ResultValidationEnabled {
			resultValidator = llm.NewDeepSeekResultValidator(client, validationCfg)
		}
		logger.Info("llm: using DeepSeek only")
	default:
		client := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMCallTimeout)
		generator = client
		if cfg.ResultValidationEnabled {
			resultValidator = llm.NewAnthropicResultValidator(client, validationCfg)
		}
		logger.Info("llm: using Anthropic only")
	}

	// ── Orchestrator ─────────────────────────────────────────────────────
	resilienceCfg := resilience.Config{
		MaxRetries:              cfg.MaxRetries,
		RetryDelay:              cfg.RetryDelay,
		BackoffFactor:           cfg.BackoffFactor,
		CircuitBreakerThreshold: cfg.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.CircuitBreakerTimeout,
		LLMConcurrency:          cfg.LLMConcurrency,
		QueryConcurrency:        cfg.QueryConcurrency,
		LLMCallTimeout:          cfg.LLMCallTimeout,
		DBCallTimeout:           cfg.DBCallTimeout,
	}

	orch := orchestrator.New(bindings, schemaCache, generator, resultValidator, resilienceCfg, metrics.NewPrometheusSink())

	// ── HTTP server ───────────────────────────────────────────────────────
	handler := api.NewServer(orch, api.Config{Env: cfg.Env}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generous — LLM round trips can be slow
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens and tunes a connection pool for one configured database,
// then verifies it is reachable before returning.
func openDB(dbCfg config.DatabaseConfig) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(dbCfg.MaxOpenConns)
	pool.SetMaxIdleConns(dbCfg.MaxIdleConns)
	pool.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
