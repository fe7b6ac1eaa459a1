package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/zunguka/internal/config"
	"github.com/jkaninda/zunguka/internal/history"
	sqlitestore "github.com/jkaninda/zunguka/internal/history/sqlite"
	"github.com/jkaninda/zunguka/internal/keypool"
	"github.com/jkaninda/zunguka/internal/llm"
	"github.com/jkaninda/zunguka/internal/llm/anthropic"
	"github.com/jkaninda/zunguka/internal/llm/gemini"
	"github.com/jkaninda/zunguka/internal/llm/openai"
	"github.com/jkaninda/zunguka/internal/observability"
	"github.com/jkaninda/zunguka/internal/ratelimit"
)

var (
	configPath string
	verbose    bool
)

// newLogger creates the process-wide structured logger writing to stderr,
// keeping stdout clean for model output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig resolves the config path from flag or env and loads it.
func loadConfig() (*config.Config, error) {
	return config.Load(goutils.Env("ZUNGUKA_CONFIG", configPath))
}

// SharedComponents holds all initialized subsystems that every command
// requires. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *keypool.Pool
	Provider llm.Provider
	Store    history.Store // nil when history is disabled
	Obs      *observability.Observability

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between commands.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Ensure data directory exists.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
		if cfg.Observability != nil {
			obs.ServeMetrics(cfg.Observability.Metrics)
		}
	}

	// LLM provider with its key pool.
	provider, pool, err := newLLMProvider(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing LLM provider: %w", err)
	}
	sc.Pool = pool
	logger.Debug("llm provider initialized",
		slog.String("provider", provider.Name()),
		slog.Int("keys", pool.Size()),
	)

	providerName := provider.Name()

	// Let the user know multiple keys are in rotation. Printed to stderr
	// so piped stdout stays clean.
	if pool.Size() > 1 {
		fmt.Fprintf(os.Stderr, "Using %d %s API keys\n", pool.Size(), providerName)
	}

	// Local throttle: keep total request rate under the combined per-key quota.
	if cfg.Throttle.RequestsPerMinute > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.Throttle.RequestsPerMinute,
			BurstSize:         cfg.Throttle.BurstSize,
		})
		provider = ratelimit.NewThrottledProvider(provider, limiter, logger)
		logger.Debug("local throttle enabled",
			slog.Int("requests_per_minute", cfg.Throttle.RequestsPerMinute),
		)
	}

	// Bounded retry on rate limits: rotate to the next key and try again.
	if cfg.Retry.Enabled {
		maxAttempts := cfg.Retry.MaxAttempts
		if maxAttempts <= 0 {
			// One attempt per key in the pool.
			maxAttempts = pool.Size()
		}
		var retryOpts []llm.RetryOption
		if obs != nil && obs.Metrics != nil {
			metrics := obs.Metrics
			retryOpts = append(retryOpts, llm.WithRetryNotify(func() {
				metrics.RateLimitRetriesTotal.WithLabelValues(providerName).Inc()
			}))
		}
		provider = llm.NewRetryProvider(provider, llm.RetryConfig{
			MaxAttempts: maxAttempts,
			StatusCodes: cfg.Retry.StatusCodes,
		}, logger, retryOpts...)
		logger.Debug("rate-limit retry enabled",
			slog.Int("max_attempts", maxAttempts),
		)
	}

	if obs != nil && obs.Metrics != nil {
		obs.Metrics.KeyPoolSize.WithLabelValues(providerName).Set(float64(pool.Size()))
		provider = observability.NewInstrumentedProvider(provider, obs.Metrics, obs.TracerOrNil())
	}
	sc.Provider = provider

	// Conversation history.
	if cfg.History != nil && cfg.History.Enabled {
		store, err := sqlitestore.Open(sqlitestore.Config{
			Path:        cfg.HistoryPath(),
			JournalMode: cfg.History.JournalMode,
		}, logger)
		if err != nil {
			sc.Cleanup()
			return nil, fmt.Errorf("initializing history store: %w", err)
		}
		sc.Store = store
		sc.addCleanup(func() {
			if err := store.Close(); err != nil {
				logger.Error("closing history store", slog.String("error", err.Error()))
			}
		})
	}

	return sc, nil
}

// recordChatTurn counts a completed chat turn when metrics are enabled.
func recordChatTurn(sc *SharedComponents, err error) {
	metrics := sc.Obs.MetricsOrNil()
	if metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ChatTurnsTotal.WithLabelValues(sc.Provider.Name(), status).Inc()
}

// newPool builds a key pool from the configured key list.
func newPool(keys []string, logger *slog.Logger) *keypool.Pool {
	pool := keypool.New(logger)
	pool.Reset(keys)
	return pool
}

// newLLMProvider creates the LLM provider based on the configured default,
// along with the key pool it draws from.
func newLLMProvider(cfg *config.Config, logger *slog.Logger) (llm.Provider, *keypool.Pool, error) {
	switch cfg.Providers.Default {
	case "gemini", "":
		pool := newPool(cfg.Providers.Gemini.Keys(), logger)
		var opts []gemini.Option
		if cfg.Providers.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Providers.Gemini.BaseURL))
		}
		return gemini.NewClient(pool, cfg.Providers.Gemini.Model, logger, opts...), pool, nil
	case "openai":
		pool := newPool(cfg.Providers.OpenAI.Keys(), logger)
		var opts []openai.Option
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		return openai.NewClient(pool, cfg.Providers.OpenAI.Model, logger, opts...), pool, nil
	case "anthropic":
		pool := newPool(cfg.Providers.Anthropic.Keys(), logger)
		var opts []anthropic.Option
		if cfg.Providers.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Providers.Anthropic.BaseURL))
		}
		return anthropic.NewClient(pool, cfg.Providers.Anthropic.Model, logger, opts...), pool, nil
	case "ollama":
		baseURL := cfg.Providers.Ollama.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		// Ollama ignores the bearer token but the client requires a pool entry.
		pool := newPool([]string{"ollama"}, logger)
		return openai.NewClient(
			pool,
			cfg.Providers.Ollama.Model,
			logger,
			openai.WithBaseURL(baseURL),
			openai.WithName("ollama"),
		), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider: %q", cfg.Providers.Default)
	}
}
