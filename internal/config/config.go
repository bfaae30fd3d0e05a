package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Scorer provider selectors.
const (
	ProviderCLIPHTTP = "clip-http"
	ProviderOpenAI   = "openai"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	ScorerProvider   string
	InferenceURL     string
	InferenceTimeout time.Duration
	OpenAIAPIKey     string
	OpenAIModel      string

	FetchCacheDir   string
	FetchTimeout    time.Duration
	FetchMaxRetries int
	FetchReferer    string

	EvalCacheTTL time.Duration

	// Decision thresholds; defaults are the calibrated research values.
	MarginThreshold     float64
	BorderlineAbsMargin float64
	DiffMin             float64
	GateThreshold       float64
	TotalVoteRequire    int
	GateFastPairs       int

	WindowSize            int
	WindowMinProb         float64
	InterventionThreshold float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BODYLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "BodyLens API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("scorer.provider", ProviderCLIPHTTP)
	v.SetDefault("inference.url", "http://localhost:9000/score")
	v.SetDefault("inference.timeout", "30s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("fetch.timeout", "8s")
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("eval.cache_ttl", "10m")

	v.SetDefault("threshold.margin", 0.5)
	v.SetDefault("threshold.borderline_abs_margin", 0.12)
	v.SetDefault("threshold.diff_min", 0.05)
	v.SetDefault("threshold.gate", 0.3)
	v.SetDefault("threshold.total_vote_require", 8)
	v.SetDefault("gate.fast_pairs", 1)

	v.SetDefault("window.size", 5)
	v.SetDefault("window.min_prob", 0.5)
	v.SetDefault("window.intervention_threshold", 1.8)

	inferenceTimeout, err := time.ParseDuration(v.GetString("inference.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid inference timeout: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(v.GetString("fetch.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid fetch timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("eval.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid evaluation cache ttl: %w", err)
	}

	cfg := Config{
		AppName: v.GetString("app.name"),
		AppEnv:  v.GetString("app.env"),
		AppPort: v.GetString("app.port"),

		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		JWTSecret:   v.GetString("jwt.secret"),

		ScorerProvider:   strings.ToLower(v.GetString("scorer.provider")),
		InferenceURL:     v.GetString("inference.url"),
		InferenceTimeout: inferenceTimeout,
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai.model"),

		FetchCacheDir:   v.GetString("fetch.cache_dir"),
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: v.GetInt("fetch.max_retries"),
		FetchReferer:    v.GetString("fetch.referer"),

		EvalCacheTTL: cacheTTL,

		MarginThreshold:     v.GetFloat64("threshold.margin"),
		BorderlineAbsMargin: v.GetFloat64("threshold.borderline_abs_margin"),
		DiffMin:             v.GetFloat64("threshold.diff_min"),
		GateThreshold:       v.GetFloat64("threshold.gate"),
		TotalVoteRequire:    v.GetInt("threshold.total_vote_require"),
		GateFastPairs:       v.GetInt("gate.fast_pairs"),

		WindowSize:            v.GetInt("window.size"),
		WindowMinProb:         v.GetFloat64("window.min_prob"),
		InterventionThreshold: v.GetFloat64("window.intervention_threshold"),
	}

	switch cfg.ScorerProvider {
	case ProviderCLIPHTTP:
		if cfg.InferenceURL == "" {
			return Config{}, fmt.Errorf("inference url must be provided for the %s provider", ProviderCLIPHTTP)
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("openai api key must be provided for the %s provider", ProviderOpenAI)
		}
	default:
		return Config{}, fmt.Errorf("unknown scorer provider %q", cfg.ScorerProvider)
	}

	if cfg.TotalVoteRequire <= 0 {
		return Config{}, fmt.Errorf("total vote requirement must be positive")
	}

	return cfg, nil
}
