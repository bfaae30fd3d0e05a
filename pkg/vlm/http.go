package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	scoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bodylens",
		Subsystem: "vlm",
		Name:      "score_duration_seconds",
		Help:      "Duration of oracle scoring requests",
	}, []string{"backend"})

	scoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bodylens",
		Subsystem: "vlm",
		Name:      "score_failures_total",
		Help:      "Number of failed oracle scoring requests",
	}, []string{"backend"})
)

// HTTPConfig configures the scorer that talks to a CLIP inference sidecar.
type HTTPConfig struct {
	Endpoint string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// HTTPScorer implements Scorer against an HTTP inference server exposing a
// POST /score endpoint that accepts a base64 image plus prompts and answers
// with a softmax distribution over the prompts.
type HTTPScorer struct {
	cfg    HTTPConfig
	client *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewHTTPScorer builds a scorer for the given inference endpoint.
func NewHTTPScorer(cfg HTTPConfig) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("inference endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &HTTPScorer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer("github.com/bodylens/bodylens-go-api/pkg/vlm/http"),
		logger: logger.With().Str("component", "vlm_http_scorer").Logger(),
	}, nil
}

type scoreRequest struct {
	Image   string   `json:"image"`
	Prompts []string `json:"prompts"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
	Error  string             `json:"error,omitempty"`
}

// Score submits one batched scoring request and verifies full prompt
// coverage before returning.
func (s *HTTPScorer) Score(parent context.Context, image []byte, prompts []string) (map[string]float64, error) {
	ctx, span := s.tracer.Start(parent, "vlm.score", trace.WithAttributes(
		attribute.Int("prompts", len(prompts)),
		attribute.Int("image_bytes", len(image)),
	))
	defer span.End()

	payload, err := json.Marshal(scoreRequest{
		Image:   base64.StdEncoding.EncodeToString(image),
		Prompts: prompts,
	})
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	scoreDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		scoreFailures.WithLabelValues("http").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		scoreFailures.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("read score response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		scoreFailures.WithLabelValues("http").Inc()
		err := fmt.Errorf("inference server returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		scoreFailures.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("decode score response: %w", err)
	}
	if decoded.Error != "" {
		scoreFailures.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("inference server: %s", decoded.Error)
	}

	if err := VerifyCoverage(decoded.Scores, prompts); err != nil {
		scoreFailures.WithLabelValues("http").Inc()
		span.RecordError(err)
		return nil, err
	}

	return decoded.Scores, nil
}

// VerifyCoverage checks that scores contains an entry for every submitted
// prompt; batches missing any prompt fail closed.
func VerifyCoverage(scores map[string]float64, prompts []string) error {
	for _, p := range prompts {
		if _, ok := scores[p]; !ok {
			return fmt.Errorf("%w: missing %q", ErrIncompleteScores, p)
		}
	}
	return nil
}
