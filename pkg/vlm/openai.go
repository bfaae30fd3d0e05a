package vlm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig configures the vision-chat fallback backend.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIScorer implements Scorer through an OpenAI vision chat completion.
// It is a fallback for deployments without a CLIP sidecar; the model is asked
// to emit a softmax-like distribution over the prompts as JSON.
type OpenAIScorer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIScorer builds the fallback scorer.
func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIScorer{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/bodylens/bodylens-go-api/pkg/vlm/openai"),
		logger: logger.With().Str("component", "vlm_openai_scorer").Logger(),
	}, nil
}

// Score asks the vision model for a probability per prompt and verifies full
// coverage of the batch.
func (s *OpenAIScorer) Score(parent context.Context, image []byte, prompts []string) (map[string]float64, error) {
	ctx, span := s.tracer.Start(parent, "vlm.openai.score", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
		attribute.Int("prompts", len(prompts)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scorerSystemPrompt(),
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildScorePrompt(prompts),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(image)),
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, request)
	scoreDuration.WithLabelValues("openai").Observe(time.Since(start).Seconds())
	if err != nil {
		scoreFailures.WithLabelValues("openai").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("openai score: %w", err)
	}

	if len(resp.Choices) == 0 {
		scoreFailures.WithLabelValues("openai").Inc()
		return nil, fmt.Errorf("no choices returned from openai")
	}

	scores, err := parseScoreResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		scoreFailures.WithLabelValues("openai").Inc()
		span.RecordError(err)
		return nil, err
	}

	if err := VerifyCoverage(scores, prompts); err != nil {
		scoreFailures.WithLabelValues("openai").Inc()
		return nil, err
	}

	return scores, nil
}

func scorerSystemPrompt() string {
	return "You are a zero-shot image-text matcher. Given an image and a numbered list of captions, respond with a JSON object " +
		"whose single key \"scores\" maps every caption verbatim to a probability. Probabilities must be non-negative and sum to 1 " +
		"across all captions, reflecting how well each caption matches the image relative to the others."
}

func buildScorePrompt(prompts []string) string {
	builder := strings.Builder{}
	builder.WriteString("Score the attached image against each caption below.\n")
	for i, p := range prompts {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, p))
	}
	builder.WriteString("Return JSON.")
	return builder.String()
}

func parseScoreResponse(content string) (map[string]float64, error) {
	type payload struct {
		Scores map[string]float64 `json:"scores"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, fmt.Errorf("parse score json: %w", err)
	}
	if len(data.Scores) == 0 {
		return nil, fmt.Errorf("score json contained no scores")
	}

	for prompt, score := range data.Scores {
		if score < 0 {
			data.Scores[prompt] = 0
		}
		if score > 1 {
			data.Scores[prompt] = 1
		}
	}

	return data.Scores, nil
}
